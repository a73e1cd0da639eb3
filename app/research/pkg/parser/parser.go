// Package parser turns the free-text research answer into typed report sections.
package parser

import (
	"strings"
	"unicode"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// Parser 将原始文本解析为报告章节，可替换为结构化输出等其它策略
type Parser interface {
	Parse(rawText string) model.Sections
}

// Heuristic 基于表头正则的行扫描解析器，无状态、确定性
type Heuristic struct {
	headers []HeaderPattern
}

var _ Parser = (*Heuristic)(nil)

// New 使用默认表头表
func New() *Heuristic {
	return &Heuristic{headers: DefaultHeaders}
}

// NewWithHeaders 使用自定义表头表，顺序即优先级
func NewWithHeaders(headers []HeaderPattern) *Heuristic {
	return &Heuristic{headers: headers}
}

// Parse 实现 Parser
func (p *Heuristic) Parse(rawText string) model.Sections {
	st := scan{current: SectionNone}

	text := strings.ReplaceAll(rawText, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if sec, ok := p.header(line); ok {
			st.current = sec
			st.seenHeader = true
			continue
		}
		st.add(line)
	}
	return st.result()
}

// header 判断一行是否为表头；未识别的 markdown 标题切换到 SectionNone
func (p *Heuristic) header(line string) (Section, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return SectionNone, false
	}

	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		if sec, ok := p.match(m[1]); ok {
			return sec, true
		}
		return SectionNone, true
	}

	if m := boldLineRe.FindStringSubmatch(trimmed); m != nil {
		return p.match(m[1])
	}

	if bulletRe.MatchString(trimmed) || !looksLikeTitle(trimmed) {
		return SectionNone, false
	}
	return p.match(trimmed)
}

func (p *Heuristic) match(title string) (Section, bool) {
	title = boldMarkRe.ReplaceAllString(title, "")
	title = leadingNumRe.ReplaceAllString(strings.TrimSpace(title), "")
	title = strings.TrimSuffix(strings.TrimSpace(title), ":")
	if title == "" {
		return SectionNone, false
	}
	for _, h := range p.headers {
		if h.Pattern.MatchString(title) {
			return h.Section, true
		}
	}
	return SectionNone, false
}

// looksLikeTitle 短行、不以句末标点结尾、不像 "姓名: 职位" 这样的条目
func looksLikeTitle(line string) bool {
	if len(strings.Fields(line)) > maxHeaderWords {
		return false
	}
	body := strings.TrimSuffix(line, ":")
	if strings.Contains(body, ":") || stakeholderRe.MatchString(body) {
		return false
	}
	last := []rune(line)[len([]rune(line))-1]
	switch last {
	case '.', '!', '?', ',', ';':
		return false
	}
	return unicode.IsLetter(last) || last == ':' || last == ')' || unicode.IsDigit(last)
}

type scan struct {
	current    Section
	seenHeader bool

	preamble []string
	overview []string
	lists    map[Section][]string
	people   []model.Stakeholder
}

func (s *scan) add(line string) {
	if !s.seenHeader {
		s.preamble = append(s.preamble, line)
		return
	}
	if s.current == SectionNone {
		return
	}

	switch kindOf(s.current) {
	case kindText:
		s.overview = append(s.overview, line)
	case kindList:
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			return
		}
		item := strings.TrimSpace(m[1])
		if item == "" {
			return
		}
		if s.lists == nil {
			s.lists = make(map[Section][]string)
		}
		s.lists[s.current] = append(s.lists[s.current], item)
	case kindStakeholder:
		if person, ok := parseStakeholder(line); ok {
			s.people = append(s.people, person)
		}
	}
}

func parseStakeholder(line string) (model.Stakeholder, bool) {
	text := strings.TrimSpace(line)
	if m := bulletRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(boldMarkRe.ReplaceAllString(text, ""))

	m := stakeholderRe.FindStringSubmatch(text)
	if m == nil {
		return model.Stakeholder{}, false
	}
	name := strings.TrimSpace(m[1])
	role := strings.TrimSpace(m[2])
	if name == "" || role == "" {
		return model.Stakeholder{}, false
	}
	return model.Stakeholder{Name: name, Role: role}, true
}

func (s *scan) result() model.Sections {
	out := model.NewSections()

	out.CompanyOverview = strings.TrimSpace(strings.Join(s.overview, "\n"))
	if out.CompanyOverview == "" {
		out.CompanyOverview = strings.TrimSpace(strings.Join(s.preamble, "\n"))
	}

	out.RecentDevelopments = append(out.RecentDevelopments, s.lists[SectionDevelopments]...)
	out.TechnologyStack = append(out.TechnologyStack, s.lists[SectionTechnology]...)
	out.Challenges = append(out.Challenges, s.lists[SectionChallenges]...)
	out.Opportunities = append(out.Opportunities, s.lists[SectionOpportunities]...)
	out.Recommendations = append(out.Recommendations, s.lists[SectionRecommendations]...)
	out.KeyStakeholders = append(out.KeyStakeholders, s.people...)
	return out
}
