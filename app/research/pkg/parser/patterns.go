package parser

import "regexp"

// Section 规范化的章节键
type Section string

const (
	SectionNone            Section = ""
	SectionOverview        Section = "companyOverview"
	SectionDevelopments    Section = "recentDevelopments"
	SectionStakeholders    Section = "keyStakeholders"
	SectionTechnology      Section = "technologyStack"
	SectionChallenges      Section = "challenges"
	SectionOpportunities   Section = "opportunities"
	SectionRecommendations Section = "recommendations"
)

type sectionKind int

const (
	kindText sectionKind = iota
	kindList
	kindStakeholder
)

// HeaderPattern 表头匹配规则
type HeaderPattern struct {
	Section Section
	Pattern *regexp.Regexp
}

// DefaultHeaders 固定且有序的表头表，按顺序匹配，先命中者胜出
var DefaultHeaders = []HeaderPattern{
	{SectionOverview, regexp.MustCompile(`(?i)company overview|executive summary|about the company|company profile|business overview|\boverview\b`)},
	{SectionDevelopments, regexp.MustCompile(`(?i)recent news|recent developments|latest news|\bnews\b|developments`)},
	{SectionStakeholders, regexp.MustCompile(`(?i)key stakeholders|stakeholders|leadership|executives|decision makers|\bteam\b`)},
	{SectionTechnology, regexp.MustCompile(`(?i)technology|tech stack|technical stack|tools and platforms|infrastructure`)},
	{SectionChallenges, regexp.MustCompile(`(?i)challenges|pain points|\brisks\b`)},
	{SectionOpportunities, regexp.MustCompile(`(?i)opportunit(y|ies)`)},
	{SectionRecommendations, regexp.MustCompile(`(?i)recommendations|recommended approach|next steps|proposal angles`)},
}

func kindOf(s Section) sectionKind {
	switch s {
	case SectionOverview:
		return kindText
	case SectionStakeholders:
		return kindStakeholder
	default:
		return kindList
	}
}

var (
	headingRe  = regexp.MustCompile(`^\s{0,3}#{1,6}\s*(.*?)\s*#*\s*$`)
	boldLineRe = regexp.MustCompile(`^\s*\*\*(.+?)\*\*\s*:?\s*$`)
	bulletRe   = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s+(.*)$`)
	// 姓名 + 分隔符 + 职位；破折号两侧必须有空白，避免拆开带连字符的名字
	stakeholderRe = regexp.MustCompile(`^(.+?)(?:\s+[-–—]\s+|:\s*)(.+)$`)
	boldMarkRe    = regexp.MustCompile(`\*\*|__`)
	leadingNumRe  = regexp.MustCompile(`^\d+[.)]\s*`)
)

// maxHeaderWords 普通文本行被视为表头的最大词数
const maxHeaderWords = 8
