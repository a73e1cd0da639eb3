// Package citation collects source references from the research answer
// and from annotations supplied by the model service.
package citation

import (
	"regexp"
	"strings"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

var markdownLinkRe = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^\s()]+)\)`)

// Extract 内联 markdown 链接在前、模型标注在后，按固定顺序拼接，不去重
func Extract(rawText string, annotations []model.Annotation) []model.Citation {
	out := Inline(rawText)
	return append(out, FromAnnotations(annotations)...)
}

// Inline 扫描全文中的 [title](url)
func Inline(rawText string) []model.Citation {
	out := []model.Citation{}
	for _, m := range markdownLinkRe.FindAllStringSubmatch(rawText, -1) {
		title := strings.TrimSpace(m[1])
		if title == "" {
			title = m[2]
		}
		out = append(out, model.Citation{Title: title, URL: m[2]})
	}
	return out
}

// FromAnnotations 将模型标注映射为引用，丢弃没有 URL 的标注
func FromAnnotations(annotations []model.Annotation) []model.Citation {
	out := make([]model.Citation, 0, len(annotations))
	for _, a := range annotations {
		url := strings.TrimSpace(a.URL)
		if url == "" {
			continue
		}
		title := strings.TrimSpace(a.Title)
		if title == "" {
			title = url
		}
		out = append(out, model.Citation{
			Title:      title,
			URL:        url,
			StartIndex: copyInt(a.StartIndex),
			EndIndex:   copyInt(a.EndIndex),
		})
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
