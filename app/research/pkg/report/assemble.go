// Package report assembles the final structured research report.
package report

import (
	"time"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// FallbackNote 回退路径的默认说明
const FallbackNote = "generated by fallback model without live web research"

// Input 组装报告所需的全部输入
type Input struct {
	Request      model.ResearchRequest
	Sections     model.Sections
	Citations    []model.Citation
	Result       *model.InvocationResult
	FallbackUsed bool
	Timestamp    time.Time
	Note         string
}

// Assemble 纯函数：复制所有切片，不修改输入，不做 I/O
func Assemble(in Input) *model.StructuredReport {
	var (
		rawText   string
		modelUsed string
	)
	if in.Result != nil {
		rawText = in.Result.RawText
		modelUsed = in.Result.ModelUsed
	}

	note := in.Note
	if note == "" && in.FallbackUsed {
		note = FallbackNote
	}

	r := &model.StructuredReport{
		Sections: model.Sections{
			CompanyOverview:    in.Sections.CompanyOverview,
			RecentDevelopments: cloneStrings(in.Sections.RecentDevelopments),
			KeyStakeholders:    append([]model.Stakeholder{}, in.Sections.KeyStakeholders...),
			TechnologyStack:    cloneStrings(in.Sections.TechnologyStack),
			Challenges:         cloneStrings(in.Sections.Challenges),
			Opportunities:      cloneStrings(in.Sections.Opportunities),
			Recommendations:    cloneStrings(in.Sections.Recommendations),
		},
		Citations:  cloneCitations(in.Citations),
		FullReport: rawText,
		Metadata: model.ReportMetadata{
			Company:      in.Request.Company,
			ModelUsed:    modelUsed,
			FallbackUsed: in.FallbackUsed,
			Timestamp:    in.Timestamp,
			SearchCount:  in.Result.SearchCount(),
			PagesRead:    in.Result.PagesRead(),
			Note:         note,
		},
	}
	r.Normalize()
	return r
}

func cloneStrings(in []string) []string {
	return append([]string{}, in...)
}

func cloneCitations(in []model.Citation) []model.Citation {
	out := make([]model.Citation, len(in))
	for i, c := range in {
		out[i] = model.Citation{Title: c.Title, URL: c.URL}
		if c.StartIndex != nil {
			v := *c.StartIndex
			out[i].StartIndex = &v
		}
		if c.EndIndex != nil {
			v := *c.EndIndex
			out[i].EndIndex = &v
		}
	}
	return out
}
