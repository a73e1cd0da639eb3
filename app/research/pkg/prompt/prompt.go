package prompt

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// reportFormat 要求模型输出解析器能识别的固定表头
const reportFormat = `Structure the answer with exactly these markdown headers, in this order:
## Company Overview
(2-4 sentence paragraph)
## Recent Developments
(bullet list, "- " prefix)
## Key Stakeholders
(one "- Name - Role" line per person)
## Technology Stack
(bullet list)
## Challenges
(bullet list)
## Opportunities
(bullet list)
## Recommendations
(bullet list of concrete proposal angles)

Cite sources inline as markdown links: [title](url).`

const researchSystem = "You are a senior B2B sales researcher. You produce accurate, sourced company briefings that help a sales team tailor a proposal."

// ResearchInstruction 主调用指令：请求字段折叠为一段说明
func ResearchInstruction(req model.ResearchRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research the company %q for an upcoming sales proposal.\n", req.Company)
	writeContext(&sb, req)
	sb.WriteString("\nUse the web_search tool to find current information and read_page to open the most relevant sources. Prefer sources from the last 12 months.\n\n")
	sb.WriteString(reportFormat)
	return sb.String()
}

// FallbackMessages 回退调用的消息列表，不依赖任何工具
func FallbackMessages(req model.ResearchRequest) []*schema.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prepare a company briefing on %q for an upcoming sales proposal.\n", req.Company)
	writeContext(&sb, req)
	sb.WriteString("\nLive web search is unavailable; rely on what you know and say so where information may be out of date.\n\n")
	sb.WriteString(reportFormat)

	return []*schema.Message{
		schema.SystemMessage(researchSystem),
		schema.UserMessage(sb.String()),
	}
}

// SystemMessage 主调用的系统提示
func SystemMessage() *schema.Message {
	return schema.SystemMessage(researchSystem)
}

func writeContext(sb *strings.Builder, req model.ResearchRequest) {
	if req.Industry != "" {
		fmt.Fprintf(sb, "Industry: %s\n", req.Industry)
	}
	if req.UseCase != "" {
		fmt.Fprintf(sb, "Our use case / offering: %s\n", req.UseCase)
	}
	if req.Requirements != "" {
		fmt.Fprintf(sb, "Specific requirements: %s\n", req.Requirements)
	}
}
