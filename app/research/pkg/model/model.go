package model

import (
	"errors"
	"strings"
	"time"
)

// ErrCompanyRequired 请求缺少公司名称
var ErrCompanyRequired = errors.New("company is required")

// ResearchRequest 一次调研请求，受理后不再修改
type ResearchRequest struct {
	Company      string `json:"company"`
	Industry     string `json:"industry,omitempty"`
	UseCase      string `json:"useCase,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// Validate 校验必填字段
func (r ResearchRequest) Validate() error {
	if strings.TrimSpace(r.Company) == "" {
		return ErrCompanyRequired
	}
	return nil
}

// Trimmed 返回去除首尾空白后的副本
func (r ResearchRequest) Trimmed() ResearchRequest {
	return ResearchRequest{
		Company:      strings.TrimSpace(r.Company),
		Industry:     strings.TrimSpace(r.Industry),
		UseCase:      strings.TrimSpace(r.UseCase),
		Requirements: strings.TrimSpace(r.Requirements),
	}
}

// ToolKind 工具调用类型
type ToolKind string

const (
	ToolWebSearch     ToolKind = "web_search_call"
	ToolPageRead      ToolKind = "page_read_call"
	ToolCodeExecution ToolKind = "code_execution_call"
)

// ToolCallRecord 一次工具调用记录
type ToolCallRecord struct {
	ID        string   `json:"id"`
	Kind      ToolKind `json:"kind"`
	Name      string   `json:"name"`
	Arguments string   `json:"arguments,omitempty"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
}

// Annotation 模型随答案返回的来源标注
type Annotation struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	StartIndex *int   `json:"startIndex,omitempty"`
	EndIndex   *int   `json:"endIndex,omitempty"`
}

// Source 工具检索到的网页来源
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// InvocationResult 一次模型调用的原始输出
type InvocationResult struct {
	RawText     string           `json:"rawText"`
	ModelUsed   string           `json:"modelUsed"`
	ToolTrace   []ToolCallRecord `json:"toolTrace"`
	Annotations []Annotation     `json:"annotations"`
}

// SearchCount 统计搜索类工具调用次数
func (r *InvocationResult) SearchCount() int {
	return r.countKind(ToolWebSearch)
}

// PagesRead 统计网页阅读次数
func (r *InvocationResult) PagesRead() int {
	return r.countKind(ToolPageRead)
}

func (r *InvocationResult) countKind(kind ToolKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, rec := range r.ToolTrace {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// Stakeholder 关键决策人
type Stakeholder struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Citation 报告引用来源
type Citation struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	StartIndex *int   `json:"startIndex,omitempty"`
	EndIndex   *int   `json:"endIndex,omitempty"`
}

// Sections 从正文解析出的各个章节
type Sections struct {
	CompanyOverview    string        `json:"companyOverview"`
	RecentDevelopments []string      `json:"recentDevelopments"`
	KeyStakeholders    []Stakeholder `json:"keyStakeholders"`
	TechnologyStack    []string      `json:"technologyStack"`
	Challenges         []string      `json:"challenges"`
	Opportunities      []string      `json:"opportunities"`
	Recommendations    []string      `json:"recommendations"`
}

// NewSections 返回所有列表均已初始化的空章节
func NewSections() Sections {
	return Sections{
		RecentDevelopments: []string{},
		KeyStakeholders:    []Stakeholder{},
		TechnologyStack:    []string{},
		Challenges:         []string{},
		Opportunities:      []string{},
		Recommendations:    []string{},
	}
}

// ReportMetadata 报告元数据
type ReportMetadata struct {
	Company      string    `json:"company"`
	ModelUsed    string    `json:"modelUsed"`
	FallbackUsed bool      `json:"fallbackUsed"`
	Timestamp    time.Time `json:"timestamp"`
	SearchCount  int       `json:"searchCount"`
	PagesRead    int       `json:"pagesRead"`
	Note         string    `json:"note,omitempty"`
}

// StructuredReport 结构化调研报告，生成后不再修改
type StructuredReport struct {
	Sections
	Citations  []Citation     `json:"citations"`
	FullReport string         `json:"fullReport"`
	Metadata   ReportMetadata `json:"metadata"`
}

// Normalize 保证所有数组字段非 nil
func (r *StructuredReport) Normalize() {
	if r.RecentDevelopments == nil {
		r.RecentDevelopments = []string{}
	}
	if r.KeyStakeholders == nil {
		r.KeyStakeholders = []Stakeholder{}
	}
	if r.TechnologyStack == nil {
		r.TechnologyStack = []string{}
	}
	if r.Challenges == nil {
		r.Challenges = []string{}
	}
	if r.Opportunities == nil {
		r.Opportunities = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if r.Citations == nil {
		r.Citations = []Citation{}
	}
}
