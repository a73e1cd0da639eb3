// Package progress carries orchestration progress from a research run to the
// caller as an ordered stream of events ending in exactly one terminal event.
package progress

import (
	"encoding/json"
	"fmt"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// Phase 编排阶段标签
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseSearching    Phase = "searching"
	PhaseReading      Phase = "reading"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseFallback     Phase = "fallback"
)

// EventMetadata 回显请求字段与当前模型
type EventMetadata struct {
	Company      string `json:"company,omitempty"`
	Industry     string `json:"industry,omitempty"`
	UseCase      string `json:"useCase,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	Model        string `json:"model,omitempty"`
}

// MetadataFor 由请求和模型名构造元数据
func MetadataFor(req model.ResearchRequest, modelName string) *EventMetadata {
	return &EventMetadata{
		Company:      req.Company,
		Industry:     req.Industry,
		UseCase:      req.UseCase,
		Requirements: req.Requirements,
		Model:        modelName,
	}
}

// Event is the closed set of stream events: Progress, Complete and Failure.
type Event interface {
	eventType() string
}

// Progress 非终止的阶段事件
type Progress struct {
	Status      Phase
	Message     string
	SearchCount *int
	PagesRead   *int
	Metadata    *EventMetadata
}

// Complete 成功终止事件
type Complete struct {
	Report *model.StructuredReport
}

// Failure 失败终止事件
type Failure struct {
	Message  string
	Details  string
	Metadata *EventMetadata
}

func (Progress) eventType() string { return "progress" }
func (Complete) eventType() string { return "complete" }
func (Failure) eventType() string  { return "error" }

// Type 返回事件的 wire 类型
func Type(e Event) string { return e.eventType() }

// IsTerminal 是否为终止事件
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Complete, Failure:
		return true
	default:
		return false
	}
}

// Count 便于构造可选计数字段
func Count(n int) *int { return &n }

type progressWire struct {
	Type        string         `json:"type"`
	Status      Phase          `json:"status"`
	Message     string         `json:"message"`
	SearchCount *int           `json:"searchCount,omitempty"`
	PagesRead   *int           `json:"pagesRead,omitempty"`
	Metadata    *EventMetadata `json:"metadata,omitempty"`
}

type completeWire struct {
	Type   string                  `json:"type"`
	Report *model.StructuredReport `json:"report"`
}

type failureWire struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Details  string         `json:"details,omitempty"`
	Metadata *EventMetadata `json:"metadata,omitempty"`
}

// Marshal 将事件编码为单个 JSON 对象
func Marshal(e Event) ([]byte, error) {
	switch ev := e.(type) {
	case Progress:
		return json.Marshal(progressWire{
			Type:        ev.eventType(),
			Status:      ev.Status,
			Message:     ev.Message,
			SearchCount: ev.SearchCount,
			PagesRead:   ev.PagesRead,
			Metadata:    ev.Metadata,
		})
	case Complete:
		return json.Marshal(completeWire{Type: ev.eventType(), Report: ev.Report})
	case Failure:
		return json.Marshal(failureWire{
			Type:     ev.eventType(),
			Message:  ev.Message,
			Details:  ev.Details,
			Metadata: ev.Metadata,
		})
	default:
		return nil, fmt.Errorf("unknown event %T", e)
	}
}

// Frame 一个已编码事件及其序号
type Frame struct {
	Seq  uint64
	Type string
	Data []byte
}
