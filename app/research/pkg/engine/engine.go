package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/research_radar/app/research/pkg/citation"
	"github.com/iWorld-y/research_radar/app/research/pkg/logger"
	"github.com/iWorld-y/research_radar/app/research/pkg/metrics"
	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/orchestrator"
	"github.com/iWorld-y/research_radar/app/research/pkg/parser"
	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
	"github.com/iWorld-y/research_radar/app/research/pkg/report"
)

// Executor 模型编排，*orchestrator.Orchestrator 即可满足
type Executor interface {
	Execute(ctx context.Context, req dm.ResearchRequest, rep orchestrator.Reporter) (*orchestrator.Outcome, error)
}

// Engine 核心处理引擎：编排、解析、组装，并通过 Emitter 汇报进度
type Engine struct {
	orch   Executor
	parser parser.Parser
	now    func() time.Time
}

// Option 可选项
type Option func(*Engine)

// WithParser 替换章节解析器
func WithParser(p parser.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithClock 替换报告时间戳来源
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New 创建引擎实例
func New(orch Executor, opts ...Option) *Engine {
	e := &Engine{
		orch:   orch,
		parser: parser.New(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 执行一次调研。无论成功与否，返回前 em 上恰好写出一个终止事件（调用方已断开时除外）并被关闭
func (e *Engine) Run(ctx context.Context, req dm.ResearchRequest, em *progress.Emitter) (rep *dm.StructuredReport, err error) {
	req = req.Trimmed()
	log := logger.Log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "company": req.Company})
	start := time.Now()
	result := "aborted"

	defer func() { metrics.RecordRun(result, start) }()
	defer em.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("调研流程异常: %v", r)
			rep, err = nil, fmt.Errorf("research run panicked: %v", r)
		}
		if err != nil && !em.Terminated() {
			result = "error"
			_ = em.Fail(progress.Failure{
				Message:  failureMessage(err),
				Details:  err.Error(),
				Metadata: progress.MetadataFor(req, ""),
			})
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	log.Infof("开始调研")
	if err := em.Progress(progress.Progress{
		Status:   progress.PhaseInitializing,
		Message:  fmt.Sprintf("starting research on %s", req.Company),
		Metadata: progress.MetadataFor(req, ""),
	}); err != nil {
		return nil, e.aborted(log, err)
	}

	out, err := e.orch.Execute(ctx, req, em)
	if err != nil {
		if errors.Is(err, progress.ErrTransportClosed) || em.Broken() {
			return nil, e.aborted(log, err)
		}
		log.Errorf("调研失败: %v", err)
		return nil, err
	}
	res := out.Result

	if err := em.Progress(progress.Progress{
		Status:   progress.PhaseAnalyzing,
		Message:  "structuring research report",
		Metadata: progress.MetadataFor(req, res.ModelUsed),
	}); err != nil {
		return nil, e.aborted(log, err)
	}

	rep = report.Assemble(report.Input{
		Request:      req,
		Sections:     e.parse(log, res.RawText),
		Citations:    citation.Extract(res.RawText, res.Annotations),
		Result:       res,
		FallbackUsed: out.FallbackUsed,
		Timestamp:    e.now(),
	})

	if err := em.Complete(rep); err != nil {
		return nil, e.aborted(log, err)
	}

	result = "complete"
	if out.FallbackUsed {
		result = "fallback"
	}
	log.WithFields(logrus.Fields{
		"model":    rep.Metadata.ModelUsed,
		"fallback": out.FallbackUsed,
		"searches": rep.Metadata.SearchCount,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Infof("调研完成")
	return rep, nil
}

// parse 解析失败不影响整体流程，退化为空章节
func (e *Engine) parse(log *logrus.Entry, raw string) (s dm.Sections) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("解析报告失败，使用空章节: %v", r)
			s = dm.NewSections()
		}
	}()
	return e.parser.Parse(raw)
}

// aborted 调用方已断开，静默结束
func (e *Engine) aborted(log *logrus.Entry, err error) error {
	log.Infof("调用方已断开，终止调研: %v", err)
	return err
}

// failureMessage 终止事件中面向用户的简短说明，诊断信息放在 details
func failureMessage(err error) string {
	var exhausted *orchestrator.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return "primary and fallback research models both failed"
	case errors.Is(err, dm.ErrCompanyRequired):
		return "company name is required"
	default:
		return "research failed"
	}
}
