// Package orchestrator runs the primary tool-augmented research call and, when
// it fails, a single plain-completion fallback call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/research_radar/app/research/pkg/config"
	"github.com/iWorld-y/research_radar/app/research/pkg/llm"
	"github.com/iWorld-y/research_radar/app/research/pkg/logger"
	"github.com/iWorld-y/research_radar/app/research/pkg/metrics"
	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
	"github.com/iWorld-y/research_radar/app/research/pkg/prompt"
)

// Policy 主调用失败后何时回退
type Policy string

const (
	FallbackOnAnyError  Policy = "any"
	FallbackOnTransient Policy = "transient"
)

const defaultTimeout = 60 * time.Second

// Config 编排参数
type Config struct {
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
	Policy          Policy
	MaxRetries      int
	RetryBaseDelay  time.Duration
}

// ConfigFrom 由配置文件构造
func ConfigFrom(c config.ResearchConfig) Config {
	return Config{
		PrimaryTimeout:  c.PrimaryTimeout,
		FallbackTimeout: c.FallbackTimeout,
		Policy:          Policy(c.FallbackOn),
		MaxRetries:      c.MaxRetries,
		RetryBaseDelay:  c.RetryBaseDelay,
	}
}

// Reporter 接收编排过程中的进度事件，*progress.Emitter 即可满足
type Reporter interface {
	Progress(p progress.Progress) error
}

// Outcome 一次编排的结果；失败时 Result 为空，Transitions 仍然完整
type Outcome struct {
	Result       *dm.InvocationResult
	FallbackUsed bool
	PrimaryErr   error
	Transitions  []Transition
}

// Orchestrator 主/回退两阶段调用
type Orchestrator struct {
	primary  llm.ResearchModel
	fallback llm.CompletionModel
	cfg      Config
	limiter  *rate.Limiter
	now      func() time.Time
}

// Option 可选项
type Option func(*Orchestrator)

// WithLimiter 每次模型调用前等待的限流器
func WithLimiter(l *rate.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithClock 替换时钟，只影响状态迁移的时间戳
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New 创建编排器
func New(primary llm.ResearchModel, fallback llm.CompletionModel, cfg Config, opts ...Option) *Orchestrator {
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = defaultTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = defaultTimeout
	}
	if cfg.Policy == "" {
		cfg.Policy = FallbackOnAnyError
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	o := &Orchestrator{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute 执行一次编排。返回错误时 Outcome 依然非空
func (o *Orchestrator) Execute(ctx context.Context, req dm.ResearchRequest, rep Reporter) (*Outcome, error) {
	r := newRun(o.now)
	out := &Outcome{}
	defer func() { out.Transitions = r.transitions }()

	r.to(StatePrimaryAttempt)
	res, perr := o.primaryAttempt(ctx, req, rep)
	if perr == nil {
		r.to(StatePrimaryOK)
		r.to(StateDone)
		out.Result = res
		return out, nil
	}

	r.to(StatePrimaryFail)
	out.PrimaryErr = perr
	class := ClassOf(perr)
	if !o.shouldFallback(class) {
		logger.Log.Warnf("主模型失败且不回退 (%s): %v", class, perr)
		r.to(StateTerminalError)
		return out, perr
	}
	logger.Log.Warnf("主模型失败，切换回退模型 (%s): %v", class, perr)

	if err := rep.Progress(progress.Progress{
		Status:   progress.PhaseFallback,
		Message:  fallbackReason(class),
		Metadata: progress.MetadataFor(req, o.fallback.Name()),
	}); err != nil {
		r.to(StateTerminalError)
		return out, err
	}

	r.to(StateFallbackAttempt)
	res, ferr := o.fallbackAttempt(ctx, req)
	if ferr != nil {
		r.to(StateFallbackFail)
		r.to(StateTerminalError)
		return out, &ExhaustedError{Primary: perr, Fallback: ferr}
	}

	r.to(StateFallbackOK)
	r.to(StateDone)
	out.Result = res
	out.FallbackUsed = true
	return out, nil
}

func (o *Orchestrator) shouldFallback(c Class) bool {
	if c == ClassCanceled {
		return false
	}
	if o.cfg.Policy == FallbackOnTransient {
		return c.Transient()
	}
	return true
}

func (o *Orchestrator) primaryAttempt(ctx context.Context, req dm.ResearchRequest, rep Reporter) (*dm.InvocationResult, error) {
	g := &gate{rep: rep, meta: progress.MetadataFor(req, o.primary.Name())}
	// 返回前关闭闸门，被放弃的调用不会再写出事件
	defer g.close()

	instruction := prompt.ResearchInstruction(req)
	return o.attempt(ctx, stagePrimary, o.primary.Name(), o.cfg.PrimaryTimeout, func(actx context.Context) (*dm.InvocationResult, error) {
		return o.primary.Research(actx, instruction, g)
	})
}

func (o *Orchestrator) fallbackAttempt(ctx context.Context, req dm.ResearchRequest) (*dm.InvocationResult, error) {
	messages := prompt.FallbackMessages(req)
	return o.attempt(ctx, stageFallback, o.fallback.Name(), o.cfg.FallbackTimeout, func(actx context.Context) (*dm.InvocationResult, error) {
		return o.fallback.Complete(actx, messages)
	})
}

// attempt 在独立截止时间内调用模型，429 时指数退避重试
func (o *Orchestrator) attempt(ctx context.Context, stage, name string, timeout time.Duration, call func(context.Context) (*dm.InvocationResult, error)) (*dm.InvocationResult, error) {
	rec := metrics.NewAttemptRecorder(stage, name)
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for i := 0; i <= o.cfg.MaxRetries; i++ {
		if err := o.wait(actx); err != nil {
			lastErr = err
			break
		}

		res, err := race(actx, call)
		if err == nil {
			rec.Done("ok")
			return res, nil
		}
		lastErr = err

		if !llm.IsRateLimited(err) || i == o.cfg.MaxRetries {
			break
		}
		delay := o.cfg.RetryBaseDelay * time.Duration(1<<i)
		logger.Log.Warnf("触发 429 限流 (%s)，等待 %v 后重试 (%d/%d)...", stage, delay, i+1, o.cfg.MaxRetries)
		rec.RecordRetry()
		if err := sleep(actx, delay); err != nil {
			lastErr = err
			break
		}
	}

	class := classify(ctx, lastErr)
	rec.Done(string(class))
	return nil, &AttemptError{Stage: stage, Model: name, Class: class, Err: lastErr}
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// 限流等待会超出截止时间
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// race 调用在独立 goroutine 中执行，截止时间到达即返回，不等待调用本身退出
func race(ctx context.Context, call func(context.Context) (*dm.InvocationResult, error)) (*dm.InvocationResult, error) {
	type result struct {
		res *dm.InvocationResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		// 模型或工具内部的 panic 转为普通失败，交由回退流程处理
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("model call panicked: %v", r)}
			}
		}()
		res, err := call(ctx)
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errGateClosed 阶段已结束，迟到的工具调用直接中止
var errGateClosed = errors.New("research attempt already settled")

// gate 把工具调用转成进度事件，关闭后不再转发
type gate struct {
	mu       sync.Mutex
	rep      Reporter
	meta     *progress.EventMetadata
	closed   bool
	searches int
	pages    int
}

func (g *gate) OnToolCall(_ context.Context, rec dm.ToolCallRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errGateClosed
	}
	metrics.ToolCallsTotal.WithLabelValues(string(rec.Kind)).Inc()

	var p progress.Progress
	switch rec.Kind {
	case dm.ToolWebSearch:
		g.searches++
		p = progress.Progress{
			Status:      progress.PhaseSearching,
			Message:     "searching the web for company information",
			SearchCount: progress.Count(g.searches),
		}
	case dm.ToolPageRead:
		g.pages++
		p = progress.Progress{
			Status:    progress.PhaseReading,
			Message:   "reading source pages",
			PagesRead: progress.Count(g.pages),
		}
	default:
		return nil
	}
	p.Metadata = g.meta
	return g.rep.Progress(p)
}

func (g *gate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
