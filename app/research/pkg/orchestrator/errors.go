package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/iWorld-y/research_radar/app/research/pkg/llm"
	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
)

// ErrFallbackExhausted 主模型与回退模型均失败
var ErrFallbackExhausted = errors.New("all research models failed")

const (
	stagePrimary  = "primary"
	stageFallback = "fallback"
)

// Class 调用失败的类别
type Class string

const (
	ClassTimeout          Class = "timeout"
	ClassModelUnavailable Class = "unavailable"
	ClassRateLimited      Class = "rate_limited"
	ClassCanceled         Class = "canceled"
	ClassOther            Class = "error"
)

// Transient 是否为可通过换模型绕开的临时性故障
func (c Class) Transient() bool {
	return c == ClassTimeout || c == ClassModelUnavailable || c == ClassRateLimited
}

// AttemptError 单个阶段的失败
type AttemptError struct {
	Stage string
	Model string
	Class Class
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s model %s failed (%s): %v", e.Stage, e.Model, e.Class, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError 两个阶段都失败，保留各自原因
type ExhaustedError struct {
	Primary  error
	Fallback error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: %v; %v", ErrFallbackExhausted, e.Primary, e.Fallback)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrFallbackExhausted, e.Primary, e.Fallback}
}

// ClassOf 取出错误的类别，非 AttemptError 按内容推断
func ClassOf(err error) Class {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Class
	}
	return classify(context.Background(), err)
}

// classify 父 ctx 已取消时一律视为取消，不区分底层错误
func classify(parent context.Context, err error) Class {
	switch {
	case parent.Err() != nil:
		return ClassCanceled
	case errors.Is(err, progress.ErrTransportClosed), errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case llm.IsRateLimited(err):
		return ClassRateLimited
	case llm.IsModelUnavailable(err):
		return ClassModelUnavailable
	default:
		return ClassOther
	}
}

// fallbackReason 回退事件的说明文字
func fallbackReason(c Class) string {
	switch c {
	case ClassTimeout:
		return "primary research timed out, using fallback model"
	case ClassModelUnavailable:
		return "primary research model unavailable, using fallback"
	case ClassRateLimited:
		return "primary research model rate limited, using fallback"
	default:
		return "primary research failed, using fallback model"
	}
}
