// Package llm adapts eino chat models to the two call modes a research run
// needs: a tool-augmented research call and a plain role-tagged completion.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
)

var (
	// ErrModelUnavailable 模型不存在或当前账号不可用
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrStepLimit 工具调用轮数超过上限
	ErrStepLimit = errors.New("tool step limit reached")
	// ErrEmptyCompletion 模型没有返回任何正文
	ErrEmptyCompletion = errors.New("model returned empty content")
)

// ToolObserver 在每次工具执行前被调用，返回错误会中止本次调用
type ToolObserver interface {
	OnToolCall(ctx context.Context, rec dm.ToolCallRecord) error
}

// ToolObserverFunc 函数适配器
type ToolObserverFunc func(ctx context.Context, rec dm.ToolCallRecord) error

func (f ToolObserverFunc) OnToolCall(ctx context.Context, rec dm.ToolCallRecord) error {
	return f(ctx, rec)
}

// ResearchModel 带工具的研究调用
type ResearchModel interface {
	Name() string
	Research(ctx context.Context, instruction string, obs ToolObserver) (*dm.InvocationResult, error)
}

// CompletionModel 普通对话补全
type CompletionModel interface {
	Name() string
	Complete(ctx context.Context, messages []*schema.Message) (*dm.InvocationResult, error)
}

// IsModelUnavailable 判断错误是否表示模型不可用
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelUnavailable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status code: 404") ||
		strings.Contains(msg, "model_not_found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not enabled")
}

// IsRateLimited 判断是否触发 429 限流
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// kindFor 按工具名推断调用类型
func kindFor(name string) dm.ToolKind {
	switch name {
	case "web_search", "web_search_preview", "search":
		return dm.ToolWebSearch
	case "read_page", "open_page", "browse":
		return dm.ToolPageRead
	case "code_interpreter", "python":
		return dm.ToolCodeExecution
	}
	return ""
}
