package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// StreamCompletion 以流式方式调用模型，把分片折叠为完整结果
type StreamCompletion struct {
	name string
	cm   model.BaseChatModel
}

// NewStreamCompletion 创建流式补全
func NewStreamCompletion(name string, cm model.BaseChatModel) *StreamCompletion {
	return &StreamCompletion{name: name, cm: cm}
}

var _ CompletionModel = (*StreamCompletion)(nil)

func (s *StreamCompletion) Name() string { return s.name }

func (s *StreamCompletion) Complete(ctx context.Context, messages []*schema.Message) (*dm.InvocationResult, error) {
	sr, err := s.cm.Stream(ctx, messages)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	var acc accumulator
	for acc.state == foldStreaming {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc.fold(nextChunk(sr))
	}

	if acc.state == foldFailed {
		return nil, acc.err
	}
	text := strings.TrimSpace(acc.text.String())
	if text == "" {
		return nil, ErrEmptyCompletion
	}
	return &dm.InvocationResult{
		RawText:   text,
		ModelUsed: s.name,
		ToolTrace: acc.trace,
	}, nil
}

// chunk 流中的一个分片
type chunk interface{ isChunk() }

type tokenChunk struct{ text string }

// actionChunk 模型在补全中附带的动作（工具调用分片）
type actionChunk struct {
	text  string
	calls []schema.ToolCall
}

type errorChunk struct{ err error }

type endChunk struct{}

func (tokenChunk) isChunk()  {}
func (actionChunk) isChunk() {}
func (errorChunk) isChunk()  {}
func (endChunk) isChunk()    {}

func nextChunk(sr *schema.StreamReader[*schema.Message]) chunk {
	msg, err := sr.Recv()
	switch {
	case errors.Is(err, io.EOF):
		return endChunk{}
	case err != nil:
		return errorChunk{err: err}
	case msg == nil:
		return tokenChunk{}
	case len(msg.ToolCalls) > 0:
		return actionChunk{text: msg.Content, calls: msg.ToolCalls}
	default:
		return tokenChunk{text: msg.Content}
	}
}

type foldState int

const (
	foldStreaming foldState = iota
	foldDone
	foldFailed
)

type accumulator struct {
	state foldState
	text  strings.Builder
	trace []dm.ToolCallRecord
	err   error
}

func (a *accumulator) fold(c chunk) {
	if a.state != foldStreaming {
		return
	}
	switch v := c.(type) {
	case tokenChunk:
		a.text.WriteString(v.text)
	case actionChunk:
		a.text.WriteString(v.text)
		for _, call := range v.calls {
			// 流式工具调用的后续分片只带参数增量，没有 ID
			if call.ID == "" {
				continue
			}
			a.trace = append(a.trace, dm.ToolCallRecord{
				ID:     call.ID,
				Kind:   kindFor(call.Function.Name),
				Name:   call.Function.Name,
				Status: statusCompleted,
			})
		}
	case errorChunk:
		a.state = foldFailed
		a.err = v.err
	case endChunk:
		a.state = foldDone
	}
}
