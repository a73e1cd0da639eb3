package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/tools"
)

// scriptedModel 依次返回预设消息的假模型
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	stream  []*schema.Message
	err     error
	bound   []*schema.ToolInfo
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, append([]*schema.Message(nil), in...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	out := m.replies[0]
	m.replies = m.replies[1:]
	return out, nil
}

func (m *scriptedModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if m.err != nil {
		return nil, m.err
	}
	return schema.StreamReaderFromArray(m.stream), nil
}

func (m *scriptedModel) WithTools(ts []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.bound = ts
	return m, nil
}

type stubTool struct {
	name    string
	kind    dm.ToolKind
	content string
	sources []dm.Source
	err     error
	calls   []string
}

func (s *stubTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: s.name, Desc: s.name}, nil
}

func (s *stubTool) Kind() dm.ToolKind { return s.kind }

func (s *stubTool) Invoke(_ context.Context, args string) (*tools.Output, error) {
	s.calls = append(s.calls, args)
	if s.err != nil {
		return nil, s.err
	}
	return &tools.Output{Content: s.content, Sources: s.sources}, nil
}

func (s *stubTool) InvokableRun(ctx context.Context, args string, _ ...tool.Option) (string, error) {
	out, err := s.Invoke(ctx, args)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func callMsg(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func TestToolAgent_Research(t *testing.T) {
	search := &stubTool{
		name:    "web_search",
		kind:    dm.ToolWebSearch,
		content: `[{"title":"Acme news"}]`,
		sources: []dm.Source{{Title: "Acme news", URL: "https://news.example/acme"}, {URL: "https://unused.example"}},
	}
	read := &stubTool{name: "read_page", kind: dm.ToolPageRead, content: "page body"}

	final := "## Company Overview\nAcme, see [Acme news](https://news.example/acme)."
	cm := &scriptedModel{replies: []*schema.Message{
		callMsg("c1", "web_search", `{"query":"acme"}`),
		callMsg("c2", "web_search", `{"query":"acme cto"}`),
		callMsg("c3", "read_page", `{"url":"https://news.example/acme"}`),
		schema.AssistantMessage(final, nil),
	}}

	var observed []dm.ToolCallRecord
	obs := ToolObserverFunc(func(_ context.Context, rec dm.ToolCallRecord) error {
		observed = append(observed, rec)
		return nil
	})

	agent := NewToolAgent("primary-model", cm, schema.SystemMessage("sys"), []tools.Tool{search, read}, 8)
	res, err := agent.Research(context.Background(), "research acme", obs)
	require.NoError(t, err)

	assert.Equal(t, "primary-model", res.ModelUsed)
	assert.Equal(t, final, res.RawText)
	assert.Equal(t, 2, res.SearchCount())
	assert.Equal(t, 1, res.PagesRead())
	require.Len(t, observed, 3)
	assert.Equal(t, statusInProgress, observed[0].Status)
	assert.Equal(t, statusCompleted, res.ToolTrace[0].Status)
	assert.Len(t, cm.bound, 2)

	require.Len(t, res.Annotations, 1)
	ann := res.Annotations[0]
	assert.Equal(t, "https://news.example/acme", ann.URL)
	assert.Equal(t, final[*ann.StartIndex:*ann.EndIndex], ann.URL)

	// 第二轮输入包含工具结果
	last := cm.inputs[len(cm.inputs)-1]
	assert.Equal(t, schema.Tool, last[len(last)-1].Role)
	assert.Equal(t, "c3", last[len(last)-1].ToolCallID)
}

func TestToolAgent_ToolErrorIsFedBack(t *testing.T) {
	broken := &stubTool{name: "read_page", kind: dm.ToolPageRead, err: errors.New("status 403")}
	cm := &scriptedModel{replies: []*schema.Message{
		callMsg("c1", "read_page", `{"url":"https://x.example"}`),
		callMsg("c2", "no_such_tool", `{}`),
		schema.AssistantMessage("done", nil),
	}}

	res, err := NewToolAgent("m", cm, nil, []tools.Tool{broken}, 4).Research(context.Background(), "go", nil)
	require.NoError(t, err)
	require.Len(t, res.ToolTrace, 2)
	assert.Equal(t, statusFailed, res.ToolTrace[0].Status)
	assert.Equal(t, "status 403", res.ToolTrace[0].Error)
	assert.Equal(t, "unknown tool", res.ToolTrace[1].Error)

	second := cm.inputs[1]
	assert.Equal(t, "error: status 403", second[len(second)-1].Content)
}

func TestToolAgent_StepLimit(t *testing.T) {
	search := &stubTool{name: "web_search", kind: dm.ToolWebSearch, content: "[]"}
	replies := make([]*schema.Message, 0, 5)
	for i := 0; i < 5; i++ {
		replies = append(replies, callMsg(fmt.Sprintf("c%d", i), "web_search", `{"query":"q"}`))
	}
	cm := &scriptedModel{replies: replies}

	_, err := NewToolAgent("m", cm, nil, []tools.Tool{search}, 2).Research(context.Background(), "go", nil)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Len(t, search.calls, 2)
}

func TestToolAgent_ObserverAborts(t *testing.T) {
	search := &stubTool{name: "web_search", kind: dm.ToolWebSearch}
	cm := &scriptedModel{replies: []*schema.Message{callMsg("c1", "web_search", `{}`)}}
	stop := errors.New("stop")

	_, err := NewToolAgent("m", cm, nil, []tools.Tool{search}, 2).Research(context.Background(), "go",
		ToolObserverFunc(func(context.Context, dm.ToolCallRecord) error { return stop }))
	assert.ErrorIs(t, err, stop)
	assert.Empty(t, search.calls)
}

func TestToolAgent_ModelError(t *testing.T) {
	cm := &scriptedModel{err: errors.New("error, status code: 404, message: The model `gpt-x` does not exist")}
	_, err := NewToolAgent("m", cm, nil, nil, 2).Research(context.Background(), "go", nil)
	require.Error(t, err)
	assert.True(t, IsModelUnavailable(err))
}

func TestToolAgent_EmptyAnswer(t *testing.T) {
	cm := &scriptedModel{replies: []*schema.Message{schema.AssistantMessage("  ", nil)}}
	_, err := NewToolAgent("m", cm, nil, nil, 2).Research(context.Background(), "go", nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestStreamCompletion_Complete(t *testing.T) {
	cm := &scriptedModel{stream: []*schema.Message{
		{Role: schema.Assistant, Content: "## Company "},
		{Role: schema.Assistant, Content: "Overview\n"},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "ws1", Function: schema.FunctionCall{Name: "web_search"}}}},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{Function: schema.FunctionCall{Arguments: `{"q"`}}}},
		{Role: schema.Assistant, Content: "Acme sells widgets."},
	}}

	res, err := NewStreamCompletion("fallback-model", cm).Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "## Company Overview\nAcme sells widgets.", res.RawText)
	assert.Equal(t, "fallback-model", res.ModelUsed)
	assert.Equal(t, 1, res.SearchCount())
}

func TestStreamCompletion_Errors(t *testing.T) {
	_, err := NewStreamCompletion("m", &scriptedModel{err: errors.New("429 Too Many Requests")}).Complete(context.Background(), nil)
	assert.True(t, IsRateLimited(err))

	_, err = NewStreamCompletion("m", &scriptedModel{}).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestAccumulator_FailedIsTerminal(t *testing.T) {
	var acc accumulator
	acc.fold(tokenChunk{text: "partial"})
	acc.fold(errorChunk{err: errors.New("connection reset")})
	acc.fold(tokenChunk{text: " ignored"})
	acc.fold(endChunk{})

	assert.Equal(t, foldFailed, acc.state)
	assert.EqualError(t, acc.err, "connection reset")
	assert.Equal(t, "partial", acc.text.String())
}

func TestStreamCompletion_MidStreamError(t *testing.T) {
	sr, sw := schema.Pipe[*schema.Message](3)
	sw.Send(&schema.Message{Role: schema.Assistant, Content: "partial"}, nil)
	sw.Send(nil, errors.New("stream broken"))
	sw.Close()

	cm := &pipeModel{sr: sr}
	_, err := NewStreamCompletion("m", cm).Complete(context.Background(), nil)
	assert.EqualError(t, err, "stream broken")
}

type pipeModel struct {
	sr *schema.StreamReader[*schema.Message]
}

func (p *pipeModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not used")
}

func (p *pipeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return p.sr, nil
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsModelUnavailable(fmt.Errorf("wrap: %w", ErrModelUnavailable)))
	assert.True(t, IsModelUnavailable(errors.New(`{"code":"model_not_found"}`)))
	assert.True(t, IsModelUnavailable(errors.New("web search is not enabled for this model")))
	assert.False(t, IsModelUnavailable(errors.New("connection refused")))
	assert.True(t, IsModelUnavailable(errors.New("error, status code: 404, status: 404 Not Found")))
	assert.False(t, IsModelUnavailable(errors.New(`Post "https://api.example/v1/404/chat": EOF`)))
	assert.False(t, IsModelUnavailable(errors.New("error, status code: 500, request id: req_404abc")))
	assert.False(t, IsModelUnavailable(nil))

	assert.True(t, IsRateLimited(errors.New("status code: 429")))
	assert.True(t, IsRateLimited(errors.New(strings.ToUpper("too many requests"))))
	assert.False(t, IsRateLimited(nil))
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, dm.ToolWebSearch, kindFor("web_search"))
	assert.Equal(t, dm.ToolPageRead, kindFor("read_page"))
	assert.Equal(t, dm.ToolCodeExecution, kindFor("code_interpreter"))
	assert.Equal(t, dm.ToolCodeExecution, kindFor("python"))
}
