package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_radar/app/research/pkg/logger"
	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/tools"
)

const (
	statusInProgress = "in_progress"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// ToolAgent 用 eino 工具调用模型实现 ResearchModel
type ToolAgent struct {
	name     string
	cm       model.ToolCallingChatModel
	tools    []tools.Tool
	byName   map[string]tools.Tool
	system   *schema.Message
	maxSteps int
}

// NewToolAgent 创建研究代理，maxSteps 为模型最多发起工具调用的轮数
func NewToolAgent(name string, cm model.ToolCallingChatModel, system *schema.Message, ts []tools.Tool, maxSteps int) *ToolAgent {
	if maxSteps <= 0 {
		maxSteps = 8
	}
	byName := make(map[string]tools.Tool, len(ts))
	for _, t := range ts {
		info, err := t.Info(context.Background())
		if err != nil || info == nil {
			continue
		}
		byName[info.Name] = t
	}
	return &ToolAgent{
		name:     name,
		cm:       cm,
		tools:    ts,
		byName:   byName,
		system:   system,
		maxSteps: maxSteps,
	}
}

var _ ResearchModel = (*ToolAgent)(nil)

func (a *ToolAgent) Name() string { return a.name }

// Research 循环执行 Generate，直到模型给出不含工具调用的最终回答
func (a *ToolAgent) Research(ctx context.Context, instruction string, obs ToolObserver) (*dm.InvocationResult, error) {
	infos, err := tools.Info(ctx, a.tools)
	if err != nil {
		return nil, fmt.Errorf("collect tool info: %w", err)
	}
	cm := a.cm
	if len(infos) > 0 {
		if cm, err = a.cm.WithTools(infos); err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
	}

	messages := make([]*schema.Message, 0, 2+a.maxSteps*2)
	if a.system != nil {
		messages = append(messages, a.system)
	}
	messages = append(messages, schema.UserMessage(instruction))

	result := &dm.InvocationResult{ModelUsed: a.name}
	var sources []dm.Source

	for step := 0; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := cm.Generate(ctx, messages)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return nil, ErrEmptyCompletion
			}
			result.RawText = text
			result.Annotations = annotate(text, sources)
			return result, nil
		}
		if step == a.maxSteps {
			break
		}

		messages = append(messages, resp)
		for _, call := range resp.ToolCalls {
			rec, content, found, err := a.runTool(ctx, call, obs)
			if err != nil {
				return nil, err
			}
			result.ToolTrace = append(result.ToolTrace, rec)
			sources = append(sources, found...)
			messages = append(messages, schema.ToolMessage(content, call.ID))
		}
	}

	return nil, fmt.Errorf("%w (%d)", ErrStepLimit, a.maxSteps)
}

// runTool 执行单次工具调用；工具自身的错误回传给模型，只有 ctx 失效或观察者拒绝时才中止
func (a *ToolAgent) runTool(ctx context.Context, call schema.ToolCall, obs ToolObserver) (dm.ToolCallRecord, string, []dm.Source, error) {
	rec := dm.ToolCallRecord{
		ID:        call.ID,
		Name:      call.Function.Name,
		Arguments: call.Function.Arguments,
		Status:    statusInProgress,
	}
	t, ok := a.byName[call.Function.Name]
	if ok {
		rec.Kind = t.Kind()
	} else {
		rec.Kind = kindFor(call.Function.Name)
	}

	if obs != nil {
		if err := obs.OnToolCall(ctx, rec); err != nil {
			return rec, "", nil, err
		}
	}

	if !ok {
		rec.Status = statusFailed
		rec.Error = "unknown tool"
		return rec, "error: unknown tool " + call.Function.Name, nil, nil
	}

	out, err := t.Invoke(ctx, call.Function.Arguments)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, "", nil, ctxErr
		}
		logger.Log.Warnf("工具 %s 执行失败: %v", rec.Name, err)
		rec.Status = statusFailed
		rec.Error = err.Error()
		return rec, "error: " + err.Error(), nil, nil
	}

	rec.Status = statusCompleted
	return rec, out.Content, out.Sources, nil
}

// annotate 为正文中出现过的来源生成标注，每个 URL 取首次出现位置
func annotate(text string, sources []dm.Source) []dm.Annotation {
	seen := make(map[string]bool, len(sources))
	var out []dm.Annotation
	for _, s := range sources {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true

		idx := strings.Index(text, s.URL)
		if idx < 0 {
			continue
		}
		start, end := idx, idx+len(s.URL)
		title := s.Title
		if title == "" {
			title = s.URL
		}
		out = append(out, dm.Annotation{Title: title, URL: s.URL, StartIndex: &start, EndIndex: &end})
	}
	return out
}
