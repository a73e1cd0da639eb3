// Package tools holds the tools the research model may call while it works.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// Output 工具执行结果：回传给模型的文本与检索到的来源
type Output struct {
	Content string
	Sources []dm.Source
}

// Tool 可被研究模型调用的工具
type Tool interface {
	tool.InvokableTool
	Kind() dm.ToolKind
	Invoke(ctx context.Context, argumentsInJSON string) (*Output, error)
}

// Info 批量收集工具描述，用于绑定到模型
func Info(ctx context.Context, ts []Tool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func decodeArgs(argumentsInJSON string, v any) error {
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return fmt.Errorf("invalid tool arguments %q: %w", argumentsInJSON, err)
	}
	return nil
}
