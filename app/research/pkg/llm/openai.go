package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/iWorld-y/research_radar/app/research/pkg/config"
)

// NewOpenAIChatModel 初始化 OpenAI 兼容端点的模型
func NewOpenAIChatModel(ctx context.Context, ep config.EndpointConfig) (*openai.ChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: ep.BaseURL,
		APIKey:  ep.APIKey,
		Model:   ep.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM %s 初始化失败: %w", ep.Model, err)
	}
	return cm, nil
}
