package analysis

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/report-insight/internal/config"
)

const dashscopeCompatibleURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// NewChatModel 按 provider 创建 OpenAI 兼容的 ChatModel，返回模型名
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, string, error) {
	var apiKey, baseURL, modelName string

	switch cfg.Provider {
	case "openai", "":
		apiKey = cfg.OpenAI.APIKey
		baseURL = cfg.OpenAI.BaseURL
		modelName = cfg.OpenAI.Model
	case "alibaba", "qwen", "dashscope":
		apiKey = cfg.Alibaba.AccessKeySecret
		baseURL = dashscopeCompatibleURL
		modelName = cfg.Alibaba.Model
		if modelName == "" {
			modelName = "qwen-vl-max"
		}
	case "deepseek":
		apiKey = cfg.DeepSeek.APIKey
		baseURL = cfg.DeepSeek.BaseURL
		modelName = cfg.DeepSeek.Model
		if modelName == "" {
			modelName = "deepseek-chat"
		}
	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if apiKey == "" {
		return nil, "", fmt.Errorf("api_key is required for provider: %s", cfg.Provider)
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: &temperature,
		Timeout:     cfg.ModelTimeout(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create chat model: %w", err)
	}
	return cm, modelName, nil
}
