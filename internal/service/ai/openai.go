package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/z-shelter/backend/internal/config"
	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
)

// OpenAIService 通过 OpenAI chat completions 生成回复
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(cfg config.OpenAIConfig) (*OpenAIService, error) {
	if !cfg.Enabled() {
		return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIService{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (s *OpenAIService) Generate(ctx context.Context, history []chat.Message, params chat.GenerationParams) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}

	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(history)),
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openAIRole(msg.Role), Content: msg.Content})
	}
	if params.Temperature != nil {
		req.Temperature = openAITemperature(*params.Temperature)
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	log.Printf("[ai] openai reply, model=%s, history=%d, length=%d", s.model, len(history), len(content))
	return content, nil
}

func openAIRole(role chat.Role) string {
	switch role {
	case chat.RoleSystem:
		return openai.ChatMessageRoleSystem
	case chat.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// openAITemperature Temperature 字段带 omitempty，0 会被省略而落到服务端默认值 1.0，
// 用最小正数表达确定性输出
func openAITemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
