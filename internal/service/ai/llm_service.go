package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-shelter/backend/internal/config"
	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
)

// ErrEmptyHistory 历史为空时无法生成
var ErrEmptyHistory = errors.New("conversation history is empty")

// Service 基于 eino ChatModel 的生成服务，完整历史按原样送入模型。
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewService 使用 Ark 配置创建生成服务
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel)
}

// NewServiceWithModel wraps an existing chat model in a compiled chain.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// Generate 根据完整历史生成下一条助手回复
func (s *Service) Generate(ctx context.Context, history []chat.Message, params chat.GenerationParams) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}

	var opts []model.Option
	if params.Temperature != nil {
		opts = append(opts, model.WithTemperature(*params.Temperature))
	}
	if params.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*params.MaxTokens))
	}

	response, err := s.chain.Invoke(ctx, toSchemaMessages(history), compose.WithChatModelOption(opts...))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	log.Printf("[ai] generated reply, history=%d, length=%d", len(history), len(response.Content))
	return response.Content, nil
}

func toSchemaMessages(history []chat.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages
}
