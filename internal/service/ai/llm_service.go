package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/service/gateway"
)

const providerName = "ark"

// Service answers companion turns through an Ark chat model wrapped in an eino chain.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the Ark-backed text completer from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel)
}

// NewServiceWithModel compiles the prompt chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// CompleteText implements gateway.TextCompleter.
func (s *Service) CompleteText(ctx context.Context, transcript []gateway.Exchange, systemFraming string) (string, error) {
	input := map[string]any{
		"system":  systemFraming,
		"history": buildHistoryMessages(transcript),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", gateway.Wrap(providerName, gateway.OpCompleteText, fmt.Errorf("failed to run AI chain: %w", err))
	}
	if response == nil {
		return "", nil
	}

	log.Printf("[ai] generated reply, exchanges=%d, length=%d", len(transcript), len(response.Content))
	return response.Content, nil
}

func buildHistoryMessages(transcript []gateway.Exchange) []*schema.Message {
	if len(transcript) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(transcript))
	for _, ex := range transcript {
		if strings.TrimSpace(ex.Text) == "" {
			continue
		}
		switch ex.Role {
		case gateway.RoleUser:
			history = append(history, schema.UserMessage(ex.Text))
		case gateway.RoleModel:
			history = append(history, schema.AssistantMessage(ex.Text, nil))
		}
	}
	return history
}
