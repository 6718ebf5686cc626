// Package openai dispatches persona invocations to the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mpoloni/persona-deck/dispatch"
)

// Config controls an OpenAI invoker.
type Config struct {
	APIKey     string
	Model      string            // default model id
	ModelHints map[string]string // persona model_hint -> concrete model id
	BaseURL    string
	MaxTokens  int
}

// Invoker calls the OpenAI chat completions API.
type Invoker struct {
	client    *openai.Client
	model     string
	hints     map[string]string
	maxTokens int
}

// New constructs an OpenAI invoker from config.
func New(cfg Config) (*Invoker, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai: model is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &Invoker{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		hints:     cfg.ModelHints,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// NewFromEnv builds an OpenAI invoker from environment variables.
func NewFromEnv() (*Invoker, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if apiKey == "" || model == "" {
		return nil, errors.New("openai: OPENAI_API_KEY and OPENAI_MODEL are required")
	}

	maxTokens := 0
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxTokens = n
		}
	}

	return New(Config{
		APIKey:    apiKey,
		Model:     model,
		BaseURL:   strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		MaxTokens: maxTokens,
	})
}

// Invoke sends the persona instructions as the system message and the user
// intent as the user message.
func (i *Invoker) Invoke(ctx context.Context, inv dispatch.Invocation) (dispatch.Reply, error) {
	userMessage := strings.TrimSpace(inv.UserMessage)
	if userMessage == "" {
		return dispatch.Reply{}, errors.New("openai: user message is empty")
	}

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     i.resolveModel(inv.ModelHint),
		MaxTokens: i.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: inv.Instructions,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage,
			},
		},
	})
	if err != nil {
		return dispatch.Reply{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return dispatch.Reply{}, errors.New("openai: response contained no choices")
	}

	choice := resp.Choices[0]
	return dispatch.Reply{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: dispatch.NormalizeUsage(dispatch.Usage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		}),
	}, nil
}

func (i *Invoker) resolveModel(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return i.model
	}
	if model, ok := i.hints[hint]; ok && strings.TrimSpace(model) != "" {
		return model
	}
	return i.model
}
