// Package anthropic dispatches persona invocations to the Anthropic
// Messages API, directly or through Vertex AI.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mpoloni/persona-deck/dispatch"
)

// Config controls an Anthropic invoker.
type Config struct {
	APIKey      string
	Model       string            // default model id
	ModelHints  map[string]string // persona model_hint -> concrete model id
	BaseURL     string
	MaxTokens   int
	Temperature *float64
	HTTPClient  *http.Client
}

// Invoker calls the Anthropic Messages API.
type Invoker struct {
	client      anthropic.Client
	model       string
	hints       map[string]string
	maxTokens   int
	temperature *float64
}

// New constructs an Anthropic invoker from config.
func New(cfg Config) (*Invoker, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Invoker{
		client:      anthropic.NewClient(opts...),
		model:       model,
		hints:       cfg.ModelHints,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// NewFromEnv builds an Anthropic invoker from environment variables.
func NewFromEnv() (*Invoker, error) {
	apiKey := envTrimmed("ANTHROPIC_API_KEY")
	model := envTrimmed("ANTHROPIC_MODEL")
	if apiKey == "" || model == "" {
		return nil, errors.New("anthropic: ANTHROPIC_API_KEY and ANTHROPIC_MODEL are required")
	}

	maxTokens := 0
	if v := envTrimmed("ANTHROPIC_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxTokens = n
		}
	}

	var temperature *float64
	if v := envTrimmed("ANTHROPIC_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = &f
		}
	}

	return New(Config{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     envTrimmed("ANTHROPIC_BASE_URL"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

// Invoke sends the persona instructions as the system directive and the
// user intent as a single user message.
func (i *Invoker) Invoke(ctx context.Context, inv dispatch.Invocation) (dispatch.Reply, error) {
	userMessage := strings.TrimSpace(inv.UserMessage)
	if userMessage == "" {
		return dispatch.Reply{}, errors.New("anthropic: user message is empty")
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(i.resolveModel(inv.ModelHint)),
		MaxTokens: int64(i.maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage))},
	}
	if system := strings.TrimSpace(inv.Instructions); system != "" {
		req.System = []anthropic.TextBlockParam{{
			Text: system,
		}}
	}
	if i.temperature != nil {
		req.Temperature = anthropic.Float(*i.temperature)
	}

	msg, err := i.client.Messages.New(ctx, req)
	if err != nil {
		return dispatch.Reply{}, fmt.Errorf("anthropic: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			reply.WriteString(variant.Text)
		}
	}

	return dispatch.Reply{
		Text:       strings.TrimSpace(reply.String()),
		StopReason: string(msg.StopReason),
		Usage: dispatch.NormalizeUsage(dispatch.Usage{
			Input:  int(msg.Usage.InputTokens),
			Output: int(msg.Usage.OutputTokens),
		}),
	}, nil
}

// resolveModel maps an advisory model hint to a concrete model id. Unknown
// or empty hints fall back to the default model.
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

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
