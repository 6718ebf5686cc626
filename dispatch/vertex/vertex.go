// Package vertex dispatches persona invocations to the Vertex AI Gemini
// REST API using Application Default Credentials.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mpoloni/persona-deck/dispatch"
)

// Config controls a Vertex Gemini invoker.
type Config struct {
	Project     string
	Location    string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
	TokenSource oauth2.TokenSource
}

// Invoker calls the Vertex AI Gemini generateContent endpoint.
type Invoker struct {
	project     string
	location    string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
	cred        oauth2.TokenSource
}

// New constructs a Vertex Gemini invoker from config.
func New(cfg Config) (*Invoker, error) {
	project := strings.TrimSpace(cfg.Project)
	model := strings.TrimSpace(cfg.Model)
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	if project == "" || model == "" {
		return nil, errors.New("vertex: project and model are required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://aiplatform.googleapis.com/v1"
	}

	ts := cfg.TokenSource
	if ts == nil {
		var err error
		ts, err = google.DefaultTokenSource(context.Background(), "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("vertex adc: %w", err)
		}
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &Invoker{
		project:     project,
		location:    location,
		model:       model,
		baseURL:     strings.TrimRight(base, "/"),
		temperature: temp,
		maxTokens:   maxTokens,
		client:      client,
		cred:        ts,
	}, nil
}

// NewFromEnv builds a Vertex Gemini invoker from environment variables.
func NewFromEnv() (*Invoker, error) {
	cfg := Config{
		Project:  strings.TrimSpace(os.Getenv("VERTEX_PROJECT")),
		Location: strings.TrimSpace(os.Getenv("VERTEX_LOCATION")),
		Model:    strings.TrimSpace(os.Getenv("VERTEX_MODEL")),
		BaseURL:  strings.TrimSpace(os.Getenv("VERTEX_API_BASE")),
	}
	if temp := strings.TrimSpace(os.Getenv("VERTEX_TEMPERATURE")); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			cfg.Temperature = v
		}
	}
	if max := strings.TrimSpace(os.Getenv("VERTEX_MAX_TOKENS")); max != "" {
		if v, err := strconv.Atoi(max); err == nil {
			cfg.MaxTokens = v
		}
	}
	return New(cfg)
}

// Invoke calls Vertex AI generateContent with the persona instructions as
// the system instruction. The model hint is ignored; Vertex deployments pin
// a single model per invoker.
func (i *Invoker) Invoke(ctx context.Context, inv dispatch.Invocation) (dispatch.Reply, error) {
	if i.cred == nil {
		return dispatch.Reply{}, errors.New("vertex: token source not configured")
	}
	userMessage := strings.TrimSpace(inv.UserMessage)
	if userMessage == "" {
		return dispatch.Reply{}, errors.New("vertex: user message is empty")
	}

	reqBody, err := i.buildRequest(inv.Instructions, userMessage)
	if err != nil {
		return dispatch.Reply{}, err
	}

	endpoint := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		i.baseURL, i.project, i.location, i.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return dispatch.Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := i.cred.Token()
	if err != nil {
		return dispatch.Reply{}, fmt.Errorf("vertex token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := i.client.Do(req)
	if err != nil {
		return dispatch.Reply{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readResponseBody(resp)
		return dispatch.Reply{}, fmt.Errorf("vertex gemini error: status %d: %s", resp.StatusCode, body)
	}

	var parsed vertexResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return dispatch.Reply{}, err
	}
	if len(parsed.Candidates) == 0 {
		return dispatch.Reply{}, errors.New("vertex: response contained no candidates")
	}

	var reply strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		reply.WriteString(part.Text)
	}

	return dispatch.Reply{
		Text:       strings.TrimSpace(reply.String()),
		StopReason: parsed.Candidates[0].FinishReason,
		Usage: dispatch.NormalizeUsage(dispatch.Usage{
			Input:  parsed.UsageMetadata.PromptTokenCount,
			Output: parsed.UsageMetadata.CandidatesTokenCount,
			Total:  parsed.UsageMetadata.TotalTokenCount,
		}),
	}, nil
}

func (i *Invoker) buildRequest(instructions, userMessage string) ([]byte, error) {
	request := vertexRequest{
		Contents: []vertexContent{{
			Role:  "user",
			Parts: []vertexPart{{Text: userMessage}},
		}},
		GenerationConfig: vertexGenerationConfig{
			Temperature:     i.temperature,
			MaxOutputTokens: i.maxTokens,
		},
	}
	if strings.TrimSpace(instructions) != "" {
		request.SystemInstruction = &vertexSystemInstruction{
			Parts: []vertexPart{{Text: instructions}},
		}
	}
	return json.Marshal(request)
}

func readResponseBody(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return "<empty body>", nil
	}
	if len(body) > 1200 {
		return body[:1200] + "... (truncated)", nil
	}
	return body, nil
}

type vertexRequest struct {
	SystemInstruction *vertexSystemInstruction `json:"system_instruction,omitempty"`
	Contents          []vertexContent          `json:"contents"`
	GenerationConfig  vertexGenerationConfig   `json:"generationConfig,omitempty"`
}

type vertexSystemInstruction struct {
	Parts []vertexPart `json:"parts,omitempty"`
}

type vertexContent struct {
	Role  string       `json:"role"`
	Parts []vertexPart `json:"parts"`
}

type vertexPart struct {
	Text string `json:"text,omitempty"`
}

type vertexGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type vertexResponse struct {
	Candidates    []vertexCandidate   `json:"candidates"`
	UsageMetadata vertexUsageMetadata `json:"usageMetadata"`
}

type vertexCandidate struct {
	Content      vertexContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type vertexUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
