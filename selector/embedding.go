package selector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mpoloni/persona-deck/persona"
)

// DefaultMinSimilarity is the cosine similarity below which Embedding
// reports no match.
const DefaultMinSimilarity = 0.3

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedding selects by cosine similarity between the intent and each trigger
// description. Trigger vectors are cached per id+description, so reloaded
// records with changed text re-embed while unchanged ones do not. Ties go to
// the last-loaded record, matching Keyword.
type Embedding struct {
	Embedder Embedder
	MinScore float64 // DefaultMinSimilarity when zero

	mu    sync.Mutex
	cache map[string][]float32
}

func (e *Embedding) Select(ctx context.Context, intent string, reg *persona.Registry) (Match, bool, error) {
	if e.Embedder == nil {
		return Match{}, false, errors.New("selector: embedder is required")
	}
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return Match{}, false, nil
	}
	minScore := e.MinScore
	if minScore <= 0 {
		minScore = DefaultMinSimilarity
	}

	records := reg.List()
	if len(records) == 0 {
		return Match{}, false, nil
	}

	triggers, err := e.triggerVectors(ctx, records)
	if err != nil {
		return Match{}, false, err
	}
	intentVecs, err := e.Embedder.Embed(ctx, []string{intent})
	if err != nil {
		return Match{}, false, fmt.Errorf("selector: embed intent: %w", err)
	}
	if len(intentVecs) != 1 {
		return Match{}, false, errors.New("selector: embedder returned no intent vector")
	}

	var best Match
	found := false
	for i, rec := range records {
		score := cosine(intentVecs[0], triggers[i])
		if score < minScore {
			continue
		}
		if !found || score >= best.Score {
			best = Match{Record: rec, Score: score}
			found = true
		}
	}
	return best, found, nil
}

func (e *Embedding) triggerVectors(ctx context.Context, records []persona.Record) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		e.cache = make(map[string][]float32)
	}

	out := make([][]float32, len(records))
	var missing []string
	var missingIdx []int
	for i, rec := range records {
		key := cacheKey(rec)
		if vec, ok := e.cache[key]; ok {
			out[i] = vec
			continue
		}
		missing = append(missing, rec.TriggerDescription)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.Embedder.Embed(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("selector: embed triggers: %w", err)
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("selector: expected %d trigger vectors, got %d", len(missing), len(vectors))
	}
	for j, i := range missingIdx {
		out[i] = vectors[j]
		e.cache[cacheKey(records[i])] = vectors[j]
	}
	return out, nil
}

func cacheKey(rec persona.Record) string {
	return rec.ID + "\x00" + rec.TriggerDescription
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// OpenAIEmbedder embeds texts with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder. model defaults to text-embedding-3-small.
func NewOpenAIEmbedder(apiKey string, model openai.EmbeddingModel) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("selector: openai api key is required")
	}
	if model == "" {
		model = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("selector: openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("selector: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("selector: embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}
