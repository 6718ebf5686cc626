package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpoloni/persona-deck/persona"
)

// fakeEmbedder maps known texts to fixed vectors and counts calls.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func embeddingRegistry(t *testing.T) *persona.Registry {
	t.Helper()
	reg, err := persona.Load(context.Background(), persona.StaticSource{
		{ID: "analytics", TriggerDescription: "analytics trigger", Instructions: "a"},
		{ID: "copywriter", TriggerDescription: "copywriter trigger", Instructions: "b"},
	})
	require.NoError(t, err)
	return reg
}

func TestEmbeddingSelectsClosestTrigger(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"analytics trigger":  {1, 0, 0},
		"copywriter trigger": {0, 1, 0},
		"track my funnel":    {0.9, 0.1, 0},
	}}
	sel := &Embedding{Embedder: emb}

	match, ok, err := sel.Select(context.Background(), "track my funnel", embeddingRegistry(t))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "analytics", match.Record.ID)
	assert.Greater(t, match.Score, 0.9)
}

func TestEmbeddingRejectsBelowThreshold(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"analytics trigger":  {1, 0, 0},
		"copywriter trigger": {0, 1, 0},
		"weather":            {0, 0, 1},
	}}
	sel := &Embedding{Embedder: emb, MinScore: 0.5}

	_, ok, err := sel.Select(context.Background(), "weather", embeddingRegistry(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCachesTriggerVectors(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"analytics trigger":  {1, 0, 0},
		"copywriter trigger": {0, 1, 0},
		"intent":             {1, 0, 0},
	}}
	sel := &Embedding{Embedder: emb}
	reg := embeddingRegistry(t)

	_, _, err := sel.Select(context.Background(), "intent", reg)
	require.NoError(t, err)
	firstCalls := emb.calls

	_, _, err = sel.Select(context.Background(), "intent", reg)
	require.NoError(t, err)
	// second pass embeds only the intent, triggers come from the cache
	assert.Equal(t, firstCalls+1, emb.calls)
}

func TestEmbeddingEmbedderErrorPropagates(t *testing.T) {
	sel := &Embedding{Embedder: &fakeEmbedder{err: errors.New("quota exceeded")}}
	_, _, err := sel.Select(context.Background(), "anything", embeddingRegistry(t))
	assert.Error(t, err)
}

func TestEmbeddingRequiresEmbedder(t *testing.T) {
	sel := &Embedding{}
	_, _, err := sel.Select(context.Background(), "anything", embeddingRegistry(t))
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosine(nil, nil))
}
