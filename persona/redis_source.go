package persona

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RedisClient is the minimal interface required from a Redis client.
// Compatible with go-redis/v9 Client, ClusterClient, and Ring.
type RedisClient interface {
	Keys(ctx context.Context, pattern string) StringSliceCmd
	Get(ctx context.Context, key string) StringCmd
}

// Minimal result interfaces to avoid importing go-redis directly.
type StringCmd interface {
	Result() (string, error)
}
type StringSliceCmd interface {
	Result() ([]string, error)
}

// RedisSource loads persona documents stored one per key under a prefix.
// Keys are read in sorted order so load order stays stable across runs.
type RedisSource struct {
	Client RedisClient
	Prefix string // key prefix, e.g. "personas:"
	Parse  ParseFunc
}

func (r RedisSource) List(ctx context.Context) ([]Record, error) {
	if r.Client == nil {
		return nil, errors.New("persona: redis client is nil")
	}
	parse := r.Parse
	if parse == nil {
		parse = ParseFrontMatter
	}
	keys, err := r.Client.Keys(ctx, r.Prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("persona: redis keys: %w", err)
	}
	sort.Strings(keys)
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		doc, err := r.Client.Get(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("persona: redis get %s: %w", key, err)
		}
		name := strings.TrimPrefix(key, r.Prefix)
		rec, err := parse(name, key, []byte(doc))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
