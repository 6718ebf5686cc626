package selector

import (
	"context"
	"strings"
	"unicode"

	"github.com/mpoloni/persona-deck/persona"
)

// DefaultMinScore is the overlap fraction below which Keyword reports no match.
const DefaultMinScore = 0.2

// Keyword scores token overlap between the intent and each record's trigger
// description: the fraction of intent tokens that appear in the trigger text.
// Ties go to the last-loaded record, so operators can override defaults
// deterministically by load order.
type Keyword struct {
	MinScore float64 // DefaultMinScore when zero
}

func (k Keyword) Select(ctx context.Context, intent string, reg *persona.Registry) (Match, bool, error) {
	minScore := k.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	tokens := tokenize(intent)
	if len(tokens) == 0 {
		return Match{}, false, nil
	}

	var best Match
	found := false
	for _, rec := range reg.List() {
		score := overlap(tokens, tokenize(rec.TriggerDescription))
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

// tokenize lowercases and splits on non-letter/digit runes, dropping tokens
// shorter than three runes.
func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if len([]rune(field)) < 3 {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}

func overlap(intent, trigger map[string]struct{}) float64 {
	if len(intent) == 0 {
		return 0
	}
	hits := 0
	for token := range intent {
		if _, ok := trigger[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(intent))
}
