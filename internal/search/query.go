// Package search translates free-text queries into fuzzy span-near queries
// against the external event index and maps hits back to event ids.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// Result limits of the two call sites.
const (
	AutocompleteLimit = 5
	FullSearchLimit   = 10
)

// NameField is the document field queried for matches.
const NameField = "name"

var (
	// ErrEmptyQuery is returned when the query text has no tokens.
	ErrEmptyQuery = errors.New("empty search query")
	// ErrIndexUnavailable is returned when the search backend cannot be
	// reached or answers with a server error.
	ErrIndexUnavailable = errors.New("search index unavailable")
)

// Index is the search backend seen by the discovery layer.
type Index interface {
	// Search returns at most limit hits ordered by relevance, most relevant first.
	Search(ctx context.Context, text string, limit int) ([]model.SearchHit, error)
	// Upsert indexes or replaces a single event.
	Upsert(ctx context.Context, e model.Event) error
	// Rebuild drops the index and indexes events from scratch.
	Rebuild(ctx context.Context, events []model.Event) error
}

// Tokenize lowercases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// BuildQuery returns the bool/span_near query matching every token fuzzily
// against field, adjacent to each other in any order.
func BuildQuery(field string, tokens []string) map[string]any {
	clauses := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		clauses = append(clauses, map[string]any{
			"span_multi": map[string]any{
				"match": map[string]any{
					"fuzzy": map[string]any{
						field: map[string]any{
							"value":     tok,
							"fuzziness": "AUTO",
						},
					},
				},
			},
		})
	}
	return map[string]any{
		"bool": map[string]any{
			"must": []any{
				map[string]any{
					"span_near": map[string]any{
						"clauses":  clauses,
						"slop":     0,
						"in_order": false,
					},
				},
			},
		},
	}
}
