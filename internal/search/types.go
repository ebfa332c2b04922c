// Package search answers semantic queries against the vector store through
// a TTL query cache.
package search

import (
	"context"

	"github.com/Nik0lay1/project-mind-mcp/internal/vectorstore"
)

// Result count bounds for a request.
const (
	DefaultResults = 5
	MaxResults     = 50
)

// Querier is the vector sink's query side.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]vectorstore.Hit, error)
}

// Request describes a search. The filter fields are optional and combine
// with AND logic.
type Request struct {
	Query string `json:"query"`

	// N is the number of results wanted, 1..MaxResults.
	N int `json:"n_results"`

	// FileTypes keeps only sources with one of these extensions
	// (".go" or "go").
	FileTypes []string `json:"file_types,omitempty"`

	// ExcludeDirs drops sources whose path contains any entry.
	ExcludeDirs []string `json:"exclude_dirs,omitempty"`

	// MinRelevance drops results below this relevance, 0..1.
	MinRelevance float64 `json:"min_relevance,omitempty"`
}

// filtered reports whether any filter is set.
func (r Request) filtered() bool {
	return len(r.FileTypes) > 0 || len(r.ExcludeDirs) > 0 || r.MinRelevance > 0
}

// Result is a single search result.
type Result struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
	// Relevance is 1 - distance/2, so 1 is identical and 0 is opposite.
	Relevance float64 `json:"relevance"`
}

// Relevance converts a cosine distance to a 0..1 relevance.
func Relevance(distance float32) float64 {
	return 1 - float64(distance)/2
}
