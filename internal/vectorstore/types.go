// Package vectorstore is the HNSW-backed chunk store that indexing writes to
// and search reads from.
package vectorstore

import (
	"fmt"
)

// Distance metrics supported by the store.
const (
	MetricCosine = "cos"
	MetricL2     = "l2"
)

// Config configures the HNSW graph.
type Config struct {
	// Dimensions must match the embedder.
	Dimensions int

	// Metric is "cos" (default) or "l2".
	Metric string

	// M is the max connections per layer (default: 16).
	M int

	// EfSearch is the candidate list size during search (default: 20).
	EfSearch int

	// CompactRatio triggers a graph rebuild on Save when orphaned nodes
	// exceed this fraction of live nodes (default: 0.5).
	CompactRatio float64
}

// DefaultConfig returns defaults for the given dimension.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:   dimensions,
		Metric:       MetricCosine,
		M:            16,
		EfSearch:     20,
		CompactRatio: 0.5,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig(c.Dimensions)
	if c.Metric == "" {
		c.Metric = d.Metric
	}
	if c.M == 0 {
		c.M = d.M
	}
	if c.EfSearch == 0 {
		c.EfSearch = d.EfSearch
	}
	if c.CompactRatio == 0 {
		c.CompactRatio = d.CompactRatio
	}
}

// Document is the metadata stored alongside each vector.
type Document struct {
	ID         string
	Source     string
	ChunkIndex int
	Text       string
}

// Hit is a single query result.
type Hit struct {
	Document
	// Distance is lower for closer matches (0..2 for cosine).
	Distance float32
}

// Stats describes the store contents.
type Stats struct {
	Chunks     int    `json:"chunks"`
	GraphNodes int    `json:"graph_nodes"`
	Orphans    int    `json:"orphans"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
}

// ErrDimensionMismatch indicates a vector of the wrong size.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
