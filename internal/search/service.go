package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/vectorstore"
)

// Service runs queries against a Querier and caches the raw hits per
// (query, k). Filters are applied after the cache, so requests that differ
// only in filters share an entry.
type Service struct {
	querier Querier
	cache   *cache.ExpiringCache[uint64, []vectorstore.Hit]
	group   singleflight.Group
	logger  *slog.Logger

	// generation changes on Invalidate so in-flight queries started before
	// it do not repopulate the cache. genMu makes the check and the Put one
	// step with respect to Invalidate.
	genMu      sync.Mutex
	generation uint64
}

// NewService creates a Service. opts configure the query cache.
func NewService(q Querier, opts cache.ExpiringOptions, logger *slog.Logger) (*Service, error) {
	if q == nil {
		return nil, perrors.ConfigError("search requires a querier", nil)
	}
	c, err := cache.NewExpiringCache[uint64, []vectorstore.Hit](opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{querier: q, cache: c, logger: logger}, nil
}

// Validate checks a request and fills in the default N.
func Validate(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return perrors.New(perrors.ErrCodeInvalidQuery, "query cannot be empty", nil)
	}
	if req.N == 0 {
		req.N = DefaultResults
	}
	if req.N < 1 || req.N > MaxResults {
		return perrors.New(perrors.ErrCodeInvalidQuery,
			fmt.Sprintf("n_results must be between 1 and %d, got %d", MaxResults, req.N), nil)
	}
	if req.MinRelevance < 0 || req.MinRelevance > 1 {
		return perrors.New(perrors.ErrCodeInvalidQuery,
			fmt.Sprintf("min_relevance must be between 0 and 1, got %g", req.MinRelevance), nil)
	}
	return nil
}

// Search validates req, queries through the cache and returns at most N
// results. Filtered requests fetch 2N candidates before filtering.
func (s *Service) Search(ctx context.Context, req Request) ([]Result, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}

	k := req.N
	if req.filtered() {
		k *= 2
	}

	start := time.Now()
	hits, cached, err := s.query(ctx, req.Query, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:         h.ID,
			Source:     h.Source,
			ChunkIndex: h.ChunkIndex,
			Text:       h.Text,
			Distance:   h.Distance,
			Relevance:  Relevance(h.Distance),
		}
	}
	results = ApplyFilters(results, req)
	if len(results) > req.N {
		results = results[:req.N]
	}

	s.logger.Debug("search_complete",
		slog.Int("candidates", len(hits)),
		slog.Int("results", len(results)),
		slog.Bool("cached", cached),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

func (s *Service) query(ctx context.Context, text string, k int) ([]vectorstore.Hit, bool, error) {
	key := cacheKey(text, k)
	if hits, ok := s.cache.Get(key); ok {
		return hits, true, nil
	}

	gen := s.currentGeneration()
	v, err, _ := s.group.Do(strconv.FormatUint(key, 16)+"/"+strconv.FormatUint(gen, 10), func() (any, error) {
		hits, err := s.querier.Query(ctx, text, k)
		if err != nil {
			return nil, err
		}
		s.putIfCurrent(gen, key, hits)
		return hits, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		return nil, false, perrors.New(perrors.ErrCodeSearchFailed, "vector query failed", err)
	}
	return v.([]vectorstore.Hit), false, nil
}

// cacheKey digests the query parameters in a stable JSON form.
func cacheKey(text string, k int) uint64 {
	data, _ := json.Marshal(struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}{text, k})
	return xxhash.Sum64(data)
}

// Invalidate drops every cached result. Indexing calls it after the store
// changes.
func (s *Service) Invalidate() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generation++
	s.cache.Purge()
}

func (s *Service) currentGeneration() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation
}

// putIfCurrent caches hits unless an Invalidate happened since gen was read.
func (s *Service) putIfCurrent(gen, key uint64, hits []vectorstore.Hit) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation == gen {
		s.cache.Put(key, hits)
	}
}

// Stats returns the query cache statistics.
func (s *Service) Stats() cache.CacheStats {
	return s.cache.Stats()
}

// TTL returns the query cache TTL.
func (s *Service) TTL() time.Duration {
	return s.cache.TTL()
}

// Start runs the query cache sweeper if one is configured.
func (s *Service) Start(ctx context.Context) {
	s.cache.Start(ctx)
}

// Stop halts the sweeper.
func (s *Service) Stop() {
	s.cache.Stop()
}
