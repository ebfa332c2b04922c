package vectorstore

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Nik0lay1/project-mind-mcp/internal/batch"
	"github.com/Nik0lay1/project-mind-mcp/internal/embed"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("vector store is closed")

// Store keeps chunk vectors in a coder/hnsw graph plus the chunk text they
// were computed from.
//
// Deletes are lazy: the node stays in the graph but loses its mapping, and
// Save rebuilds the graph once orphans pass Config.CompactRatio.
type Store struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	cfg      Config
	embedder embed.Embedder
	queries  embed.Embedder
	path     string
	logger   *slog.Logger

	idMap   map[string]uint64
	docs    map[uint64]Document
	nextKey uint64

	restored bool
	closed   bool
}

// Option configures a Store.
type Option func(*Store)

// WithPath makes the store durable: it is loaded from path on open and
// saved after every mutation.
func WithPath(path string) Option {
	return func(s *Store) { s.path = path }
}

// WithQueryEmbedder embeds query text with e instead of the index
// embedder, typically a CachedEmbedder around it. e must produce the same
// vectors as the index embedder.
func WithQueryEmbedder(e embed.Embedder) Option {
	return func(s *Store) { s.queries = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store whose vectors come from embedder. A zero
// cfg.Dimensions takes the embedder's dimension.
func New(cfg Config, embedder embed.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, perrors.ConfigError("vector store requires an embedder", nil)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedder.Dimensions()
	}
	if cfg.Dimensions != embedder.Dimensions() {
		return nil, perrors.ConfigError("vector store dimensions do not match the embedder", nil).
			WithDetail("store", strconv.Itoa(cfg.Dimensions)).
			WithDetail("embedder", strconv.Itoa(embedder.Dimensions()))
	}
	if cfg.Metric != "" && cfg.Metric != MetricCosine && cfg.Metric != MetricL2 {
		return nil, perrors.ConfigError("unknown distance metric "+cfg.Metric, nil)
	}
	cfg.applyDefaults()

	s := &Store{
		cfg:      cfg,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queries == nil {
		s.queries = embedder
	}
	if s.queries.Dimensions() != cfg.Dimensions {
		return nil, perrors.ConfigError("query embedder dimensions do not match the store", nil)
	}
	s.reset()

	if s.path == "" {
		return s, nil
	}
	err := s.load()
	switch {
	case err == nil:
		s.restored = true
		s.logger.Debug("vector_store_loaded",
			slog.String("path", s.path),
			slog.Int("chunks", len(s.idMap)))
	case errors.Is(err, fs.ErrNotExist):
		s.reset()
	default:
		s.logger.Warn("vector_store_discarded", perrors.LogAttrs(err)...)
		s.reset()
	}
	return s, nil
}

func (s *Store) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	switch s.cfg.Metric {
	case MetricL2:
		g.Distance = hnsw.EuclideanDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	g.M = s.cfg.M
	g.EfSearch = s.cfg.EfSearch
	g.Ml = 0.25
	return g
}

func (s *Store) reset() {
	s.graph = s.newGraph()
	s.idMap = make(map[string]uint64)
	s.docs = make(map[uint64]Document)
	s.nextKey = 0
}

// Restored reports whether the store was loaded from disk at open. A
// durable store that was not restored is empty.
func (s *Store) Restored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restored
}

// Upsert embeds and stores units, replacing any with the same ID.
func (s *Store) Upsert(ctx context.Context, units []batch.PendingUnit) error {
	if len(units) == 0 {
		return nil
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(units) {
		return perrors.InternalError("embedder returned the wrong number of vectors", nil).
			WithDetail("want", strconv.Itoa(len(units))).
			WithDetail("got", strconv.Itoa(len(vectors)))
	}
	for _, v := range vectors {
		if len(v) != s.cfg.Dimensions {
			return ErrDimensionMismatch{Expected: s.cfg.Dimensions, Got: len(v)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, u := range units {
		if key, ok := s.idMap[u.ID]; ok {
			delete(s.docs, key)
			delete(s.idMap, u.ID)
		}

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.cfg.Metric == MetricCosine && !normalizeInPlace(vec) {
			s.logger.Debug("zero_vector_skipped", slog.String("id", u.ID))
			continue
		}

		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[u.ID] = key
		s.docs[key] = Document{ID: u.ID, Source: u.Source, ChunkIndex: u.ChunkIndex, Text: u.Text}
	}
	return s.persistLocked()
}

// Delete removes chunks by ID. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := 0
	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.docs, key)
			delete(s.idMap, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return s.persistLocked()
}

// Clear drops every chunk.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.reset()
	return s.persistLocked()
}

// Query returns up to k chunks nearest to text, closest first.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k < 1 {
		return nil, nil
	}
	vec, err := s.queries.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != s.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.cfg.Dimensions, Got: len(vec)}
	}
	query := make([]float32, len(vec))
	copy(query, vec)
	if s.cfg.Metric == MetricCosine && !normalizeInPlace(query) {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.idMap) == 0 {
		return nil, nil
	}

	// Orphans still occupy result slots, so ask for enough to cover them.
	want := min(k+s.graph.Len()-len(s.idMap), s.graph.Len())
	nodes := s.graph.Search(query, want)

	hits := make([]Hit, 0, min(k, len(nodes)))
	for _, node := range nodes {
		doc, ok := s.docs[node.Key]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Document: doc, Distance: s.graph.Distance(query, node.Value)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Contains reports whether a chunk ID is stored.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[id]
	return ok
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Stats describes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Chunks:     len(s.idMap),
		GraphNodes: s.graph.Len(),
		Orphans:    s.graph.Len() - len(s.idMap),
		Dimensions: s.cfg.Dimensions,
		Model:      s.embedder.ModelName(),
	}
}

// Compact rebuilds the graph from live nodes, dropping orphans.
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactLocked()
}

func (s *Store) compactLocked() {
	keys := make([]uint64, 0, len(s.docs))
	for key := range s.docs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	g := s.newGraph()
	for _, key := range keys {
		vec, ok := s.graph.Lookup(key)
		if !ok {
			id := s.docs[key].ID
			delete(s.docs, key)
			delete(s.idMap, id)
			continue
		}
		g.Add(hnsw.MakeNode(key, vec))
	}
	before := s.graph.Len()
	s.graph = g
	s.logger.Debug("vector_store_compacted",
		slog.Int("before", before),
		slog.Int("after", g.Len()))
}

func (s *Store) needsCompaction() bool {
	live := len(s.idMap)
	orphans := s.graph.Len() - live
	if orphans == 0 {
		return false
	}
	return live == 0 || float64(orphans)/float64(live) > s.cfg.CompactRatio
}

// Save writes the store to its path. It is a no-op for an in-memory store.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if s.needsCompaction() {
		s.compactLocked()
	}
	return s.save()
}

// Close releases the graph. It does not save.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = s.newGraph()
	s.idMap = nil
	s.docs = nil
	return nil
}

// normalizeInPlace scales v to unit length and reports false for a zero
// vector.
func normalizeInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}
