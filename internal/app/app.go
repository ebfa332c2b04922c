// Package app owns the long-lived state of one project: its caches, the
// fingerprint store, the vector store and the indexer. Every entry point
// (CLI command, MCP server, watcher) goes through a Context instead of
// package globals.
package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
	"github.com/Nik0lay1/project-mind-mcp/internal/chunk"
	"github.com/Nik0lay1/project-mind-mcp/internal/config"
	"github.com/Nik0lay1/project-mind-mcp/internal/embed"
	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/memory"
	"github.com/Nik0lay1/project-mind-mcp/internal/scanner"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
	"github.com/Nik0lay1/project-mind-mcp/internal/vectorstore"
)

// VectorIndexFile is the graph file name inside the vector store directory.
const VectorIndexFile = "index.hnsw"

// Options configures New.
type Options struct {
	// Root is the project root. Required.
	Root string

	// Config defaults to config.Load(Root).
	Config *config.Config

	// Embedder defaults to embed.NewStaticEmbedder. The Context closes it.
	Embedder embed.Embedder

	Logger *slog.Logger
}

// CacheReport is a snapshot of both content caches.
type CacheReport struct {
	FileCache  cache.CacheStats `json:"file_cache"`
	QueryCache cache.CacheStats `json:"query_cache"`
	// QueryTTLSeconds is the query cache TTL.
	QueryTTLSeconds int `json:"query_ttl_seconds"`
}

// IndexStats describes what is indexed.
type IndexStats struct {
	Chunks       int               `json:"chunks"`
	TrackedFiles int               `json:"tracked_files"`
	TableChunks  int               `json:"table_chunks"`
	LastIndexed  time.Time         `json:"last_indexed,omitempty"`
	Store        vectorstore.Stats `json:"store"`
}

// Context is the explicit owner of a project's caches, stores and indexer.
type Context struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger

	embedder embed.Embedder
	files    *cache.FileCache
	vectors  *vectorstore.Store
	search   *search.Service
	tables   *fingerprint.Store
	scanner  *scanner.Scanner
	indexer  *index.Indexer
	memory   *memory.Manager

	// rebuild is set when the fingerprint table describes chunks the vector
	// store no longer holds; the next run is forced.
	rebuild atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// New wires a Context for opts.Root. Call Close when done.
func New(ctx context.Context, opts Options) (*Context, error) {
	if opts.Root == "" {
		return nil, errors.New("project root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(root); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = embed.NewStaticEmbedder()
	}

	files, err := cache.NewFileCache(cfg.Cache.FileCapacity)
	if err != nil {
		return nil, err
	}

	vectors, err := vectorstore.New(vectorstore.Config{}, embedder,
		vectorstore.WithPath(config.DataPath(root, config.VectorStoreDir, VectorIndexFile)),
		vectorstore.WithQueryEmbedder(embed.NewCachedEmbedder(embedder, embed.DefaultEmbeddingCacheSize)),
		vectorstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	wired := false
	defer func() {
		if !wired {
			_ = vectors.Close()
		}
	}()

	searchSvc, err := search.NewService(vectors, cache.ExpiringOptions{
		TTL:           cfg.QueryTTL(),
		MaxSize:       cfg.Cache.QueryMaxSize,
		SweepInterval: cfg.SweepInterval(),
	}, logger)
	if err != nil {
		return nil, err
	}

	patterns, err := scanner.LoadIgnorePatterns(config.DataPath(root, config.IndexIgnoreFile))
	if err != nil {
		logger.Warn("index_ignore_unreadable", slog.String("error", err.Error()))
	}
	walker, err := scanner.New(scanner.Options{
		RootDir:        root,
		IgnorePatterns: append(patterns, cfg.Paths.Exclude...),
		MaxFileSize:    cfg.MaxFileSizeBytes(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	splitter, err := chunk.NewSplitter(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	tables := fingerprint.NewStore(config.DataPath(root, config.MetadataFile),
		fingerprint.WithLockTimeout(cfg.LockTimeout()),
		fingerprint.WithLogger(logger))

	indexer, err := index.New(index.Config{
		Root:            root,
		Walker:          walker,
		Chunker:         splitter,
		Sink:            vectors,
		Store:           tables,
		Reader:          files.Read,
		MaxBytes:        cfg.MaxMemoryBytes(),
		MaxUnits:        cfg.Indexing.MaxBatchUnits,
		UpsertBatchSize: cfg.Indexing.UpsertBatchSize,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	mem, err := NewMemory(root, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := mem.Init(ctx); err != nil {
		logger.Warn("memory_init_failed", slog.String("error", err.Error()))
	}

	c := &Context{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		files:    files,
		vectors:  vectors,
		search:   searchSvc,
		tables:   tables,
		scanner:  walker,
		indexer:  indexer,
		memory:   mem,
	}

	if !vectors.Restored() {
		table, err := tables.Load(ctx)
		if err != nil {
			return nil, err
		}
		if table.Len() > 0 {
			c.rebuild.Store(true)
			logger.Warn("vector_store_rebuild_required",
				slog.Int("tracked_files", table.Len()))
		}
	}

	searchSvc.Start(context.Background())
	wired = true
	return c, nil
}

// Root returns the absolute project root.
func (c *Context) Root() string { return c.root }

// Config returns the effective configuration.
func (c *Context) Config() *config.Config { return c.cfg }

// Logger returns the context's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Scanner returns the walker used for indexing, for callers that need the
// same ignore rules.
func (c *Context) Scanner() *scanner.Scanner { return c.scanner }

// IndexState reports the indexer's current state.
func (c *Context) IndexState() index.State { return c.indexer.State() }

// IndexFull indexes every file. With force the vector store and table are
// cleared first.
func (c *Context) IndexFull(ctx context.Context, force bool) (*index.Summary, error) {
	force = force || c.rebuild.Load()
	summary, err := c.indexer.IndexFull(ctx, force)
	c.afterRun(force, err)
	return summary, err
}

// IndexIncremental indexes only new, changed and removed files.
func (c *Context) IndexIncremental(ctx context.Context) (*index.Summary, error) {
	if c.rebuild.Load() {
		return c.IndexFull(ctx, true)
	}
	summary, err := c.indexer.IndexIncremental(ctx)
	c.afterRun(false, err)
	return summary, err
}

func (c *Context) afterRun(forced bool, err error) {
	// Even a failed run may have changed the store.
	c.search.Invalidate()
	if forced && err == nil {
		c.rebuild.Store(false)
	}
}

// ReadThroughCache returns the content of a project file through the file
// cache. path may be absolute or relative to the root but must stay inside
// the root.
func (c *Context) ReadThroughCache(path string) (string, error) {
	abs, err := c.resolve(path)
	if err != nil {
		return "", err
	}
	return c.files.Read(abs)
}

// Memory returns the project memory manager.
func (c *Context) Memory() *memory.Manager { return c.memory }

// NewMemory returns the memory manager for the project at root. The CLI uses
// it without wiring a whole Context.
func NewMemory(root string, cfg *config.Config, logger *slog.Logger) (*memory.Manager, error) {
	language := config.DetectProjectType(root)
	if language == config.ProjectTypeUnknown {
		language = ""
	}
	return memory.New(memory.Options{
		Path:        config.DataPath(root, memory.FileName),
		HistoryDir:  config.DataPath(root, memory.HistoryDirName),
		Language:    language.String(),
		LockTimeout: cfg.LockTimeout(),
		Logger:      logger,
	})
}

// Search runs a query through the query cache.
func (c *Context) Search(ctx context.Context, req search.Request) ([]search.Result, error) {
	return c.search.Search(ctx, req)
}

// CacheStatistics reports both content caches.
func (c *Context) CacheStatistics() CacheReport {
	return CacheReport{
		FileCache:       c.files.Stats(),
		QueryCache:      c.search.Stats(),
		QueryTTLSeconds: int(c.search.TTL() / time.Second),
	}
}

// IndexStats reports the vector store and fingerprint table contents.
func (c *Context) IndexStats(ctx context.Context) (*IndexStats, error) {
	table, err := c.tables.Load(ctx)
	if err != nil {
		return nil, err
	}
	ts := table.Stats()
	vs := c.vectors.Stats()
	return &IndexStats{
		Chunks:       vs.Chunks,
		TrackedFiles: ts.TotalFiles,
		TableChunks:  ts.TotalChunks,
		LastIndexed:  ts.LastIndexed,
		Store:        vs,
	}, nil
}

// Close stops background work and releases the stores. It is idempotent.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.search.Stop()
		c.closeErr = errors.Join(c.vectors.Close(), c.embedder.Close())
	})
	return c.closeErr
}
