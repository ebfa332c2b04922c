package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// String returns the project type name.
func (p ProjectType) String() string {
	return string(p)
}

const (
	// DataDir is the per-project state directory, relative to the project root.
	DataDir = ".ai"
	// MetadataFile is the fingerprint table, relative to DataDir.
	MetadataFile = "index_metadata.json"
	// VectorStoreDir holds the persisted vector index, relative to DataDir.
	VectorStoreDir = "vector_store"
	// IndexIgnoreFile lists extra ignore substrings, relative to DataDir.
	IndexIgnoreFile = ".indexignore"

	bytesPerMB = 1024 * 1024
)

// Config represents the complete ProjectMind configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig configures extra exclusions on top of the built-in ignore lists.
type PathsConfig struct {
	// Exclude entries are matched as path substrings, like .indexignore lines.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// CacheConfig sizes the file and query caches.
type CacheConfig struct {
	// FileCapacity is the number of file contents kept (default: 50).
	FileCapacity int `yaml:"file_capacity" json:"file_capacity"`

	// QueryTTLSeconds is how long a query result stays valid (default: 300).
	// It must be at least 1.
	QueryTTLSeconds int `yaml:"query_ttl_seconds" json:"query_ttl_seconds"`

	// QueryMaxSize is the number of cached query results (default: 100).
	QueryMaxSize int `yaml:"query_max_size" json:"query_max_size"`

	// SweepIntervalSeconds enables proactive expiry sweeps. 0 disables.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" json:"sweep_interval_seconds"`
}

// IndexingConfig controls scanning, chunking and batching.
type IndexingConfig struct {
	// MaxMemoryMB is the batch memory ceiling (default: 100).
	MaxMemoryMB int `yaml:"max_memory_mb" json:"max_memory_mb"`

	// MaxBatchUnits caps chunks per batch. 0 means no unit limit.
	MaxBatchUnits int `yaml:"max_batch_units" json:"max_batch_units"`

	// MaxFileSizeMB skips larger files (default: 10).
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// UpsertBatchSize splits each flushed batch into sink calls of this size.
	UpsertBatchSize int `yaml:"upsert_batch_size" json:"upsert_batch_size"`

	// LockTimeoutSeconds bounds the wait for the commit lock (default: 5).
	LockTimeoutSeconds int `yaml:"lock_timeout_seconds" json:"lock_timeout_seconds"`

	// WatchDebounce is the quiet period before a watch-triggered run.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the MCP server process.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Cache: CacheConfig{
			FileCapacity:    50,
			QueryTTLSeconds: 300,
			QueryMaxSize:    100,
		},
		Indexing: IndexingConfig{
			MaxMemoryMB:        100,
			MaxFileSizeMB:      10,
			ChunkSize:          1000,
			ChunkOverlap:       100,
			UpsertBatchSize:    100,
			LockTimeoutSeconds: 5,
			WatchDebounce:      "500ms",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// Load loads configuration with precedence (lowest to highest):
//  1. Hardcoded defaults
//  2. Project config (.projectmind.yaml or .projectmind.yml in dir)
//  3. Environment variables (PROJECTMIND_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load .projectmind.yaml, then .projectmind.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".projectmind.yaml", ".projectmind.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return perrors.New(perrors.ErrCodeConfigNotFound, "failed to read config file "+path, err)
	}

	// Decoding over the defaults keeps keys the file omits and applies
	// explicit zeros, so Validate sees them.
	if err := yaml.Unmarshal(data, c); err != nil {
		return perrors.ConfigError("failed to parse config file "+path, err)
	}
	return nil
}

// envInts maps integer environment overrides to their fields.
func (c *Config) envInts() map[string]*int {
	return map[string]*int{
		"PROJECTMIND_MAX_MEMORY_MB":       &c.Indexing.MaxMemoryMB,
		"PROJECTMIND_MAX_FILE_SIZE_MB":    &c.Indexing.MaxFileSizeMB,
		"PROJECTMIND_MAX_BATCH_UNITS":     &c.Indexing.MaxBatchUnits,
		"PROJECTMIND_FILE_CACHE_CAPACITY": &c.Cache.FileCapacity,
		"PROJECTMIND_QUERY_TTL_SECONDS":   &c.Cache.QueryTTLSeconds,
		"PROJECTMIND_QUERY_CACHE_SIZE":    &c.Cache.QueryMaxSize,
	}
}

// applyEnvOverrides applies PROJECTMIND_* variables. An unparsable value is
// a configuration error rather than being ignored.
func (c *Config) applyEnvOverrides() error {
	for name, dst := range c.envInts() {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return perrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", name, v), err).
				WithDetail("env", name)
		}
		*dst = n
	}

	if v := os.Getenv("PROJECTMIND_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	return nil
}

// Validate fails fast on values that would otherwise be clamped silently.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"cache.file_capacity", c.Cache.FileCapacity},
		{"cache.query_ttl_seconds", c.Cache.QueryTTLSeconds},
		{"cache.query_max_size", c.Cache.QueryMaxSize},
		{"indexing.max_memory_mb", c.Indexing.MaxMemoryMB},
		{"indexing.max_file_size_mb", c.Indexing.MaxFileSizeMB},
		{"indexing.chunk_size", c.Indexing.ChunkSize},
		{"indexing.upsert_batch_size", c.Indexing.UpsertBatchSize},
		{"indexing.lock_timeout_seconds", c.Indexing.LockTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value < 1 {
			return perrors.ConfigError(fmt.Sprintf("%s must be at least 1, got %d", p.name, p.value), nil)
		}
	}

	if c.Cache.SweepIntervalSeconds < 0 {
		return perrors.ConfigError(fmt.Sprintf("cache.sweep_interval_seconds must be non-negative, got %d", c.Cache.SweepIntervalSeconds), nil)
	}
	if c.Indexing.MaxBatchUnits < 0 {
		return perrors.ConfigError(fmt.Sprintf("indexing.max_batch_units must be non-negative, got %d", c.Indexing.MaxBatchUnits), nil)
	}
	if c.Indexing.ChunkOverlap < 0 || c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize {
		return perrors.ConfigError(fmt.Sprintf("indexing.chunk_overlap must be in [0, chunk_size), got %d", c.Indexing.ChunkOverlap), nil)
	}
	if _, err := time.ParseDuration(c.Indexing.WatchDebounce); err != nil {
		return perrors.ConfigError("indexing.watch_debounce is not a duration", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return perrors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}

	return nil
}

// MaxMemoryBytes returns the batch memory ceiling in bytes.
func (c *Config) MaxMemoryBytes() int64 {
	return int64(c.Indexing.MaxMemoryMB) * bytesPerMB
}

// MaxFileSizeBytes returns the per-file size limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Indexing.MaxFileSizeMB) * bytesPerMB
}

// QueryTTL returns the query cache TTL.
func (c *Config) QueryTTL() time.Duration {
	return time.Duration(c.Cache.QueryTTLSeconds) * time.Second
}

// SweepInterval returns the expiry sweep period, zero when disabled.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalSeconds) * time.Second
}

// LockTimeout returns the bounded wait for the commit lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Indexing.LockTimeoutSeconds) * time.Second
}

// Debounce returns the parsed watch debounce. Validate guarantees it parses.
func (c *Config) Debounce() time.Duration {
	d, _ := time.ParseDuration(c.Indexing.WatchDebounce)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DataPath returns a path inside the project's data directory.
func DataPath(root string, elem ...string) string {
	return filepath.Join(append([]string{root, DataDir}, elem...)...)
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	switch {
	case fileExists(filepath.Join(dir, "go.mod")):
		return ProjectTypeGo
	case fileExists(filepath.Join(dir, "package.json")):
		return ProjectTypeNode
	case fileExists(filepath.Join(dir, "pyproject.toml")),
		fileExists(filepath.Join(dir, "requirements.txt")):
		return ProjectTypePython
	default:
		return ProjectTypeUnknown
	}
}

// FindProjectRoot walks up from startDir looking for .git or .projectmind.yaml.
// Falls back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) ||
			fileExists(filepath.Join(current, ".projectmind.yaml")) ||
			fileExists(filepath.Join(current, ".projectmind.yml")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
