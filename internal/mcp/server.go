package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/memory"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
	"github.com/Nik0lay1/project-mind-mcp/pkg/version"
)

// Backend is the project state the tools operate on. *app.Context
// implements it.
type Backend interface {
	IndexFull(ctx context.Context, force bool) (*index.Summary, error)
	IndexIncremental(ctx context.Context) (*index.Summary, error)
	Search(ctx context.Context, req search.Request) ([]search.Result, error)
	IndexStats(ctx context.Context) (*app.IndexStats, error)
	CacheStatistics() app.CacheReport
	Memory() *memory.Manager
}

// Server is the MCP server bridging AI clients with a project's index.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
}

// NewServer creates a server with every tool registered.
func NewServer(backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{backend: backend, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

// CallTool invokes a tool by name. args is decoded into the tool's input
// type as JSON would be.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "index_codebase":
		var in IndexCodebaseInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleIndexCodebase(ctx, in)
	case "index_changed_files":
		return s.handleIndexChanged(ctx)
	case "search_codebase":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleSearch(ctx, in)
	case "search_codebase_advanced":
		var in AdvancedSearchInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleAdvancedSearch(ctx, in)
	case "get_index_stats":
		return s.handleIndexStats(ctx)
	case "get_cache_stats":
		return s.handleCacheStats(ctx)
	case "read_memory":
		var in ReadMemoryInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleReadMemory(ctx, in)
	case "update_memory":
		var in UpdateMemoryInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleUpdateMemory(ctx, in)
	case "clear_memory":
		var in ClearMemoryInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleClearMemory(ctx, in)
	case "delete_memory_section":
		var in DeleteMemorySectionInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleDeleteMemorySection(ctx, in)
	case "save_memory_version":
		var in SaveMemoryVersionInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleSaveMemoryVersion(ctx, in)
	case "list_memory_versions":
		return s.handleListMemoryVersions(ctx)
	case "restore_memory_version":
		var in RestoreMemoryVersionInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleRestoreMemoryVersion(ctx, in)
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError(err.Error())
	}
	return nil
}

func (s *Server) handleIndexCodebase(ctx context.Context, in IndexCodebaseInput) (string, error) {
	summary, err := s.backend.IndexFull(ctx, in.Force)
	if err != nil {
		return "", s.toolError("index_codebase", err)
	}
	return FormatFullSummary(summary), nil
}

func (s *Server) handleIndexChanged(ctx context.Context) (string, error) {
	summary, err := s.backend.IndexIncremental(ctx)
	if err != nil {
		return "", s.toolError("index_changed_files", err)
	}
	return FormatIncrementalSummary(summary), nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	results, err := s.backend.Search(ctx, search.Request{Query: in.Query, N: in.NResults})
	if err != nil {
		return "", s.toolError("search_codebase", err)
	}

	s.logger.Info("search_codebase complete",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))
	return FormatResults(results), nil
}

func (s *Server) handleAdvancedSearch(ctx context.Context, in AdvancedSearchInput) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	results, err := s.backend.Search(ctx, search.Request{
		Query:        in.Query,
		N:            in.NResults,
		FileTypes:    in.FileTypes,
		ExcludeDirs:  in.ExcludeDirs,
		MinRelevance: in.MinRelevance,
	})
	if err != nil {
		return "", s.toolError("search_codebase_advanced", err)
	}

	s.logger.Info("search_codebase_advanced complete",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))
	return FormatScoredResults(results), nil
}

func (s *Server) handleIndexStats(ctx context.Context) (string, error) {
	st, err := s.backend.IndexStats(ctx)
	if err != nil {
		return "", s.toolError("get_index_stats", err)
	}
	return FormatIndexStats(st), nil
}

func (s *Server) handleCacheStats(_ context.Context) (string, error) {
	return FormatCacheStats(s.backend.CacheStatistics()), nil
}

func (s *Server) handleReadMemory(_ context.Context, in ReadMemoryInput) (string, error) {
	maxLines := memory.DefaultReadLines
	if in.MaxLines != nil {
		if *in.MaxLines <= 0 {
			return "", s.toolError("read_memory",
				perrors.ValidationError(fmt.Sprintf("max_lines must be positive, got %d", *in.MaxLines), nil))
		}
		maxLines = *in.MaxLines
	}
	if in.Full {
		maxLines = 0
	}
	ex, err := s.backend.Memory().Read(maxLines)
	if err != nil {
		return "", s.toolError("read_memory", err)
	}
	return FormatMemory(ex), nil
}

func (s *Server) handleUpdateMemory(ctx context.Context, in UpdateMemoryInput) (string, error) {
	if err := s.backend.Memory().Update(ctx, in.Section, in.Content); err != nil {
		return "", s.toolError("update_memory", err)
	}
	return "Memory updated successfully.", nil
}

func (s *Server) handleClearMemory(ctx context.Context, in ClearMemoryInput) (string, error) {
	keep := in.KeepTemplate == nil || *in.KeepTemplate
	if err := s.backend.Memory().Clear(ctx, keep); err != nil {
		return "", s.toolError("clear_memory", err)
	}
	if keep {
		return "Memory cleared (template preserved).", nil
	}
	return "Memory completely cleared.", nil
}

func (s *Server) handleDeleteMemorySection(ctx context.Context, in DeleteMemorySectionInput) (string, error) {
	removed, err := s.backend.Memory().DeleteSection(ctx, in.SectionName)
	if err != nil {
		return "", s.toolError("delete_memory_section", err)
	}
	if removed == 0 {
		return fmt.Sprintf("No section matching '%s' found.", in.SectionName), nil
	}
	return fmt.Sprintf("Section '%s' deleted successfully.", in.SectionName), nil
}

func (s *Server) handleSaveMemoryVersion(ctx context.Context, in SaveMemoryVersionInput) (string, error) {
	v, err := s.backend.Memory().SaveVersion(ctx, in.Description)
	if err != nil {
		return "", s.toolError("save_memory_version", err)
	}
	return "Memory version saved: " + v.FileName(), nil
}

func (s *Server) handleListMemoryVersions(_ context.Context) (string, error) {
	versions, err := s.backend.Memory().ListVersions()
	if err != nil {
		return "", s.toolError("list_memory_versions", err)
	}
	return FormatMemoryVersions(versions), nil
}

func (s *Server) handleRestoreMemoryVersion(ctx context.Context, in RestoreMemoryVersionInput) (string, error) {
	if _, err := s.backend.Memory().Restore(ctx, in.Timestamp); err != nil {
		return "", s.toolError("restore_memory_version", err)
	}
	return "Memory restored from version: " + strings.TrimSpace(in.Timestamp), nil
}

// toolError logs err and maps it for the client.
func (s *Server) toolError(tool string, err error) error {
	level := slog.LevelError
	if perrors.HasCode(err, perrors.ErrCodeInvalidQuery) || perrors.HasCode(err, perrors.ErrCodeInvalidInput) {
		level = slog.LevelDebug
	}
	s.logger.Log(context.Background(), level, "tool_failed",
		append([]any{slog.String("tool", tool)}, perrors.LogAttrs(err)...)...)
	return MapError(err)
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	handlers := map[string]func(*mcp.Tool){
		"index_codebase": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleIndexCodebase))
		},
		"index_changed_files": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(func(ctx context.Context, _ IndexChangedInput) (string, error) {
				return s.handleIndexChanged(ctx)
			}))
		},
		"search_codebase": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleSearch))
		},
		"search_codebase_advanced": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleAdvancedSearch))
		},
		"get_index_stats": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(func(ctx context.Context, _ StatsInput) (string, error) {
				return s.handleIndexStats(ctx)
			}))
		},
		"get_cache_stats": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(func(ctx context.Context, _ StatsInput) (string, error) {
				return s.handleCacheStats(ctx)
			}))
		},
		"read_memory": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleReadMemory))
		},
		"update_memory": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleUpdateMemory))
		},
		"clear_memory": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleClearMemory))
		},
		"delete_memory_section": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleDeleteMemorySection))
		},
		"save_memory_version": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleSaveMemoryVersion))
		},
		"list_memory_versions": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(func(ctx context.Context, _ ListMemoryVersionsInput) (string, error) {
				return s.handleListMemoryVersions(ctx)
			}))
		},
		"restore_memory_version": func(t *mcp.Tool) {
			mcp.AddTool(s.mcp, t, textHandler(s.handleRestoreMemoryVersion))
		},
	}

	for _, info := range toolInfos {
		handlers[info.Name](&mcp.Tool{Name: info.Name, Description: info.Description})
		s.logger.Debug("Registered tool", slog.String("name", info.Name))
	}
	s.logger.Info("MCP tools registered", slog.Int("count", len(toolInfos)))
}

// memoryResourceURI addresses the full project memory.
const memoryResourceURI = "project://memory"

// registerResources exposes the project memory as a readable resource.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "project-memory",
		URI:         memoryResourceURI,
		Description: "Project memory: status, tech stack and recorded decisions",
		MIMEType:    "text/markdown",
	}, s.readMemoryResource)
	s.logger.Debug("Registered resource", slog.String("uri", memoryResourceURI))
}

func (s *Server) readMemoryResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	ex, err := s.backend.Memory().Read(0)
	if err != nil {
		return nil, s.toolError("resource "+memoryResourceURI, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      memoryResourceURI,
			MIMEType: "text/markdown",
			Text:     ex.Text,
		}},
	}, nil
}

// textHandler adapts a string-producing handler to the SDK's typed handler.
func textHandler[In any](fn func(context.Context, In) (string, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		text, err := fn(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil, nil
	}
}

// Serve runs the server on the given transport until ctx ends.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
