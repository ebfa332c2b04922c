package mcp

import (
	"fmt"
	"strings"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/memory"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
)

const noMatches = "No matches found."

// FormatFullSummary describes a full index run.
func FormatFullSummary(s *index.Summary) string {
	msg := fmt.Sprintf("Indexed %d files (%d chunks in %d batches).",
		s.Added+s.Changed+s.Unchanged, s.Chunks, s.Batches)
	if s.Removed > 0 {
		msg += fmt.Sprintf(" Removed %d files.", s.Removed)
	}
	return withAborted(msg, s)
}

// FormatIncrementalSummary describes an incremental index run.
func FormatIncrementalSummary(s *index.Summary) string {
	if s.Added+s.Changed+s.Removed == 0 && !s.Aborted {
		return "No changed files to index."
	}
	msg := fmt.Sprintf("Incrementally indexed %d changed files (%d chunks in %d batches).",
		s.Added+s.Changed, s.Chunks, s.Batches)
	if s.Removed > 0 {
		msg += fmt.Sprintf(" Removed %d files.", s.Removed)
	}
	return withAborted(msg, s)
}

func withAborted(msg string, s *index.Summary) string {
	if s.Aborted {
		msg += " The run stopped early; completed files were saved."
	}
	return msg
}

// FormatResults renders plain search results.
func FormatResults(results []search.Result) string {
	if len(results) == 0 {
		return noMatches
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("--- %s ---\n%s\n", r.Source, r.Text)
	}
	return strings.Join(parts, "\n")
}

// FormatScoredResults renders search results with their relevance.
func FormatScoredResults(results []search.Result) string {
	if len(results) == 0 {
		return noMatches
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("--- %s (relevance: %.2f) ---\n%s\n", r.Source, r.Relevance, r.Text)
	}
	return strings.Join(parts, "\n")
}

// FormatIndexStats describes the indexed corpus.
func FormatIndexStats(st *app.IndexStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vector store contains %d chunks.\n", st.Chunks)
	fmt.Fprintf(&sb, "Tracked files: %d\n", st.TrackedFiles)
	if st.LastIndexed.IsZero() {
		sb.WriteString("Last indexed: never\n")
	} else {
		fmt.Fprintf(&sb, "Last indexed: %s\n", st.LastIndexed.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&sb, "Embedding model: %s (%d dimensions)\n", st.Store.Model, st.Store.Dimensions)
	return sb.String()
}

// FormatCacheStats renders both cache reports as markdown.
func FormatCacheStats(r app.CacheReport) string {
	var sb strings.Builder
	sb.WriteString("# CACHE STATISTICS\n\n")
	sb.WriteString("## File Cache\n")
	writeCacheLines(&sb, r.FileCache)
	fmt.Fprintf(&sb, "- **Stale Misses**: %d\n\n", r.FileCache.StaleMisses)

	sb.WriteString("## Query Cache (vector search)\n")
	writeCacheLines(&sb, r.QueryCache)
	fmt.Fprintf(&sb, "- **Expirations**: %d\n", r.QueryCache.Expirations)
	fmt.Fprintf(&sb, "- **TTL**: %ds\n", r.QueryTTLSeconds)
	return sb.String()
}

func writeCacheLines(sb *strings.Builder, st cache.CacheStats) {
	fmt.Fprintf(sb, "- **Hits**: %d\n", st.Hits)
	fmt.Fprintf(sb, "- **Misses**: %d\n", st.Misses)
	fmt.Fprintf(sb, "- **Hit Rate**: %.1f%%\n", st.HitRate()*100)
	fmt.Fprintf(sb, "- **Size**: %d/%d\n", st.Size, st.Capacity)
}

// FormatMemory returns the memory excerpt with a note when lines were cut.
func FormatMemory(ex memory.Excerpt) string {
	if ex.Omitted == 0 {
		return ex.Text
	}
	return fmt.Sprintf("%s\n\n... (%d more lines truncated. Call read_memory with full=true for the whole file)",
		ex.Text, ex.Omitted)
}

// FormatMemoryVersions lists saved versions, newest first.
func FormatMemoryVersions(versions []memory.Version) string {
	if len(versions) == 0 {
		return "No memory versions found."
	}
	lines := make([]string, 0, len(versions))
	for _, v := range versions {
		line := fmt.Sprintf("- **%s**", v.ID)
		if v.Description != "" {
			line += ": " + v.Description
		}
		line += fmt.Sprintf(" (%s)", v.CreatedAt.Format("2006-01-02 15:04:05"))
		lines = append(lines, line)
	}
	return "# MEMORY VERSIONS\n\n" + strings.Join(lines, "\n")
}
