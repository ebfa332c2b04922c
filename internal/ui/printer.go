package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
)

// Printer writes human-readable reports.
type Printer struct {
	out    io.Writer
	styled bool
	styles Styles
}

// NewPrinter creates a Printer. Styling is decided once from cfg.
func NewPrinter(cfg Config) *Printer {
	p := &Printer{out: cfg.Output, styled: cfg.Styled()}
	if p.styled {
		p.styles = DefaultStyles()
	} else {
		p.styles = NoColorStyles()
	}
	return p
}

type row struct {
	label string
	value string
}

// block renders a titled list of aligned rows, boxed when styled.
func (p *Printer) block(title string, rows []row) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.label))
	}

	lines := []string{p.styles.Header.Render(title)}
	for _, r := range rows {
		label := p.styles.Label.Render(fmt.Sprintf("%-*s", width+1, r.label+":"))
		lines = append(lines, label+" "+p.styles.Value.Render(r.value))
	}

	body := strings.Join(lines, "\n")
	if p.styled {
		body = p.styles.Panel.Render(body)
	}
	_, _ = fmt.Fprintln(p.out, body)
}

// Summary reports an index run.
func (p *Printer) Summary(title string, s *index.Summary) {
	rows := []row{
		{"Added", fmt.Sprint(s.Added)},
		{"Changed", fmt.Sprint(s.Changed)},
		{"Removed", fmt.Sprint(s.Removed)},
		{"Unchanged", fmt.Sprint(s.Unchanged)},
		{"Skipped", fmt.Sprint(s.Skipped)},
		{"Chunks", fmt.Sprintf("%d in %d batches", s.Chunks, s.Batches)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	p.block(title, rows)
	if s.Aborted {
		p.Warn("The run stopped early; completed files were saved.")
	}
}

// IndexStats reports what is indexed.
func (p *Printer) IndexStats(st *app.IndexStats) {
	last := "never"
	if !st.LastIndexed.IsZero() {
		last = st.LastIndexed.Local().Format("2006-01-02 15:04:05")
	}
	p.block("Index", []row{
		{"Chunks", fmt.Sprint(st.Chunks)},
		{"Tracked files", fmt.Sprint(st.TrackedFiles)},
		{"Last indexed", last},
		{"Model", fmt.Sprintf("%s (%d dimensions)", st.Store.Model, st.Store.Dimensions)},
		{"Graph nodes", fmt.Sprintf("%d (%d orphaned)", st.Store.GraphNodes, st.Store.Orphans)},
	})
}

// CacheReport reports both caches.
func (p *Printer) CacheReport(r app.CacheReport) {
	p.block("File cache", append(cacheRows(r.FileCache),
		row{"Stale misses", fmt.Sprint(r.FileCache.StaleMisses)}))
	p.block("Query cache", append(cacheRows(r.QueryCache),
		row{"Expirations", fmt.Sprint(r.QueryCache.Expirations)},
		row{"TTL", fmt.Sprintf("%ds", r.QueryTTLSeconds)}))
}

func cacheRows(st cache.CacheStats) []row {
	return []row{
		{"Hits", fmt.Sprint(st.Hits)},
		{"Misses", fmt.Sprint(st.Misses)},
		{"Hit rate", fmt.Sprintf("%.1f%%", st.HitRate()*100)},
		{"Size", fmt.Sprintf("%d/%d", st.Size, st.Capacity)},
	}
}

// Results prints search results, best first.
func (p *Printer) Results(results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render("No matches found."))
		return
	}
	for i, r := range results {
		header := p.styles.Source.Render(r.Source) +
			p.styles.Label.Render(fmt.Sprintf(" #%d  relevance %.2f", r.ChunkIndex, r.Relevance))
		text := r.Text
		if p.styled {
			text = lipgloss.NewStyle().PaddingLeft(2).Render(text)
		}
		if i > 0 {
			_, _ = fmt.Fprintln(p.out)
		}
		_, _ = fmt.Fprintf(p.out, "%s\n%s\n", header, text)
	}
}

// Success prints a confirmation line.
func (p *Printer) Success(msg string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Success.Render(msg))
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Warning.Render(msg))
}

// Error prints err with its code and hint.
func (p *Printer) Error(err error) {
	_, _ = fmt.Fprint(p.out, p.styles.Error.Render(strings.TrimRight(perrors.FormatForCLI(err), "\n"))+"\n")
}
