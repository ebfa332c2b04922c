// Package chunk splits file content into overlapping, size-bounded chunks.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk size defaults, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text on the coarsest separator that yields pieces under
// Size, recursing into finer separators for pieces that are still too big,
// then merges adjacent pieces back up to Size with Overlap characters
// carried between consecutive chunks.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a Splitter. Zero values select the defaults.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 {
		overlap = DefaultChunkOverlap
	}
	if size < 0 || overlap < 0 {
		return nil, fmt.Errorf("chunk size and overlap must be positive, got %d/%d", size, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}, nil
}

// Size returns the maximum chunk length in characters.
func (s *Splitter) Size() int { return s.size }

// Chunk splits text. Whitespace-only text yields no chunks.
func (s *Splitter) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var finer []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	var out, small []string
	for _, piece := range strings.Split(text, sep) {
		if length(piece) < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small, sep)...)
			small = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, finer)...)
		}
	}
	if len(small) > 0 {
		out = append(out, s.merge(small, sep)...)
	}
	return out
}

// merge joins pieces with sep into chunks of at most size characters,
// keeping up to overlap characters of trailing pieces at the start of the
// next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := length(sep)
	var (
		docs    []string
		current []string
		total   int
	)

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		n := length(p)
		if joinedLen(n) > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (joinedLen(n) > s.size && total > 0) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
