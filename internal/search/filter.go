package search

import (
	"path"
	"strings"
)

// FilterFunc reports whether a result passes a filter.
type FilterFunc func(r *Result) bool

// ApplyFilters keeps the results that pass every filter in req.
func ApplyFilters(results []Result, req Request) []Result {
	filters := buildFilters(req)
	if len(filters) == 0 {
		return results
	}

	kept := make([]Result, 0, len(results))
	for i := range results {
		if matchesAll(&results[i], filters) {
			kept = append(kept, results[i])
		}
	}
	return kept
}

func buildFilters(req Request) []FilterFunc {
	var filters []FilterFunc
	if req.MinRelevance > 0 {
		filters = append(filters, minRelevanceFilter(req.MinRelevance))
	}
	if len(req.FileTypes) > 0 {
		filters = append(filters, fileTypeFilter(req.FileTypes))
	}
	if len(req.ExcludeDirs) > 0 {
		filters = append(filters, excludeDirFilter(req.ExcludeDirs))
	}
	return filters
}

func matchesAll(r *Result, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(r) {
			return false
		}
	}
	return true
}

func minRelevanceFilter(min float64) FilterFunc {
	return func(r *Result) bool {
		return r.Relevance >= min
	}
}

// fileTypeFilter matches the source extension case-insensitively. Entries
// may omit the leading dot.
func fileTypeFilter(types []string) FilterFunc {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		allowed[t] = struct{}{}
	}
	return func(r *Result) bool {
		_, ok := allowed[strings.ToLower(path.Ext(r.Source))]
		return ok
	}
}

// excludeDirFilter drops sources containing any entry as a substring.
func excludeDirFilter(dirs []string) FilterFunc {
	return func(r *Result) bool {
		for _, d := range dirs {
			if d != "" && strings.Contains(r.Source, d) {
				return false
			}
		}
		return true
	}
}
