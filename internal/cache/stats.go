// Package cache provides the in-process caches: a bounded LRU, a TTL cache
// for query results, and a file-content cache validated by modification time.
//
// Every cache guards its bookkeeping with one mutex and never performs I/O
// while holding it.
package cache

// CacheStats is a point-in-time snapshot of a cache's counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`

	// Expirations counts accesses that found an entry past its TTL.
	Expirations uint64 `json:"expirations"`

	// StaleMisses counts file-cache lookups whose entry had an outdated mtime.
	StaleMisses uint64 `json:"stale_misses"`

	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

// Lookups returns every access that was answered, hit or not.
func (s CacheStats) Lookups() uint64 {
	return s.Hits + s.Misses + s.Expirations + s.StaleMisses
}

// HitRate returns hits over lookups in [0,1], or 0 before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Lookups()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
