package cache

import "sync"

// SetStats is a read-only snapshot of one Set's counters. Diagnostics only:
// nothing in the analysis pipeline depends on these numbers.
type SetStats struct {
	Name   string `json:"name"`
	Hits   int64  `json:"hits"`
	Misses int64  `json:"misses"`
	Items  int    `json:"items"`
}

func (s SetStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type statser interface {
	stats() SetStats
}

var (
	registryMu sync.Mutex
	registry   []statser
)

func register(s statser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, s)
}

// Stats reports a snapshot of every registered Set.
func Stats() []SetStats {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]SetStats, 0, len(registry))
	for _, s := range registry {
		out = append(out, s.stats())
	}
	return out
}
