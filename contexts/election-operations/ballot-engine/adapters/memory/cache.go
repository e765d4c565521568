package memory

import (
	"sync"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
)

// ResultsCache is a process-local cache for the aggregated tally. Entries
// expire after a short TTL; the cast path additionally invalidates on every
// successful write, so staleness is bounded by min(TTL, time since last
// write) even under heavy polling.
type ResultsCache struct {
	mu       sync.Mutex
	results  []entities.PositionTally
	storedAt time.Time
	valid    bool
	ttl      time.Duration
}

func NewResultsCache(ttl time.Duration) *ResultsCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &ResultsCache{ttl: ttl}
}

func (c *ResultsCache) Lookup(now time.Time) ([]entities.PositionTally, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	return copyResults(c.results), true
}

func (c *ResultsCache) Store(results []entities.PositionTally, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = copyResults(results)
	c.storedAt = now
	c.valid = true
}

// Invalidate drops the cached tally. Invalidation is coarse: the whole entry
// goes regardless of which positions changed, which keeps the cache trivially
// consistent at the cost of one recomputation.
func (c *ResultsCache) Invalidate(_ ...entities.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.results = nil
}

func copyResults(results []entities.PositionTally) []entities.PositionTally {
	items := make([]entities.PositionTally, 0, len(results))
	for _, tally := range results {
		items = append(items, entities.PositionTally{
			Position:   tally.Position,
			TotalVotes: tally.TotalVotes,
			Candidates: append([]entities.CandidateTally(nil), tally.Candidates...),
		})
	}
	return items
}
