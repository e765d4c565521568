package memory

import (
	"testing"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
)

func TestResultsCacheExpiresByTTL(t *testing.T) {
	cache := NewResultsCache(time.Second)
	now := time.Now().UTC()
	cache.Store([]entities.PositionTally{{Position: "President", TotalVotes: 3}}, now)

	if results, hit := cache.Lookup(now.Add(500 * time.Millisecond)); !hit || results[0].TotalVotes != 3 {
		t.Fatalf("expected cache hit inside TTL, hit=%v results=%v", hit, results)
	}
	if _, hit := cache.Lookup(now.Add(time.Second)); hit {
		t.Fatalf("expected cache miss at TTL boundary")
	}
}

func TestResultsCacheInvalidate(t *testing.T) {
	cache := NewResultsCache(time.Minute)
	now := time.Now().UTC()
	cache.Store([]entities.PositionTally{{Position: "President"}}, now)
	cache.Invalidate("President")
	if _, hit := cache.Lookup(now); hit {
		t.Fatalf("expected cache miss after invalidation")
	}
}

func TestResultsCacheHandsOutCopies(t *testing.T) {
	cache := NewResultsCache(time.Minute)
	now := time.Now().UTC()
	cache.Store([]entities.PositionTally{{
		Position:   "President",
		TotalVotes: 1,
		Candidates: []entities.CandidateTally{{CandidateID: "alice", Votes: 1, Percentage: 100}},
	}}, now)

	first, hit := cache.Lookup(now)
	if !hit {
		t.Fatalf("expected cache hit")
	}
	first[0].Candidates[0].Votes = 99

	second, hit := cache.Lookup(now)
	if !hit {
		t.Fatalf("expected cache hit")
	}
	if second[0].Candidates[0].Votes != 1 {
		t.Fatalf("cached tally mutated through a handed-out copy: %+v", second[0])
	}
}
