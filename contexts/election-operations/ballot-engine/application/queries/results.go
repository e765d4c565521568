package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "eligo/contexts/election-operations/ballot-engine/application"
	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// TallyUseCase is the read path. It aggregates over a ballot snapshot so it
// never holds the store's writer lock during aggregation, and serves from the
// results cache when the cast path has not invalidated it.
type TallyUseCase struct {
	Store     ports.BallotStore
	Elections ports.ElectionRepository
	Cache     ports.ResultsCache
	Clock     ports.Clock
	Logger    *slog.Logger
}

// Results returns per-position candidate counts and percentages. Candidates
// without ballots appear with zero counts; percentages are all zero when a
// position has no ballots. Results stay available after the election closes.
func (uc TallyUseCase) Results(ctx context.Context) ([]entities.PositionTally, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	if uc.Cache != nil {
		if cached, ok := uc.Cache.Lookup(now); ok {
			return cached, nil
		}
	}

	election, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := uc.Elections.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	ballots, err := uc.Store.SnapshotBallots(ctx)
	if err != nil {
		return nil, err
	}

	results := tallyBallots(election, candidates, ballots)
	if uc.Cache != nil {
		uc.Cache.Store(results, now)
	}
	logger.Debug("tally recomputed",
		"event", "ballot_tally_recomputed",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"ballot_count", len(ballots),
		"position_count", len(results),
	)
	return results, nil
}

// VoterStatus returns the positions the voter has already cast, sorted, so
// callers can gray out spent positions. Read-only, no side effects.
func (uc TallyUseCase) VoterStatus(ctx context.Context, voterID string) ([]entities.Position, error) {
	if strings.TrimSpace(voterID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	voter, err := uc.Store.GetVoter(ctx, strings.TrimSpace(voterID))
	if err != nil {
		return nil, err
	}
	positions := append([]entities.Position(nil), voter.VotedPositions...)
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions, nil
}

// AuditLog pages the append-only audit trail, newest first. Entries carry
// voter, action and position; candidate choices are structurally absent.
func (uc TallyUseCase) AuditLog(ctx context.Context, limit int, offset int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return uc.Store.ListAudit(ctx, limit, offset)
}

func (uc TallyUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func tallyBallots(
	election entities.Election,
	candidates []entities.Candidate,
	ballots []entities.Ballot,
) []entities.PositionTally {
	counts := make(map[entities.Position]map[string]int, len(election.Positions))
	for _, position := range election.Positions {
		counts[position] = make(map[string]int)
	}
	for _, candidate := range candidates {
		if bucket, ok := counts[candidate.Position]; ok {
			bucket[candidate.CandidateID] = 0
		}
	}
	for _, ballot := range ballots {
		bucket, ok := counts[ballot.Position]
		if !ok {
			continue
		}
		bucket[ballot.CandidateID]++
	}

	results := make([]entities.PositionTally, 0, len(election.Positions))
	for _, position := range election.Positions {
		bucket := counts[position]
		total := 0
		for _, votes := range bucket {
			total += votes
		}
		lines := make([]entities.CandidateTally, 0, len(bucket))
		for candidateID, votes := range bucket {
			percentage := 0.0
			if total > 0 {
				percentage = float64(votes) / float64(total) * 100
			}
			lines = append(lines, entities.CandidateTally{
				CandidateID: candidateID,
				Votes:       votes,
				Percentage:  percentage,
			})
		}
		sort.Slice(lines, func(i, j int) bool {
			if lines[i].Votes == lines[j].Votes {
				return lines[i].CandidateID < lines[j].CandidateID
			}
			return lines[i].Votes > lines[j].Votes
		})
		results = append(results, entities.PositionTally{
			Position:   position,
			TotalVotes: total,
			Candidates: lines,
		})
	}
	return results
}
