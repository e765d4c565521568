package commands

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

// CastVotesCommand carries one voter's choices for one or more contested
// positions. A later call for positions not covered here is legal; re-casting
// any position in it is not.
type CastVotesCommand struct {
	VoterID string
	Choices map[entities.Position]string
}

// CastVotesUseCase is the single write path for ballots. Catalog validation
// happens up front against immutable data; the duplicate check and every
// mutation are delegated to the store's atomic Cast so no partial ballot can
// ever be observed.
type CastVotesUseCase struct {
	Store     ports.BallotStore
	Elections ports.ElectionRepository
	Cache     ports.ResultsCache
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVotes validates and commits the whole submission or none of it.
// Failed attempts are intentionally not audited, so a failing voter cannot be
// enumerated from the audit log.
func (uc CastVotesUseCase) CastVotes(ctx context.Context, cmd CastVotesCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	if voterID == "" || len(cmd.Choices) == 0 {
		return domainerrors.ErrInvalidInput
	}

	election, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return err
	}
	if election.Status != entities.ElectionStatusActive {
		logger.Warn("cast rejected outside active election",
			"event", "ballot_cast_election_not_active",
			"module", "election-operations/ballot-engine",
			"layer", "application",
			"election_status", string(election.Status),
		)
		return domainerrors.ErrElectionNotActive
	}

	positions := make([]entities.Position, 0, len(cmd.Choices))
	for position, candidateID := range cmd.Choices {
		if strings.TrimSpace(candidateID) == "" {
			return domainerrors.ErrInvalidInput
		}
		if !election.Contests(position) {
			return domainerrors.ErrUnknownPosition
		}
		candidate, found, err := uc.Elections.GetCandidate(ctx, candidateID)
		if err != nil {
			return err
		}
		if !found || candidate.Position != position {
			return domainerrors.ErrInvalidCandidate
		}
		positions = append(positions, position)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	now := uc.now()
	// Ballot timestamps are coarsened to the minute so they cannot be joined
	// against audit timestamps to recover who chose whom.
	ballotAt := now.Truncate(time.Minute)

	request := ports.CastRequest{
		VoterID: voterID,
		Ballots: make([]entities.Ballot, 0, len(positions)),
		Audit:   make([]entities.AuditEntry, 0, len(positions)),
	}
	for _, position := range positions {
		entryID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		request.Ballots = append(request.Ballots, entities.Ballot{
			Position:    position,
			CandidateID: strings.TrimSpace(cmd.Choices[position]),
			CastAt:      ballotAt,
		})
		request.Audit = append(request.Audit, entities.AuditEntry{
			EntryID:    entryID,
			VoterID:    voterID,
			Action:     entities.AuditActionVoteCast,
			Position:   position,
			OccurredAt: now,
		})
	}

	if err := uc.Store.Cast(ctx, request); err != nil {
		return err
	}

	if uc.Cache != nil {
		uc.Cache.Invalidate(positions...)
	}
	if err := uc.appendTallyInvalidated(ctx, election.ElectionID, positions, now); err != nil {
		return err
	}

	// Log fields deliberately omit candidate ids: voter identity and choice
	// must never meet in any output of this engine.
	logger.Info("ballots cast",
		"event", "ballot_cast_committed",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"voter_id", voterID,
		"positions", positionStrings(positions),
	)
	return nil
}

func (uc CastVotesUseCase) appendTallyInvalidated(
	ctx context.Context,
	electionID string,
	positions []entities.Position,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newBallotEnvelope(eventID, "tally.invalidated", electionID, occurredAt, map[string]any{
		"election_id": electionID,
		"positions":   positionStrings(positions),
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc CastVotesUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func positionStrings(positions []entities.Position) []string {
	items := make([]string, 0, len(positions))
	for _, position := range positions {
		items = append(items, string(position))
	}
	return items
}
