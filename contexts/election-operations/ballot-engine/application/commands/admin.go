package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "eligo/contexts/election-operations/ballot-engine/application"
	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

type SetupElectionCommand struct {
	ActorID   string
	Name      string
	Positions []entities.Position
}

type AddCandidateCommand struct {
	ActorID  string
	Name     string
	Bio      string
	PhotoURL string
	Position entities.Position
}

type TransitionElectionCommand struct {
	ActorID string
	Next    entities.ElectionStatus
}

// ElectionAdminUseCase covers the admin side of the election lifecycle:
// defining the election and its contested positions, filling the candidate
// catalog while in setup, and driving the one-way status transitions. Every
// action leaves an ADMIN_ACTION audit entry.
type ElectionAdminUseCase struct {
	Store     ports.BallotStore
	Elections ports.ElectionRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// SetupElection creates (or redefines, while still in setup) the single live
// election with its fixed position list.
func (uc ElectionAdminUseCase) SetupElection(ctx context.Context, cmd SetupElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	name := strings.TrimSpace(cmd.Name)
	if name == "" || len(cmd.Positions) == 0 || strings.TrimSpace(cmd.ActorID) == "" {
		return entities.Election{}, domainerrors.ErrInvalidInput
	}
	positions := normalizePositions(cmd.Positions)
	if len(positions) == 0 {
		return entities.Election{}, domainerrors.ErrInvalidInput
	}

	existing, err := uc.Elections.GetElection(ctx)
	if err != nil && !errors.Is(err, domainerrors.ErrElectionNotFound) {
		return entities.Election{}, err
	}
	if err == nil && existing.Status != entities.ElectionStatusSetup {
		return entities.Election{}, domainerrors.ErrElectionNotEditable
	}

	electionID := existing.ElectionID
	if electionID == "" {
		electionID, err = uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Election{}, err
		}
	}
	election := entities.Election{
		ElectionID: electionID,
		Name:       name,
		Positions:  positions,
		Status:     entities.ElectionStatusSetup,
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendAdminAudit(ctx, cmd.ActorID, "election_setup"); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election defined",
		"event", "ballot_election_setup",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"positions", positionStrings(positions),
	)
	return election, nil
}

// AddCandidate extends the catalog. The catalog is immutable once the
// election leaves setup.
func (uc ElectionAdminUseCase) AddCandidate(ctx context.Context, cmd AddCandidateCommand) (entities.Candidate, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(string(cmd.Position)) == "" ||
		strings.TrimSpace(cmd.ActorID) == "" {
		return entities.Candidate{}, domainerrors.ErrInvalidInput
	}

	election, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return entities.Candidate{}, err
	}
	if election.Status != entities.ElectionStatusSetup {
		return entities.Candidate{}, domainerrors.ErrElectionNotEditable
	}
	if !election.Contests(cmd.Position) {
		return entities.Candidate{}, domainerrors.ErrUnknownPosition
	}

	candidateID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Candidate{}, err
	}
	candidate := entities.Candidate{
		CandidateID: candidateID,
		Name:        strings.TrimSpace(cmd.Name),
		Bio:         strings.TrimSpace(cmd.Bio),
		PhotoURL:    strings.TrimSpace(cmd.PhotoURL),
		Position:    cmd.Position,
	}
	if err := uc.Elections.SaveCandidate(ctx, candidate); err != nil {
		return entities.Candidate{}, err
	}
	if err := uc.appendAdminAudit(ctx, cmd.ActorID, "candidate_added"); err != nil {
		return entities.Candidate{}, err
	}

	logger.Info("candidate added",
		"event", "ballot_candidate_added",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"candidate_id", candidate.CandidateID,
		"position", string(candidate.Position),
	)
	return candidate, nil
}

// TransitionElection applies setup -> active -> closed. Any other move fails
// with ErrInvalidTransition and mutates nothing.
func (uc ElectionAdminUseCase) TransitionElection(ctx context.Context, cmd TransitionElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ActorID) == "" {
		return entities.Election{}, domainerrors.ErrInvalidInput
	}
	if cmd.Next != entities.ElectionStatusActive && cmd.Next != entities.ElectionStatusClosed {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	election, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	if !election.CanTransitionTo(cmd.Next) {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	previous := election.Status
	election.Status = cmd.Next
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendAdminAudit(ctx, cmd.ActorID, "election_"+string(cmd.Next)); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendTransitionEvent(ctx, election, previous); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election transitioned",
		"event", "ballot_election_transitioned",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"from", string(previous),
		"to", string(election.Status),
	)
	return election, nil
}

func (uc ElectionAdminUseCase) appendAdminAudit(ctx context.Context, actorID string, detail string) error {
	entryID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return uc.Store.AppendAudit(ctx, entities.AuditEntry{
		EntryID:    entryID,
		VoterID:    strings.TrimSpace(actorID),
		Action:     entities.AuditActionAdminAction,
		Detail:     detail,
		OccurredAt: uc.now(),
	})
}

func (uc ElectionAdminUseCase) appendTransitionEvent(
	ctx context.Context,
	election entities.Election,
	previous entities.ElectionStatus,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	occurredAt := uc.now()
	envelope, err := newBallotEnvelope(eventID, "election.transitioned", election.ElectionID, occurredAt, map[string]any{
		"election_id": election.ElectionID,
		"from":        string(previous),
		"to":          string(election.Status),
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc ElectionAdminUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizePositions(raw []entities.Position) []entities.Position {
	seen := make(map[entities.Position]struct{}, len(raw))
	items := make([]entities.Position, 0, len(raw))
	for _, position := range raw {
		trimmed := entities.Position(strings.TrimSpace(string(position)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		items = append(items, trimmed)
	}
	return items
}
