package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "eligo/contexts/election-operations/ballot-engine/application"
	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

// RegisterSessionCommand is posted by the auth collaborator after it has
// verified an identity and issued a session token. The engine never issues
// tokens itself.
type RegisterSessionCommand struct {
	SessionID string
	VoterID   string
	Admin     bool
	ExpiresAt time.Time
}

type RegisterSessionUseCase struct {
	Store      ports.BallotStore
	Sessions   ports.SessionStore
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// RegisterSession stores the session, creates the voter on first
// authentication, and appends a LOGIN audit entry.
func (uc RegisterSessionUseCase) RegisterSession(ctx context.Context, cmd RegisterSessionCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	sessionID := strings.TrimSpace(cmd.SessionID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if sessionID == "" || voterID == "" {
		return domainerrors.ErrInvalidInput
	}

	now := uc.now()
	expiresAt := cmd.ExpiresAt.UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(uc.resolveSessionTTL())
	}

	if err := uc.Sessions.PutSession(ctx, entities.Session{
		SessionID: sessionID,
		VoterID:   voterID,
		Admin:     cmd.Admin,
		ExpiresAt: expiresAt,
	}); err != nil {
		return err
	}

	_, created, err := uc.Store.RegisterVoter(ctx, voterID)
	if err != nil {
		return err
	}

	entryID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	if err := uc.Store.AppendAudit(ctx, entities.AuditEntry{
		EntryID:    entryID,
		VoterID:    voterID,
		Action:     entities.AuditActionLogin,
		OccurredAt: now,
	}); err != nil {
		return err
	}

	logger.Info("session registered",
		"event", "ballot_session_registered",
		"module", "election-operations/ballot-engine",
		"layer", "application",
		"voter_id", voterID,
		"voter_created", created,
		"admin", cmd.Admin,
	)
	return nil
}

func (uc RegisterSessionUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc RegisterSessionUseCase) resolveSessionTTL() time.Duration {
	if uc.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return uc.SessionTTL
}
