package ports

import (
	"context"
	"encoding/json"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
)

// CastRequest is the fully validated write unit handed to the store. The
// store must apply the duplicate check, ballot appends, voted-position updates
// and audit appends as one atomic region; splitting the check from the write
// is the race that admits duplicate votes.
type CastRequest struct {
	VoterID string
	Ballots []entities.Ballot
	Audit   []entities.AuditEntry
}

// BallotStore owns all mutable election-run state: voters, the anonymous
// ballot multiset, and the append-only audit log. Implementations never hand
// out mutable references to their internals.
type BallotStore interface {
	// RegisterVoter creates the voter on first sight and reports whether it
	// was created by this call.
	RegisterVoter(ctx context.Context, voterID string) (entities.Voter, bool, error)
	GetVoter(ctx context.Context, voterID string) (entities.Voter, error)
	Cast(ctx context.Context, request CastRequest) error
	// SnapshotBallots returns a consistent copy of the ballot collection so
	// tally aggregation never runs under the writer lock.
	SnapshotBallots(ctx context.Context) ([]entities.Ballot, error)
	AppendAudit(ctx context.Context, entry entities.AuditEntry) error
	// ListAudit returns a page of audit entries, newest first.
	ListAudit(ctx context.Context, limit int, offset int) ([]entities.AuditEntry, error)
}

// ElectionRepository holds the admin-owned election and candidate catalog.
// The casting path consults it read-only.
type ElectionRepository interface {
	GetElection(ctx context.Context) (entities.Election, error)
	SaveElection(ctx context.Context, election entities.Election) error
	SaveCandidate(ctx context.Context, candidate entities.Candidate) error
	GetCandidate(ctx context.Context, candidateID string) (entities.Candidate, bool, error)
	ListCandidates(ctx context.Context) ([]entities.Candidate, error)
}

// SessionStore keeps auth-issued sessions for validity checks only. Issuance
// and verification of identities stay with the auth collaborator.
type SessionStore interface {
	PutSession(ctx context.Context, session entities.Session) error
	GetSession(ctx context.Context, sessionID string, now time.Time) (entities.Session, bool, error)
}

// ResultsCache bounds tally recomputation under read-heavy polling. The cast
// path invalidates affected positions proactively so staleness is bounded by
// min(TTL, time since last write).
type ResultsCache interface {
	Lookup(now time.Time) ([]entities.PositionTally, bool)
	Store(results []entities.PositionTally, now time.Time)
	Invalidate(positions ...entities.Position)
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
