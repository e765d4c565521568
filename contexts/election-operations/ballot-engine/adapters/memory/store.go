package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory ballot store. One mutex guards the whole mutable
// state; Cast holds it across the duplicate check, the ballot appends and the
// audit appends so the check-then-act sequence is a single critical section.
// Readers take consistent copies under the read lock and aggregate outside it.
//
// Ballots live in a plain slice. There is intentionally no per-voter index
// over them: ballots must stay structurally unlinkable to voters.
type Store struct {
	mu sync.RWMutex

	voters   map[string]entities.Voter
	ballots  []entities.Ballot
	audit    []entities.AuditEntry
	sessions map[string]entities.Session

	election    entities.Election
	hasElection bool
	candidates  map[string]entities.Candidate

	outbox map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		voters:     make(map[string]entities.Voter),
		sessions:   make(map[string]entities.Session),
		candidates: make(map[string]entities.Candidate),
		outbox:     make(map[string]outboxRecord),
	}
}

func (s *Store) RegisterVoter(_ context.Context, voterID string) (entities.Voter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.Voter{}, false, domainerrors.ErrInvalidInput
	}
	if voter, ok := s.voters[voterID]; ok {
		return copyVoter(voter), false, nil
	}
	voter := entities.Voter{VoterID: voterID}
	s.voters[voterID] = voter
	return copyVoter(voter), true, nil
}

func (s *Store) GetVoter(_ context.Context, voterID string) (entities.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voter, ok := s.voters[strings.TrimSpace(voterID)]
	if !ok {
		return entities.Voter{}, domainerrors.ErrUnknownVoter
	}
	return copyVoter(voter), nil
}

// Cast commits the whole request or nothing. The duplicate check and every
// append happen under one lock acquisition; releasing between them would
// reopen the duplicate-vote race this store exists to close.
func (s *Store) Cast(_ context.Context, request ports.CastRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voter, ok := s.voters[strings.TrimSpace(request.VoterID)]
	if !ok {
		return domainerrors.ErrUnknownVoter
	}
	for _, ballot := range request.Ballots {
		if voter.HasVoted(ballot.Position) {
			return domainerrors.ErrDuplicateVote
		}
	}

	for _, ballot := range request.Ballots {
		s.ballots = append(s.ballots, ballot)
		voter.VotedPositions = append(voter.VotedPositions, ballot.Position)
	}
	s.voters[voter.VoterID] = voter
	s.audit = append(s.audit, request.Audit...)
	return nil
}

// SnapshotBallots copies the ballot slice so tally aggregation never runs
// under the writer lock.
func (s *Store) SnapshotBallots(_ context.Context) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Ballot(nil), s.ballots...), nil
}

func (s *Store) AppendAudit(_ context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAudit(_ context.Context, limit int, offset int) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || offset < 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	// Newest first.
	items := make([]entities.AuditEntry, 0, limit)
	for i := len(s.audit) - 1 - offset; i >= 0 && len(items) < limit; i-- {
		items = append(items, s.audit[i])
	}
	return items, nil
}

func (s *Store) GetElection(_ context.Context) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasElection {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return copyElection(s.election), nil
}

func (s *Store) SaveElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.election = copyElection(election)
	s.hasElection = true
	return nil
}

func (s *Store) SaveCandidate(_ context.Context, candidate entities.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[strings.TrimSpace(candidate.CandidateID)] = candidate
	return nil
}

func (s *Store) GetCandidate(_ context.Context, candidateID string) (entities.Candidate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.candidates[strings.TrimSpace(candidateID)]
	return candidate, ok, nil
}

func (s *Store) ListCandidates(_ context.Context) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Candidate, 0, len(s.candidates))
	for _, candidate := range s.candidates {
		items = append(items, candidate)
	}
	return items, nil
}

func (s *Store) PutSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := strings.TrimSpace(session.SessionID)
	if sessionID == "" {
		return domainerrors.ErrInvalidInput
	}
	session.SessionID = sessionID
	session.VoterID = strings.TrimSpace(session.VoterID)
	session.ExpiresAt = session.ExpiresAt.UTC()
	s.sessions[sessionID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string, now time.Time) (entities.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return entities.Session{}, false, nil
	}
	if session.Expired(now.UTC()) {
		delete(s.sessions, session.SessionID)
		return entities.Session{}, false, nil
	}
	return session, true, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sortOutboxByCreation(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func copyVoter(voter entities.Voter) entities.Voter {
	return entities.Voter{
		VoterID:        voter.VoterID,
		VotedPositions: append([]entities.Position(nil), voter.VotedPositions...),
	}
}

func copyElection(election entities.Election) entities.Election {
	return entities.Election{
		ElectionID: election.ElectionID,
		Name:       election.Name,
		Positions:  append([]entities.Position(nil), election.Positions...),
		Status:     election.Status,
	}
}

func sortOutboxByCreation(items []ports.OutboxMessage) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
