package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the durable ballot store. The cast path runs inside one
// transaction with the voter row locked FOR UPDATE, so the duplicate check
// and the writes form a single critical section; the unique index on
// voter_positions backstops it at the schema level.
//
// The ballots table has no voter column and no foreign key to voters. Keep it
// that way.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) RegisterVoter(ctx context.Context, voterID string) (entities.Voter, bool, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.Voter{}, false, domainerrors.ErrInvalidInput
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&voterModel{ID: voterID, CreatedAt: time.Now().UTC()})
	if create.Error != nil {
		return entities.Voter{}, false, r.logError("ballot_repo_register_voter_failed", create.Error,
			"voter_id", voterID,
		)
	}
	created := create.RowsAffected > 0
	voter, err := r.GetVoter(ctx, voterID)
	if err != nil {
		return entities.Voter{}, false, err
	}
	return voter, created, nil
}

func (r *Repository) GetVoter(ctx context.Context, voterID string) (entities.Voter, error) {
	voterID = strings.TrimSpace(voterID)
	var row voterModel
	err := r.db.WithContext(ctx).
		Where("id = ?", voterID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Voter{}, domainerrors.ErrUnknownVoter
		}
		return entities.Voter{}, r.logError("ballot_repo_get_voter_failed", err, "voter_id", voterID)
	}

	var positionRows []voterPositionModel
	if err := r.db.WithContext(ctx).
		Where("voter_id = ?", voterID).
		Order("position ASC").
		Find(&positionRows).Error; err != nil {
		return entities.Voter{}, r.logError("ballot_repo_get_voter_positions_failed", err, "voter_id", voterID)
	}

	voter := entities.Voter{VoterID: row.ID}
	for _, item := range positionRows {
		voter.VotedPositions = append(voter.VotedPositions, entities.Position(item.Position))
	}
	return voter, nil
}

func (r *Repository) Cast(ctx context.Context, request ports.CastRequest) error {
	voterID := strings.TrimSpace(request.VoterID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voter voterModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", voterID).
			First(&voter).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUnknownVoter
			}
			return err
		}

		var votedRows []voterPositionModel
		if err := tx.Where("voter_id = ?", voterID).Find(&votedRows).Error; err != nil {
			return err
		}
		voted := make(map[string]struct{}, len(votedRows))
		for _, item := range votedRows {
			voted[item.Position] = struct{}{}
		}
		for _, ballot := range request.Ballots {
			if _, ok := voted[string(ballot.Position)]; ok {
				return domainerrors.ErrDuplicateVote
			}
		}

		for _, ballot := range request.Ballots {
			if err := tx.Create(&voterPositionModel{
				VoterID:  voterID,
				Position: string(ballot.Position),
			}).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrDuplicateVote
				}
				return err
			}
			if err := tx.Create(&ballotModel{
				Position:    string(ballot.Position),
				CandidateID: strings.TrimSpace(ballot.CandidateID),
				CastAt:      ballot.CastAt.UTC(),
			}).Error; err != nil {
				return err
			}
		}
		for _, entry := range request.Audit {
			if err := tx.Create(auditModelFromEntity(entry)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnknownVoter) || errors.Is(err, domainerrors.ErrDuplicateVote) {
			return err
		}
		// Log fields omit the request contents: candidate ids and voter ids
		// must never appear together, not even in failure logs.
		return r.logError("ballot_repo_cast_failed", err)
	}
	return nil
}

func (r *Repository) SnapshotBallots(ctx context.Context) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_snapshot_ballots_failed", err)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.Ballot{
			Position:    entities.Position(row.Position),
			CandidateID: row.CandidateID,
			CastAt:      row.CastAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) AppendAudit(ctx context.Context, entry entities.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(auditModelFromEntity(entry)).Error; err != nil {
		return r.logError("ballot_repo_append_audit_failed", err,
			"entry_id", strings.TrimSpace(entry.EntryID),
		)
	}
	return nil
}

func (r *Repository) ListAudit(ctx context.Context, limit int, offset int) ([]entities.AuditEntry, error) {
	if limit <= 0 || offset < 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	var rows []auditModel
	if err := r.db.WithContext(ctx).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_audit_failed", err, "limit", limit, "offset", offset)
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetElection(ctx context.Context) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("ballot_repo_get_election_failed", err)
	}
	return row.toEntity()
}

func (r *Repository) SaveElection(ctx context.Context, election entities.Election) error {
	row, err := electionModelFromEntity(election)
	if err != nil {
		return err
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":      row.Name,
			"positions": row.Positions,
			"status":    row.Status,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_save_election_failed", create.Error,
			"election_id", strings.TrimSpace(election.ElectionID),
		)
	}
	return nil
}

func (r *Repository) SaveCandidate(ctx context.Context, candidate entities.Candidate) error {
	row := candidateModelFromEntity(candidate)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":      row.Name,
			"bio":       row.Bio,
			"photo_url": row.PhotoURL,
			"position":  row.Position,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_save_candidate_failed", create.Error,
			"candidate_id", strings.TrimSpace(candidate.CandidateID),
		)
	}
	return nil
}

func (r *Repository) GetCandidate(ctx context.Context, candidateID string) (entities.Candidate, bool, error) {
	var row candidateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(candidateID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Candidate{}, false, nil
		}
		return entities.Candidate{}, false, r.logError("ballot_repo_get_candidate_failed", err,
			"candidate_id", strings.TrimSpace(candidateID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListCandidates(ctx context.Context) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Order("position ASC, name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_candidates_failed", err)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) PutSession(ctx context.Context, session entities.Session) error {
	row := sessionModel{
		ID:        strings.TrimSpace(session.SessionID),
		VoterID:   strings.TrimSpace(session.VoterID),
		Admin:     session.Admin,
		ExpiresAt: session.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"voter_id":   row.VoterID,
			"admin":      row.Admin,
			"expires_at": row.ExpiresAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_put_session_failed", create.Error, "session_id", row.ID)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID string, now time.Time) (entities.Session, bool, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, false, nil
		}
		return entities.Session{}, false, r.logError("ballot_repo_get_session_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	if !row.ExpiresAt.IsZero() && row.ExpiresAt.UTC().Before(now.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("id = ?", row.ID).
			Delete(&sessionModel{}).Error; err != nil {
			return entities.Session{}, false, r.logError("ballot_repo_expire_session_failed", err,
				"session_id", row.ID,
			)
		}
		return entities.Session{}, false, nil
	}
	return entities.Session{
		SessionID: row.ID,
		VoterID:   row.VoterID,
		Admin:     row.Admin,
		ExpiresAt: row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ballot_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_append_outbox_insert_failed", create.Error, "outbox_id", row.OutboxID)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("ballot_repo_append_outbox_load_existing_failed", err, "outbox_id", row.OutboxID)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// SystemClock satisfies ports.Clock for production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator satisfies ports.IDGenerator for production wiring.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-operations/ballot-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type voterModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voterModel) TableName() string {
	return "voters"
}

type voterPositionModel struct {
	VoterID  string `gorm:"column:voter_id;primaryKey"`
	Position string `gorm:"column:position;primaryKey"`
}

func (voterPositionModel) TableName() string {
	return "voter_positions"
}

// ballotModel has no voter column. The surrogate id exists only for stable
// insert ordering.
type ballotModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Position    string    `gorm:"column:position"`
	CandidateID string    `gorm:"column:candidate_id"`
	CastAt      time.Time `gorm:"column:cast_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

type auditModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	VoterID    string    `gorm:"column:voter_id"`
	Action     string    `gorm:"column:action"`
	Position   *string   `gorm:"column:position"`
	Detail     string    `gorm:"column:detail"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (auditModel) TableName() string {
	return "audit_entries"
}

func auditModelFromEntity(entry entities.AuditEntry) auditModel {
	row := auditModel{
		ID:         strings.TrimSpace(entry.EntryID),
		VoterID:    strings.TrimSpace(entry.VoterID),
		Action:     string(entry.Action),
		Detail:     strings.TrimSpace(entry.Detail),
		OccurredAt: entry.OccurredAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if strings.TrimSpace(string(entry.Position)) != "" {
		position := string(entry.Position)
		row.Position = &position
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = time.Now().UTC()
	}
	return row
}

func (m auditModel) toEntity() entities.AuditEntry {
	position := entities.Position("")
	if m.Position != nil {
		position = entities.Position(strings.TrimSpace(*m.Position))
	}
	return entities.AuditEntry{
		EntryID:    m.ID,
		VoterID:    m.VoterID,
		Action:     entities.AuditAction(m.Action),
		Position:   position,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt.UTC(),
	}
}

type sessionModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	VoterID   string    `gorm:"column:voter_id"`
	Admin     bool      `gorm:"column:admin"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (sessionModel) TableName() string {
	return "sessions"
}

type electionModel struct {
	ID        string `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	Positions []byte `gorm:"column:positions;type:jsonb"`
	Status    string `gorm:"column:status"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) (electionModel, error) {
	positions, err := json.Marshal(election.Positions)
	if err != nil {
		return electionModel{}, err
	}
	return electionModel{
		ID:        strings.TrimSpace(election.ElectionID),
		Name:      strings.TrimSpace(election.Name),
		Positions: positions,
		Status:    string(election.Status),
	}, nil
}

func (m electionModel) toEntity() (entities.Election, error) {
	var positions []entities.Position
	if len(m.Positions) > 0 {
		if err := json.Unmarshal(m.Positions, &positions); err != nil {
			return entities.Election{}, err
		}
	}
	return entities.Election{
		ElectionID: m.ID,
		Name:       m.Name,
		Positions:  positions,
		Status:     entities.ElectionStatus(m.Status),
	}, nil
}

type candidateModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	Name     string `gorm:"column:name"`
	Bio      string `gorm:"column:bio"`
	PhotoURL string `gorm:"column:photo_url"`
	Position string `gorm:"column:position"`
}

func (candidateModel) TableName() string {
	return "candidates"
}

func candidateModelFromEntity(candidate entities.Candidate) candidateModel {
	return candidateModel{
		ID:       strings.TrimSpace(candidate.CandidateID),
		Name:     strings.TrimSpace(candidate.Name),
		Bio:      strings.TrimSpace(candidate.Bio),
		PhotoURL: strings.TrimSpace(candidate.PhotoURL),
		Position: string(candidate.Position),
	}
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.ID,
		Name:        m.Name,
		Bio:         m.Bio,
		PhotoURL:    m.PhotoURL,
		Position:    entities.Position(m.Position),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_outbox"
}
