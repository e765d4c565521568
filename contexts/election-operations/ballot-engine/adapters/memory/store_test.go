package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

func castRequest(voterID string, positions ...entities.Position) ports.CastRequest {
	now := time.Now().UTC()
	request := ports.CastRequest{VoterID: voterID}
	for _, position := range positions {
		request.Ballots = append(request.Ballots, entities.Ballot{
			Position:    position,
			CandidateID: "candidate-" + string(position),
			CastAt:      now.Truncate(time.Minute),
		})
		request.Audit = append(request.Audit, entities.AuditEntry{
			EntryID:    "entry-" + voterID + "-" + string(position),
			VoterID:    voterID,
			Action:     entities.AuditActionVoteCast,
			Position:   position,
			OccurredAt: now,
		})
	}
	return request
}

func TestCastRejectsUnknownVoter(t *testing.T) {
	store := NewStore()
	err := store.Cast(context.Background(), castRequest("ghost", "President"))
	if !errors.Is(err, domainerrors.ErrUnknownVoter) {
		t.Fatalf("expected ErrUnknownVoter, got %v", err)
	}
}

func TestCastIsAllOrNothing(t *testing.T) {
	store := NewStore()
	if _, _, err := store.RegisterVoter(context.Background(), "voter-1"); err != nil {
		t.Fatalf("register voter failed: %v", err)
	}
	if err := store.Cast(context.Background(), castRequest("voter-1", "President")); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	// Second request mixes a fresh position with an already-voted one; the
	// whole request must fail and the fresh position must stay uncast.
	err := store.Cast(context.Background(), castRequest("voter-1", "Secretary", "President"))
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected ErrDuplicateVote, got %v", err)
	}

	ballots, err := store.SnapshotBallots(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(ballots) != 1 {
		t.Fatalf("expected 1 ballot after rejected resubmission, got %d", len(ballots))
	}
	voter, err := store.GetVoter(context.Background(), "voter-1")
	if err != nil {
		t.Fatalf("get voter failed: %v", err)
	}
	if len(voter.VotedPositions) != 1 || voter.VotedPositions[0] != "President" {
		t.Fatalf("unexpected voted positions: %v", voter.VotedPositions)
	}
}

func TestConcurrentCastsAdmitExactlyOne(t *testing.T) {
	store := NewStore()
	if _, _, err := store.RegisterVoter(context.Background(), "voter-1"); err != nil {
		t.Fatalf("register voter failed: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Cast(context.Background(), castRequest("voter-1", "President"))
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	duplicates := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrDuplicateVote):
			duplicates++
		default:
			t.Fatalf("unexpected cast error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly 1 successful cast, got %d", succeeded)
	}
	if duplicates != attempts-1 {
		t.Fatalf("expected %d duplicate rejections, got %d", attempts-1, duplicates)
	}

	ballots, err := store.SnapshotBallots(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(ballots) != 1 {
		t.Fatalf("expected exactly 1 ballot, got %d", len(ballots))
	}
}

func TestSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	store := NewStore()
	if _, _, err := store.RegisterVoter(context.Background(), "voter-1"); err != nil {
		t.Fatalf("register voter failed: %v", err)
	}
	if _, _, err := store.RegisterVoter(context.Background(), "voter-2"); err != nil {
		t.Fatalf("register voter failed: %v", err)
	}
	if err := store.Cast(context.Background(), castRequest("voter-1", "President")); err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	snapshot, err := store.SnapshotBallots(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if err := store.Cast(context.Background(), castRequest("voter-2", "President")); err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("snapshot mutated by later write: %d ballots", len(snapshot))
	}
}

func TestRegisterVoterIsIdempotent(t *testing.T) {
	store := NewStore()
	_, created, err := store.RegisterVoter(context.Background(), "voter-1")
	if err != nil || !created {
		t.Fatalf("expected first registration to create, got created=%v err=%v", created, err)
	}
	_, created, err = store.RegisterVoter(context.Background(), "voter-1")
	if err != nil || created {
		t.Fatalf("expected second registration to be a no-op, got created=%v err=%v", created, err)
	}
}

func TestListAuditPagesNewestFirst(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := store.AppendAudit(context.Background(), entities.AuditEntry{
			EntryID:    string(rune('a' + i)),
			VoterID:    "voter-1",
			Action:     entities.AuditActionLogin,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append audit failed: %v", err)
		}
	}

	page, err := store.ListAudit(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if page[0].EntryID != "d" || page[1].EntryID != "c" {
		t.Fatalf("unexpected page order: %s, %s", page[0].EntryID, page[1].EntryID)
	}
}

func TestGetSessionDropsExpired(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	if err := store.PutSession(context.Background(), entities.Session{
		SessionID: "session-1",
		VoterID:   "voter-1",
		ExpiresAt: now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("put session failed: %v", err)
	}

	if _, found, _ := store.GetSession(context.Background(), "session-1", now); !found {
		t.Fatalf("expected live session to resolve")
	}
	if _, found, _ := store.GetSession(context.Background(), "session-1", now.Add(2*time.Minute)); found {
		t.Fatalf("expected expired session to be dropped")
	}
}
