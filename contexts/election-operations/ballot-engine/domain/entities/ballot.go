package entities

import "time"

// Ballot is the anonymous vote record. It carries no voter reference of any
// kind; that exclusion is the anonymity guarantee of the whole engine and is
// structural, not an access-control policy. Do not add voter fields here and
// do not key any collection of ballots by voter.
type Ballot struct {
	Position    Position
	CandidateID string
	CastAt      time.Time
}

// Voter tracks an authenticated participant only by which positions they have
// voted, never by choice. VotedPositions only grows.
type Voter struct {
	VoterID        string
	VotedPositions []Position
}

// HasVoted reports whether the voter already cast for the position.
func (v Voter) HasVoted(position Position) bool {
	for _, item := range v.VotedPositions {
		if item == position {
			return true
		}
	}
	return false
}

type AuditAction string

const (
	AuditActionLogin       AuditAction = "LOGIN"
	AuditActionVoteCast    AuditAction = "VOTE_CAST"
	AuditActionAdminAction AuditAction = "ADMIN_ACTION"
)

// AuditEntry records a voter action. Position is set for VOTE_CAST entries
// only and a candidate id never appears here.
type AuditEntry struct {
	EntryID    string
	VoterID    string
	Action     AuditAction
	Position   Position
	Detail     string
	OccurredAt time.Time
}

// Session is owned by the external auth collaborator; the engine stores it
// only to check validity when resolving a voter.
type Session struct {
	SessionID string
	VoterID   string
	Admin     bool
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// CandidateTally is one aggregated line of the public results.
type CandidateTally struct {
	CandidateID string
	Votes       int
	Percentage  float64
}

// PositionTally groups candidate tallies under a contested position.
type PositionTally struct {
	Position   Position
	TotalVotes int
	Candidates []CandidateTally
}
