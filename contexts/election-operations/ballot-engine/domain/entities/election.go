package entities

// Position is a contested office within an election, e.g. "President".
type Position string

type ElectionStatus string

const (
	ElectionStatusSetup  ElectionStatus = "setup"
	ElectionStatusActive ElectionStatus = "active"
	ElectionStatusClosed ElectionStatus = "closed"
)

// Election is the single live election. Positions are fixed at setup; status
// only moves forward through CanTransitionTo.
type Election struct {
	ElectionID string
	Name       string
	Positions  []Position
	Status     ElectionStatus
}

// CanTransitionTo enforces the one-way setup -> active -> closed lifecycle.
// Closed is terminal.
func (e Election) CanTransitionTo(next ElectionStatus) bool {
	switch e.Status {
	case ElectionStatusSetup:
		return next == ElectionStatusActive
	case ElectionStatusActive:
		return next == ElectionStatusClosed
	default:
		return false
	}
}

// Contests reports whether the election carries the given position.
func (e Election) Contests(position Position) bool {
	for _, item := range e.Positions {
		if item == position {
			return true
		}
	}
	return false
}

// Candidate is admin-created catalog data, read-only to the casting path.
// A candidate contests exactly one position.
type Candidate struct {
	CandidateID string
	Name        string
	Bio         string
	PhotoURL    string
	Position    Position
}
