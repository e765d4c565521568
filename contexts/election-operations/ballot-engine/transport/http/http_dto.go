package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RegisterSessionRequest struct {
	SessionID string `json:"session_id"`
	VoterID   string `json:"voter_id"`
	Admin     bool   `json:"admin"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type CastVotesRequest struct {
	// Choices maps a contested position to the chosen candidate id.
	Choices map[string]string `json:"choices"`
}

type CastVotesResponse struct {
	Positions []string `json:"positions"`
}

type VoterStatusResponse struct {
	VotedPositions []string `json:"voted_positions"`
}

type CandidateResultLine struct {
	CandidateID string  `json:"candidate_id"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
}

type PositionResult struct {
	Position   string                `json:"position"`
	TotalVotes int                   `json:"total_votes"`
	Candidates []CandidateResultLine `json:"candidates"`
}

type ResultsResponse struct {
	Results []PositionResult `json:"results"`
}

// AuditEntryItem never carries a candidate id.
type AuditEntryItem struct {
	EntryID    string `json:"entry_id"`
	VoterID    string `json:"voter_id"`
	Action     string `json:"action"`
	Position   string `json:"position,omitempty"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type AuditLogResponse struct {
	Entries []AuditEntryItem `json:"entries"`
}

type SetupElectionRequest struct {
	Name      string   `json:"name"`
	Positions []string `json:"positions"`
}

type AddCandidateRequest struct {
	Name     string `json:"name"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Position string `json:"position"`
}

type TransitionElectionRequest struct {
	Status string `json:"status"`
}

type CandidateItem struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Bio         string `json:"bio,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Position    string `json:"position"`
}

type ElectionResponse struct {
	ElectionID string          `json:"election_id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Positions  []string        `json:"positions"`
	Candidates []CandidateItem `json:"candidates"`
}
