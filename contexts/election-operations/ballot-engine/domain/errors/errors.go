package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid ballot input")
	ErrElectionNotFound    = errors.New("election not found")
	ErrElectionNotActive   = errors.New("election is not active")
	ErrElectionNotEditable = errors.New("election is not editable")
	ErrInvalidTransition   = errors.New("invalid election status transition")
	ErrUnknownVoter        = errors.New("voter is not registered")
	ErrUnknownPosition     = errors.New("position is not contested in this election")
	ErrInvalidCandidate    = errors.New("candidate does not contest the requested position")
	ErrDuplicateVote       = errors.New("voter already cast a ballot for a requested position")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrConflict            = errors.New("ballot store conflict")
)
