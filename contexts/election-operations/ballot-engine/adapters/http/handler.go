package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"eligo/contexts/election-operations/ballot-engine/application/commands"
	"eligo/contexts/election-operations/ballot-engine/application/queries"
	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	httptransport "eligo/contexts/election-operations/ballot-engine/transport/http"
)

// Handler maps transport DTOs onto use cases. It carries no business rules.
type Handler struct {
	Casting  commands.CastVotesUseCase
	Sessions commands.RegisterSessionUseCase
	Admin    commands.ElectionAdminUseCase
	Tallies  queries.TallyUseCase
	Logger   *slog.Logger
}

func (h Handler) RegisterSessionHandler(ctx context.Context, req httptransport.RegisterSessionRequest) error {
	var expiresAt time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return domainerrors.ErrInvalidInput
		}
		expiresAt = parsed
	}
	return h.Sessions.RegisterSession(ctx, commands.RegisterSessionCommand{
		SessionID: req.SessionID,
		VoterID:   req.VoterID,
		Admin:     req.Admin,
		ExpiresAt: expiresAt,
	})
}

func (h Handler) CastVotesHandler(
	ctx context.Context,
	voterID string,
	req httptransport.CastVotesRequest,
) (httptransport.CastVotesResponse, error) {
	choices := make(map[entities.Position]string, len(req.Choices))
	for position, candidateID := range req.Choices {
		choices[entities.Position(position)] = candidateID
	}
	if err := h.Casting.CastVotes(ctx, commands.CastVotesCommand{
		VoterID: voterID,
		Choices: choices,
	}); err != nil {
		return httptransport.CastVotesResponse{}, err
	}
	positions := make([]string, 0, len(req.Choices))
	for position := range req.Choices {
		positions = append(positions, position)
	}
	return httptransport.CastVotesResponse{Positions: positions}, nil
}

func (h Handler) VoterStatusHandler(ctx context.Context, voterID string) (httptransport.VoterStatusResponse, error) {
	positions, err := h.Tallies.VoterStatus(ctx, voterID)
	if err != nil {
		return httptransport.VoterStatusResponse{}, err
	}
	items := make([]string, 0, len(positions))
	for _, position := range positions {
		items = append(items, string(position))
	}
	return httptransport.VoterStatusResponse{VotedPositions: items}, nil
}

func (h Handler) ResultsHandler(ctx context.Context) (httptransport.ResultsResponse, error) {
	results, err := h.Tallies.Results(ctx)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	resp := httptransport.ResultsResponse{
		Results: make([]httptransport.PositionResult, 0, len(results)),
	}
	for _, tally := range results {
		lines := make([]httptransport.CandidateResultLine, 0, len(tally.Candidates))
		for _, line := range tally.Candidates {
			lines = append(lines, httptransport.CandidateResultLine{
				CandidateID: line.CandidateID,
				Votes:       line.Votes,
				Percentage:  line.Percentage,
			})
		}
		resp.Results = append(resp.Results, httptransport.PositionResult{
			Position:   string(tally.Position),
			TotalVotes: tally.TotalVotes,
			Candidates: lines,
		})
	}
	return resp, nil
}

func (h Handler) AuditLogHandler(ctx context.Context, limit int, offset int) (httptransport.AuditLogResponse, error) {
	entries, err := h.Tallies.AuditLog(ctx, limit, offset)
	if err != nil {
		return httptransport.AuditLogResponse{}, err
	}
	resp := httptransport.AuditLogResponse{
		Entries: make([]httptransport.AuditEntryItem, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, httptransport.AuditEntryItem{
			EntryID:    entry.EntryID,
			VoterID:    entry.VoterID,
			Action:     string(entry.Action),
			Position:   string(entry.Position),
			Detail:     entry.Detail,
			OccurredAt: entry.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) ElectionHandler(ctx context.Context) (httptransport.ElectionResponse, error) {
	election, err := h.Admin.Elections.GetElection(ctx)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	candidates, err := h.Admin.Elections.ListCandidates(ctx)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election, candidates), nil
}

func (h Handler) SetupElectionHandler(
	ctx context.Context,
	actorID string,
	req httptransport.SetupElectionRequest,
) (httptransport.ElectionResponse, error) {
	positions := make([]entities.Position, 0, len(req.Positions))
	for _, position := range req.Positions {
		positions = append(positions, entities.Position(position))
	}
	election, err := h.Admin.SetupElection(ctx, commands.SetupElectionCommand{
		ActorID:   actorID,
		Name:      req.Name,
		Positions: positions,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election, nil), nil
}

func (h Handler) AddCandidateHandler(
	ctx context.Context,
	actorID string,
	req httptransport.AddCandidateRequest,
) (httptransport.CandidateItem, error) {
	candidate, err := h.Admin.AddCandidate(ctx, commands.AddCandidateCommand{
		ActorID:  actorID,
		Name:     req.Name,
		Bio:      req.Bio,
		PhotoURL: req.PhotoURL,
		Position: entities.Position(req.Position),
	})
	if err != nil {
		return httptransport.CandidateItem{}, err
	}
	return candidateItem(candidate), nil
}

func (h Handler) TransitionElectionHandler(
	ctx context.Context,
	actorID string,
	req httptransport.TransitionElectionRequest,
) (httptransport.ElectionResponse, error) {
	election, err := h.Admin.TransitionElection(ctx, commands.TransitionElectionCommand{
		ActorID: actorID,
		Next:    entities.ElectionStatus(req.Status),
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election, nil), nil
}

func electionResponse(election entities.Election, candidates []entities.Candidate) httptransport.ElectionResponse {
	positions := make([]string, 0, len(election.Positions))
	for _, position := range election.Positions {
		positions = append(positions, string(position))
	}
	items := make([]httptransport.CandidateItem, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, candidateItem(candidate))
	}
	return httptransport.ElectionResponse{
		ElectionID: election.ElectionID,
		Name:       election.Name,
		Status:     string(election.Status),
		Positions:  positions,
		Candidates: items,
	}
}

func candidateItem(candidate entities.Candidate) httptransport.CandidateItem {
	return httptransport.CandidateItem{
		CandidateID: candidate.CandidateID,
		Name:        candidate.Name,
		Bio:         candidate.Bio,
		PhotoURL:    candidate.PhotoURL,
		Position:    string(candidate.Position),
	}
}
