package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	ballotengine "eligo/contexts/election-operations/ballot-engine"
	"eligo/contexts/election-operations/ballot-engine/domain/entities"
	domainerrors "eligo/contexts/election-operations/ballot-engine/domain/errors"
	"eligo/contexts/election-operations/ballot-engine/ports"
	ballothttp "eligo/contexts/election-operations/ballot-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "eligo/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	ballots  ballotengine.Module
	sessions ports.SessionStore
	clock    ports.Clock
}

func New(
	ballots ballotengine.Module,
	sessions ports.SessionStore,
	clock ports.Clock,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		ballots:  ballots,
		sessions: sessions,
		clock:    clock,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/v1/sessions", s.handleRegisterSession)
	s.mux.HandleFunc("POST /api/v1/votes", s.handleCastVotes)
	s.mux.HandleFunc("GET /api/v1/voters/status", s.handleVoterStatus)
	s.mux.HandleFunc("GET /api/v1/results", s.handleResults)
	s.mux.HandleFunc("GET /api/v1/election", s.handleElection)
	s.mux.HandleFunc("GET /api/v1/audit", s.handleAuditLog)

	s.mux.HandleFunc("POST /api/v1/admin/election", s.handleSetupElection)
	s.mux.HandleFunc("POST /api/v1/admin/candidates", s.handleAddCandidate)
	s.mux.HandleFunc("POST /api/v1/admin/election/transition", s.handleTransitionElection)
}

// handleRegisterSession is called by the auth collaborator once it has
// verified an identity; the engine only stores the resulting session.
func (s *Server) handleRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req ballothttp.RegisterSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.ballots.Handler.RegisterSessionHandler(r.Context(), req); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (s *Server) handleCastVotes(w http.ResponseWriter, r *http.Request) {
	session, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	var req ballothttp.CastVotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.CastVotesHandler(r.Context(), session.VoterID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.resolveSession(w, r)
	if !ok {
		return
	}
	resp, err := s.ballots.Handler.VoterStatusHandler(r.Context(), session.VoterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResults requires no session: results are public by design.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.ResultsHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.ElectionHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resolveAdminSession(w, r); !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	offset := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		offset = parsed
	}

	resp, err := s.ballots.Handler.AuditLogHandler(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetupElection(w http.ResponseWriter, r *http.Request) {
	session, ok := s.resolveAdminSession(w, r)
	if !ok {
		return
	}

	var req ballothttp.SetupElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.SetupElectionHandler(r.Context(), session.VoterID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	session, ok := s.resolveAdminSession(w, r)
	if !ok {
		return
	}

	var req ballothttp.AddCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.AddCandidateHandler(r.Context(), session.VoterID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleTransitionElection(w http.ResponseWriter, r *http.Request) {
	session, ok := s.resolveAdminSession(w, r)
	if !ok {
		return
	}

	var req ballothttp.TransitionElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballots.Handler.TransitionElectionHandler(r.Context(), session.VoterID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (entities.Session, bool) {
	sessionID := strings.TrimSpace(r.Header.Get("X-Session-Id"))
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "missing_session", "X-Session-Id header is required")
		return entities.Session{}, false
	}
	now := time.Now().UTC()
	if s.clock != nil {
		now = s.clock.Now().UTC()
	}
	session, found, err := s.sessions.GetSession(r.Context(), sessionID, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return entities.Session{}, false
	}
	if !found {
		writeError(w, http.StatusUnauthorized, "invalid_session", "session is unknown or expired")
		return entities.Session{}, false
	}
	return session, true
}

func (s *Server) resolveAdminSession(w http.ResponseWriter, r *http.Request) (entities.Session, bool) {
	session, ok := s.resolveSession(w, r)
	if !ok {
		return entities.Session{}, false
	}
	if !session.Admin {
		writeError(w, http.StatusForbidden, "admin_required", "session lacks admin privileges")
		return entities.Session{}, false
	}
	return session, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		writeError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidCandidate):
		writeError(w, http.StatusUnprocessableEntity, "invalid_candidate", err.Error())
	case errors.Is(err, domainerrors.ErrUnknownPosition):
		writeError(w, http.StatusUnprocessableEntity, "unknown_position", err.Error())
	case errors.Is(err, domainerrors.ErrElectionNotActive):
		writeError(w, http.StatusConflict, "election_not_active", err.Error())
	case errors.Is(err, domainerrors.ErrElectionNotEditable):
		writeError(w, http.StatusConflict, "election_not_editable", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domainerrors.ErrElectionNotFound):
		writeError(w, http.StatusNotFound, "election_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrUnknownVoter):
		writeError(w, http.StatusNotFound, "unknown_voter", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
