package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ballotengine "eligo/contexts/election-operations/ballot-engine"
	ballothttp "eligo/contexts/election-operations/ballot-engine/transport/http"
)

func newTestServer() (http.Handler, ballotengine.Module) {
	module := ballotengine.NewInMemoryModule(time.Second, nil)
	server := New(module, module.Store, module.Store, nil, ":0")
	return server.Handler(), module
}

func do(t *testing.T, handler http.Handler, method string, path string, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.NewDecoder(recorder.Body).Decode(&value); err != nil {
		t.Fatalf("decode response failed: %v (body %s)", err, recorder.Body.String())
	}
	return value
}

func registerSession(t *testing.T, handler http.Handler, sessionID string, voterID string, admin bool) {
	t.Helper()
	recorder := do(t, handler, http.MethodPost, "/api/v1/sessions", "", ballothttp.RegisterSessionRequest{
		SessionID: sessionID,
		VoterID:   voterID,
		Admin:     admin,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register session: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}
}

// prepareActiveElection drives the whole admin flow over HTTP and returns the
// candidate ids for the single President race.
func prepareActiveElection(t *testing.T, handler http.Handler) []string {
	t.Helper()
	registerSession(t, handler, "admin-session", "admin-1", true)

	recorder := do(t, handler, http.MethodPost, "/api/v1/admin/election", "admin-session", ballothttp.SetupElectionRequest{
		Name:      "Student Council 2026",
		Positions: []string{"President"},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("setup election: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}

	candidateIDs := make([]string, 0, 2)
	for _, name := range []string{"Alice", "Bob"} {
		recorder = do(t, handler, http.MethodPost, "/api/v1/admin/candidates", "admin-session", ballothttp.AddCandidateRequest{
			Name:     name,
			Position: "President",
		})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("add candidate: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
		}
		candidate := decode[ballothttp.CandidateItem](t, recorder)
		candidateIDs = append(candidateIDs, candidate.CandidateID)
	}

	recorder = do(t, handler, http.MethodPost, "/api/v1/admin/election/transition", "admin-session", ballothttp.TransitionElectionRequest{
		Status: "active",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("transition: expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	return candidateIDs
}

func TestCastVotesOverHTTP(t *testing.T) {
	handler, _ := newTestServer()
	candidateIDs := prepareActiveElection(t, handler)
	registerSession(t, handler, "voter-session", "voter-1", false)

	recorder := do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": candidateIDs[0]},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("cast: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	resp := decode[ballothttp.CastVotesResponse](t, recorder)
	if len(resp.Positions) != 1 || resp.Positions[0] != "President" {
		t.Fatalf("unexpected cast response: %+v", resp)
	}

	// Re-casting the same position conflicts.
	recorder = do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": candidateIDs[1]},
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("duplicate cast: expected 409, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	errResp := decode[ballothttp.ErrorResponse](t, recorder)
	if errResp.Code != "duplicate_vote" {
		t.Fatalf("unexpected error code: %s", errResp.Code)
	}
}

func TestCastVotesRejectsBadCatalogReferences(t *testing.T) {
	handler, _ := newTestServer()
	prepareActiveElection(t, handler)
	registerSession(t, handler, "voter-session", "voter-1", false)

	recorder := do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": "no-such-candidate"},
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid candidate: expected 422, got %d (%s)", recorder.Code, recorder.Body.String())
	}

	recorder = do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"Chancellor": "whatever"},
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown position: expected 422, got %d (%s)", recorder.Code, recorder.Body.String())
	}
}

func TestCastVotesRequiresSession(t *testing.T) {
	handler, _ := newTestServer()
	prepareActiveElection(t, handler)

	recorder := do(t, handler, http.MethodPost, "/api/v1/votes", "", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": "alice"},
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("missing session: expected 401, got %d", recorder.Code)
	}

	recorder = do(t, handler, http.MethodPost, "/api/v1/votes", "never-registered", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": "alice"},
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unknown session: expected 401, got %d", recorder.Code)
	}
}

func TestResultsArePublic(t *testing.T) {
	handler, _ := newTestServer()
	candidateIDs := prepareActiveElection(t, handler)
	registerSession(t, handler, "voter-session", "voter-1", false)
	recorder := do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": candidateIDs[0]},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("cast: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}

	// No session header: results are public.
	recorder = do(t, handler, http.MethodGet, "/api/v1/results", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	resp := decode[ballothttp.ResultsResponse](t, recorder)
	if len(resp.Results) != 1 || resp.Results[0].TotalVotes != 1 {
		t.Fatalf("unexpected results: %+v", resp)
	}
	if len(resp.Results[0].Candidates) != 2 {
		t.Fatalf("expected both candidates in results, got %+v", resp.Results[0].Candidates)
	}
}

func TestAuditLogRequiresAdmin(t *testing.T) {
	handler, _ := newTestServer()
	prepareActiveElection(t, handler)
	registerSession(t, handler, "voter-session", "voter-1", false)

	recorder := do(t, handler, http.MethodGet, "/api/v1/audit", "voter-session", nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("non-admin audit: expected 403, got %d", recorder.Code)
	}

	recorder = do(t, handler, http.MethodGet, "/api/v1/audit?limit=10", "admin-session", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin audit: expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	resp := decode[ballothttp.AuditLogResponse](t, recorder)
	if len(resp.Entries) == 0 {
		t.Fatalf("expected audit entries from admin actions and logins")
	}
	for _, entry := range resp.Entries {
		if entry.Action == "" || entry.OccurredAt == "" {
			t.Fatalf("incomplete audit entry: %+v", entry)
		}
	}
}

func TestVoterStatusOverHTTP(t *testing.T) {
	handler, _ := newTestServer()
	candidateIDs := prepareActiveElection(t, handler)
	registerSession(t, handler, "voter-session", "voter-1", false)

	recorder := do(t, handler, http.MethodGet, "/api/v1/voters/status", "voter-session", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("voter status: expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	resp := decode[ballothttp.VoterStatusResponse](t, recorder)
	if len(resp.VotedPositions) != 0 {
		t.Fatalf("fresh voter should have no voted positions: %+v", resp)
	}

	recorder = do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": candidateIDs[0]},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("cast: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}

	recorder = do(t, handler, http.MethodGet, "/api/v1/voters/status", "voter-session", nil)
	resp = decode[ballothttp.VoterStatusResponse](t, recorder)
	if len(resp.VotedPositions) != 1 || resp.VotedPositions[0] != "President" {
		t.Fatalf("unexpected voter status: %+v", resp)
	}
}

func TestElectionEndpointListsCatalog(t *testing.T) {
	handler, _ := newTestServer()
	prepareActiveElection(t, handler)

	recorder := do(t, handler, http.MethodGet, "/api/v1/election", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("election: expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	resp := decode[ballothttp.ElectionResponse](t, recorder)
	if resp.Status != "active" || len(resp.Positions) != 1 || len(resp.Candidates) != 2 {
		t.Fatalf("unexpected election response: %+v", resp)
	}
}

func TestElectionEndpointBeforeSetup(t *testing.T) {
	handler, _ := newTestServer()
	recorder := do(t, handler, http.MethodGet, "/api/v1/election", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before setup, got %d", recorder.Code)
	}
}

func TestCastVotesBeforeActivationConflicts(t *testing.T) {
	handler, _ := newTestServer()
	registerSession(t, handler, "admin-session", "admin-1", true)
	recorder := do(t, handler, http.MethodPost, "/api/v1/admin/election", "admin-session", ballothttp.SetupElectionRequest{
		Name:      "Student Council 2026",
		Positions: []string{"President"},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("setup election: expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	registerSession(t, handler, "voter-session", "voter-1", false)

	recorder = do(t, handler, http.MethodPost, "/api/v1/votes", "voter-session", ballothttp.CastVotesRequest{
		Choices: map[string]string{"President": "anyone"},
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("cast before activation: expected 409, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	errResp := decode[ballothttp.ErrorResponse](t, recorder)
	if errResp.Code != "election_not_active" {
		t.Fatalf("unexpected error code: %s", errResp.Code)
	}
}
