package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/catalog"
	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/leaderboard"
	"github.com/felixgeelhaar/arise/internal/scoring"
	"github.com/felixgeelhaar/arise/internal/storage/sqlite"
)

const adminToken = "s3cret"

type testEnv struct {
	mux     *http.ServeMux
	service *scoring.Service
	store   *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.OpenStore(ctx, filepath.Join(t.TempDir(), "arise.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	if err := store.SeedChallenges(ctx, cat.List()); err != nil {
		t.Fatalf("SeedChallenges() error = %v", err)
	}

	svc := scoring.NewService(store, cat)
	accounts := NewAccountHandler(svc, store)
	scores := NewScoringHandler(svc)
	board := NewLeaderboardHandler(leaderboard.NewService(store, 0), store, adminToken)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts", accounts.Create)
	mux.HandleFunc("GET /accounts/{id}", accounts.Get)
	mux.HandleFunc("GET /accounts/{id}/ledger", accounts.Ledger)
	mux.HandleFunc("GET /challenges", scores.Challenges)
	mux.HandleFunc("POST /submissions", scores.Submit)
	mux.HandleFunc("POST /hints/unlock", scores.UnlockHint)
	mux.HandleFunc("GET /leaderboard", board.Top)
	mux.HandleFunc("GET /admin/audit", board.Audit)

	return &testEnv{mux: mux, service: svc, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) account(t *testing.T, name string) uuid.UUID {
	t.Helper()
	a, err := e.service.ProvisionAccount(context.Background(), uuid.New(), name)
	if err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}
	return a.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	apiErr, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	code, _ := apiErr["code"].(string)
	return code
}

func TestAccountHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()

	rec := env.do(t, http.MethodPost, "/accounts", map[string]string{
		"user_id":  id.String(),
		"username": "  alice ",
		"guild":    "zion",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201 (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["id"] != id.String() || body["username"] != "alice" || body["guild"] != "zion" {
		t.Errorf("body = %v", body)
	}
	if body["score"] != float64(0) || body["rank"] != "E" {
		t.Errorf("new account = %v; want score 0 rank E", body)
	}

	// Same user again returns the existing account
	rec = env.do(t, http.MethodPost, "/accounts", map[string]string{
		"user_id":  id.String(),
		"username": "alice",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("repeat status = %d; want 201", rec.Code)
	}

	// Username taken by another user
	rec = env.do(t, http.MethodPost, "/accounts", map[string]string{"username": "alice"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate username status = %d; want 409", rec.Code)
	}
}

func TestAccountHandler_Create_Invalid(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"malformed json", "{", "BAD_REQUEST"},
		{"unknown field", `{"username":"x","admin":true}`, "BAD_REQUEST"},
		{"missing username", map[string]string{}, "VALIDATION_FAILED"},
		{"bad user id", map[string]string{"user_id": "nope", "username": "x"}, "VALIDATION_FAILED"},
		{"long username", map[string]string{"username": strings.Repeat("a", 65)}, "VALIDATION_FAILED"},
		{"blank username", map[string]string{"username": "   "}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/accounts", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400 (%s)", rec.Code, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("code = %q; want %q", got, tt.code)
			}
		})
	}
}

func TestAccountHandler_ValidationDetailsUseJSONNames(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/submissions", map[string]any{"challenge_id": 0})
	body := decodeBody(t, rec)
	details, ok := body["error"].(map[string]any)["details"].(map[string]any)
	if !ok {
		t.Fatalf("no details in %v", body)
	}
	for _, field := range []string{"user_id", "challenge_id", "flag"} {
		if _, ok := details[field]; !ok {
			t.Errorf("details missing %q: %v", field, details)
		}
	}
}

func TestAccountHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "bob")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing", "/accounts/" + id.String(), http.StatusOK},
		{"unknown", "/accounts/" + uuid.NewString(), http.StatusNotFound},
		{"invalid id", "/accounts/42", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d; want %d", rec.Code, tt.status)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/accounts/"+id.String(), nil)
	body := decodeBody(t, rec)
	if body["next_rank"] != "D" || body["points_to_next_rank"] != float64(500) {
		t.Errorf("body = %v; want next rank D in 500", body)
	}
}

func TestAccountHandler_Ledger(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "carol")

	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": id, "challenge_id": 1, "flag": "flag{84}"})
	env.do(t, http.MethodPost, "/hints/unlock", map[string]any{"user_id": id, "challenge_id": 2})

	rec := env.do(t, http.MethodGet, "/accounts/"+id.String()+"/ledger", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entries := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %d; want 2", len(entries))
	}
	newest := entries[0].(map[string]any)
	if newest["kind"] != "hint" || newest["delta"] != float64(-10) || newest["balance_after"] != float64(90) {
		t.Errorf("newest entry = %v", newest)
	}

	rec = env.do(t, http.MethodGet, "/accounts/"+id.String()+"/ledger?limit=1", nil)
	if got := decodeBody(t, rec)["total"]; got != float64(1) {
		t.Errorf("limited total = %v; want 1", got)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/accounts/" + id.String() + "/ledger?limit=0", http.StatusBadRequest},
		{"/accounts/" + id.String() + "/ledger?limit=abc", http.StatusBadRequest},
		{"/accounts/" + uuid.NewString() + "/ledger", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := env.do(t, http.MethodGet, tt.path, nil); rec.Code != tt.status {
			t.Errorf("GET %s status = %d; want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestScoringHandler_Submit(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "dave")

	tests := []struct {
		name    string
		flag    string
		outcome string
		score   float64
		message string
	}{
		{"wrong", "flag{42}", "incorrect_flag", 0, "Incorrect flag"},
		{"correct", "flag{84}", "solved", 100, "Correct flag"},
		{"repeat", "flag{84}", "already_solved", 100, "Challenge already solved"},
		{"repeat wrong text", "nope", "already_solved", 100, "Challenge already solved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/submissions", map[string]any{
				"user_id": id, "challenge_id": 1, "flag": tt.flag,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200 (%s)", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["outcome"] != tt.outcome || body["new_score"] != tt.score || body["message"] != tt.message {
				t.Errorf("body = %v", body)
			}
			if _, leaked := body["flag"]; leaked {
				t.Error("response leaks the flag")
			}
		})
	}
}

func TestScoringHandler_Submit_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "erin")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"unknown challenge", map[string]any{"user_id": id, "challenge_id": 999, "flag": "x"}, http.StatusNotFound},
		{"unknown account", map[string]any{"user_id": uuid.New(), "challenge_id": 1, "flag": "x"}, http.StatusNotFound},
		{"zero challenge", map[string]any{"user_id": id, "challenge_id": 0, "flag": "x"}, http.StatusBadRequest},
		{"empty flag", map[string]any{"user_id": id, "challenge_id": 1, "flag": ""}, http.StatusBadRequest},
		{"blank flag", map[string]any{"user_id": id, "challenge_id": 1, "flag": "   "}, http.StatusBadRequest},
		{"long flag", map[string]any{"user_id": id, "challenge_id": 1, "flag": strings.Repeat("f", 257)}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/submissions", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d; want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestScoringHandler_UnlockHint(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "frank")

	rec := env.do(t, http.MethodPost, "/hints/unlock", map[string]any{"user_id": id, "challenge_id": 1})
	body := decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["outcome"] != "insufficient_score" {
		t.Fatalf("status %d body %v; want insufficient_score", rec.Code, body)
	}
	if _, leaked := body["hint"]; leaked {
		t.Error("hint returned without unlock")
	}

	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": id, "challenge_id": 1, "flag": "flag{84}"})

	rec = env.do(t, http.MethodPost, "/hints/unlock", map[string]any{"user_id": id, "challenge_id": 1})
	body = decodeBody(t, rec)
	if body["outcome"] != "unlocked" || body["cost_deducted"] != float64(10) || body["new_score"] != float64(90) {
		t.Errorf("unlock body = %v", body)
	}
	if hint, _ := body["hint"].(string); hint == "" {
		t.Error("unlocked response has no hint")
	}

	rec = env.do(t, http.MethodPost, "/hints/unlock", map[string]any{"user_id": id, "challenge_id": 1})
	body = decodeBody(t, rec)
	if body["outcome"] != "already_unlocked" || body["new_score"] != float64(90) {
		t.Errorf("repeat body = %v", body)
	}
}

func TestScoringHandler_Challenges(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, "grace")
	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": id, "challenge_id": 1, "flag": "flag{84}"})
	env.do(t, http.MethodPost, "/hints/unlock", map[string]any{"user_id": id, "challenge_id": 1})

	rec := env.do(t, http.MethodGet, "/challenges", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	anon := decodeBody(t, rec)["challenges"].([]any)
	if len(anon) != 17 {
		t.Errorf("challenges = %d; want 17", len(anon))
	}
	for _, c := range anon {
		ch := c.(map[string]any)
		if _, ok := ch["flag"]; ok {
			t.Fatal("challenge list leaks flags")
		}
		if _, ok := ch["hint"]; ok {
			t.Fatal("anonymous list leaks hints")
		}
	}

	rec = env.do(t, http.MethodGet, "/challenges?user_id="+id.String(), nil)
	first := decodeBody(t, rec)["challenges"].([]any)[0].(map[string]any)
	if first["solved"] != true || first["hint_unlocked"] != true || first["hint"] == nil {
		t.Errorf("first challenge = %v; want solved with hint", first)
	}

	if rec := env.do(t, http.MethodGet, "/challenges?user_id=bad", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad user_id status = %d; want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/challenges?user_id="+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d; want 404", rec.Code)
	}
}

func TestLeaderboardHandler_Top(t *testing.T) {
	env := newTestEnv(t)
	low := env.account(t, "low")
	rec := env.do(t, http.MethodPost, "/accounts", map[string]string{"username": "high", "guild": "nebuchadnezzar"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	high := uuid.MustParse(decodeBody(t, rec)["id"].(string))
	env.account(t, "zero")

	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": low, "challenge_id": 1, "flag": "flag{84}"})
	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": high, "challenge_id": 1, "flag": "flag{84}"})
	env.do(t, http.MethodPost, "/submissions", map[string]any{"user_id": high, "challenge_id": 2, "flag": "flag{3}"})

	rec = env.do(t, http.MethodGet, "/leaderboard?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	standings := decodeBody(t, rec)["standings"].([]any)
	if len(standings) != 2 {
		t.Fatalf("standings = %d; want 2", len(standings))
	}
	top := standings[0].(map[string]any)
	if top["username"] != "high" || top["score"] != float64(200) || top["position"] != float64(1) {
		t.Errorf("top = %v", top)
	}
	if top["guild"] != "nebuchadnezzar" {
		t.Errorf("top guild = %v; want nebuchadnezzar", top["guild"])
	}
	if _, ok := standings[1].(map[string]any)["guild"]; ok {
		t.Errorf("guildless standing carries a guild: %v", standings[1])
	}

	if rec := env.do(t, http.MethodGet, "/leaderboard?limit=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d; want 400", rec.Code)
	}
}

func TestLeaderboardHandler_Audit(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "henry")

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Basic " + adminToken, http.StatusUnauthorized},
		{"valid", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/admin/audit", nil, "Authorization", tt.auth)
			if rec.Code != tt.status {
				t.Fatalf("status = %d; want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				body := decodeBody(t, rec)
				if body["consistent"] != true {
					t.Errorf("body = %v; want consistent", body)
				}
			}
		})
	}
}

func TestLeaderboardHandler_Audit_Disabled(t *testing.T) {
	h := NewLeaderboardHandler(nil, nil, "")
	rec := httptest.NewRecorder()
	h.Audit(rec, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrChallengeNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrAccountAlreadyExists, http.StatusConflict},
		{domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{domain.ErrCatalogConflict, http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteDomainError_HidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteDomainError(rec, req, errors.Join(domain.ErrStorageUnavailable, errors.New("dial tcp 10.0.0.5:5432")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("body leaks cause: %s", rec.Body.String())
	}
}
