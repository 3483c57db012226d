package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		Port:               "0",
		UseMemoryStore:     true,
		JWTSecret:          "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		LongPollWait:       2 * time.Second,
		AllowedOrigins:     []string{"*"},
	}
}

// newTestServer stands up the full router over the seeded in-memory store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testConfig()
	st := store.NewMemoryStore()
	if err := store.SeedSampleData(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ts := httptest.NewServer(New(cfg, st, zap.NewNop()))
	t.Cleanup(ts.Close)
	return ts
}

// request performs one JSON request and decodes the envelope.
func request(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

// login returns an access token for the seeded credentials.
func login(t *testing.T, ts *httptest.Server, loginName, password string) string {
	t.Helper()
	status, env := request(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login_name": loginName,
		"password":   password,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", loginName, status)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("login %s: %v", loginName, err)
	}
	return data.AccessToken
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	status, _ := request(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login_name": "admin",
		"password":   "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	status, _ = request(t, ts, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login_name": "nobody",
		"password":   "admin",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("unknown account status = %d, want 401", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	status, _ := request(t, ts, http.MethodGet, "/api/projects/", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	// Contributors never reach the project administration surface.
	if status, _ := request(t, ts, http.MethodGet, "/api/projects/", userToken, nil); status != http.StatusForbidden {
		t.Errorf("contributor project list status = %d, want 403", status)
	}
	if status, _ := request(t, ts, http.MethodGet, "/api/contributors/", userToken, nil); status != http.StatusForbidden {
		t.Errorf("contributor account list status = %d, want 403", status)
	}
	// Owners never reach the join flow.
	if status, _ := request(t, ts, http.MethodPost, "/api/join/", adminToken, map[string]string{"entry_key": "pizza"}); status != http.StatusForbidden {
		t.Errorf("owner join status = %d, want 403", status)
	}
}

func TestTicketLifecyclePerViewer(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	ticketStatus := func(token string) string {
		status, env := request(t, ts, http.MethodGet, "/api/tickets/1", token, nil)
		if status != http.StatusOK {
			t.Fatalf("get ticket: status %d", status)
		}
		var data struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode ticket: %v", err)
		}
		return data.Status
	}

	if got := ticketStatus(userToken); got != "open" {
		t.Errorf("initial contributor status = %q, want open", got)
	}

	if status, _ := request(t, ts, http.MethodPost, "/api/tickets/1/accept", userToken, nil); status != http.StatusOK {
		t.Fatalf("accept: status %d", status)
	}
	if got := ticketStatus(userToken); got != "accepted" {
		t.Errorf("post-accept status = %q, want accepted", got)
	}

	// Accepting again is a quiet no-op.
	if status, _ := request(t, ts, http.MethodPost, "/api/tickets/1/accept", userToken, nil); status != http.StatusOK {
		t.Errorf("re-accept: status %d, want 200", status)
	}

	status, _ := request(t, ts, http.MethodPost, "/api/tickets/1/observations", userToken, map[string]interface{}{
		"outcome": "checkout succeeded", "quantity": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("observation: status %d", status)
	}
	// Processed on the first observation even though the ticket asks for 8.
	if got := ticketStatus(userToken); got != "processed" {
		t.Errorf("post-observation status = %q, want processed", got)
	}

	// The owner keeps seeing the open baseline throughout.
	if got := ticketStatus(adminToken); got != "open" {
		t.Errorf("owner status = %q, want open", got)
	}
}

func TestObservationRequiresAcceptance(t *testing.T) {
	ts := newTestServer(t)
	userToken := login(t, ts, "user", "password")

	status, _ := request(t, ts, http.MethodPost, "/api/tickets/1/observations", userToken, map[string]interface{}{
		"outcome": "nope", "quantity": 1,
	})
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
}

func TestMissingResourcesAre404BeforePermission(t *testing.T) {
	ts := newTestServer(t)
	userToken := login(t, ts, "user", "password")
	adminToken := login(t, ts, "admin", "admin")

	if status, _ := request(t, ts, http.MethodGet, "/api/tickets/999", userToken, nil); status != http.StatusNotFound {
		t.Errorf("missing ticket status = %d, want 404", status)
	}
	if status, _ := request(t, ts, http.MethodDelete, "/api/projects/ghost", adminToken, nil); status != http.StatusNotFound {
		t.Errorf("missing project status = %d, want 404", status)
	}
	if status, _ := request(t, ts, http.MethodPost, "/api/join/", userToken, map[string]string{"entry_key": "ghost"}); status != http.StatusNotFound {
		t.Errorf("join missing project status = %d, want 404", status)
	}
}

func TestDuplicateJoinConflicts(t *testing.T) {
	ts := newTestServer(t)
	userToken := login(t, ts, "user", "password")

	status, _ := request(t, ts, http.MethodPost, "/api/join/", userToken, map[string]string{"entry_key": "pizza"})
	if status != http.StatusConflict {
		t.Errorf("duplicate join status = %d, want 409", status)
	}
}

func TestNonMemberCannotSeeTicket(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")

	password := "secret"
	status, _ := request(t, ts, http.MethodPost, "/api/contributors/", adminToken, map[string]interface{}{
		"login_name": "stranger", "password": password, "first_name": "S", "last_name": "T",
	})
	if status != http.StatusCreated {
		t.Fatalf("create contributor: status %d", status)
	}

	strangerToken := login(t, ts, "stranger", password)
	if status, _ := request(t, ts, http.MethodGet, "/api/tickets/1", strangerToken, nil); status != http.StatusForbidden {
		t.Errorf("non-member ticket view status = %d, want 403", status)
	}

	// Joining the project opens the ticket up.
	if status, _ := request(t, ts, http.MethodPost, "/api/join/", strangerToken, map[string]string{"entry_key": "pizza"}); status != http.StatusCreated {
		t.Fatalf("join status = %d, want 201", status)
	}
	if status, _ := request(t, ts, http.MethodGet, "/api/tickets/1", strangerToken, nil); status != http.StatusOK {
		t.Errorf("member ticket view status = %d, want 200", status)
	}
}

func TestCrossRoleLoginNameConflict(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")

	// "user" already exists as a contributor; creating an owner with the
	// same login must conflict.
	status, _ := request(t, ts, http.MethodPost, "/api/owners/", adminToken, map[string]interface{}{
		"login_name": "user", "password": "x", "first_name": "U", "last_name": "S",
	})
	if status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestOwnerPasswordSelfMatch(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")

	// Second owner created by admin.
	status, _ := request(t, ts, http.MethodPost, "/api/owners/", adminToken, map[string]interface{}{
		"login_name": "boss", "password": "bosspw", "first_name": "B", "last_name": "O",
	})
	if status != http.StatusCreated {
		t.Fatalf("create owner: status %d", status)
	}

	// Admin may not rewrite boss's password through the upsert.
	status, _ = request(t, ts, http.MethodPost, "/api/owners/", adminToken, map[string]interface{}{
		"login_name": "boss", "password": "hijacked", "first_name": "B", "last_name": "O",
	})
	if status != http.StatusForbidden {
		t.Errorf("foreign password change status = %d, want 403", status)
	}

	// Boss changes their own password.
	bossToken := login(t, ts, "boss", "bosspw")
	status, _ = request(t, ts, http.MethodPost, "/api/owners/", bossToken, map[string]interface{}{
		"login_name": "boss", "password": "newpw", "first_name": "B", "last_name": "O",
	})
	if status != http.StatusOK {
		t.Errorf("self password change status = %d, want 200", status)
	}
	login(t, ts, "boss", "newpw")
}

func TestForeignOwnerForbidden(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")

	status, _ := request(t, ts, http.MethodPost, "/api/owners/", adminToken, map[string]interface{}{
		"login_name": "rival", "password": "rivalpw", "first_name": "R", "last_name": "V",
	})
	if status != http.StatusCreated {
		t.Fatalf("create owner: status %d", status)
	}
	rivalToken := login(t, ts, "rival", "rivalpw")

	if status, _ := request(t, ts, http.MethodGet, "/api/projects/pizza", rivalToken, nil); status != http.StatusForbidden {
		t.Errorf("foreign owner project view status = %d, want 403", status)
	}
	if status, _ := request(t, ts, http.MethodDelete, "/api/tickets/1", rivalToken, nil); status != http.StatusForbidden {
		t.Errorf("foreign owner ticket delete status = %d, want 403", status)
	}
}

func TestProjectDeletionCascadesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	if status, _ := request(t, ts, http.MethodDelete, "/api/projects/pizza", adminToken, nil); status != http.StatusOK {
		t.Fatalf("delete project: status %d", status)
	}
	if status, _ := request(t, ts, http.MethodGet, "/api/tickets/1", userToken, nil); status != http.StatusNotFound {
		t.Errorf("ticket after project deletion status = %d, want 404", status)
	}
}

func TestOwnerDeletionCascadesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	status, _ := request(t, ts, http.MethodPost, "/api/owners/", adminToken, map[string]interface{}{
		"login_name": "boss", "password": "bosspw", "first_name": "B", "last_name": "O",
	})
	if status != http.StatusCreated {
		t.Fatalf("create owner: status %d", status)
	}
	bossToken := login(t, ts, "boss", "bosspw")

	// Removing the owner takes their projects and tickets with them.
	if status, _ := request(t, ts, http.MethodDelete, "/api/owners/admin", bossToken, nil); status != http.StatusOK {
		t.Fatalf("delete owner: status %d", status)
	}
	if status, _ := request(t, ts, http.MethodGet, "/api/owners/admin", bossToken, nil); status != http.StatusNotFound {
		t.Errorf("deleted owner status = %d, want 404", status)
	}
	if status, _ := request(t, ts, http.MethodGet, "/api/tickets/1", userToken, nil); status != http.StatusNotFound {
		t.Errorf("ticket after owner deletion status = %d, want 404", status)
	}
}

func TestMessagesAndLongPoll(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	status, env := request(t, ts, http.MethodPost, "/api/messages/1/", userToken, map[string]string{"content": "first"})
	if status != http.StatusCreated {
		t.Fatalf("send message: status %d", status)
	}
	var sent struct {
		Seq int64 `json:"seq"`
	}
	if err := json.Unmarshal(env.Data, &sent); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	status, env = request(t, ts, http.MethodGet, "/api/messages/1/", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list messages: status %d", status)
	}
	var listed []struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(listed) != 1 || listed[0].Content != "first" {
		t.Fatalf("listed = %+v, want one message", listed)
	}

	// Long poll: a waiter blocked past the last sequence wakes on the next
	// message.
	type pollResult struct {
		status int
		env    envelope
	}
	done := make(chan pollResult, 1)
	go func() {
		s, e := request(t, ts, http.MethodGet, fmt.Sprintf("/api/messages/1/listen?after=%d", sent.Seq), userToken, nil)
		done <- pollResult{s, e}
	}()

	time.Sleep(100 * time.Millisecond)
	if status, _ := request(t, ts, http.MethodPost, "/api/messages/1/", adminToken, map[string]string{"content": "second"}); status != http.StatusCreated {
		t.Fatalf("send second message: status %d", status)
	}

	select {
	case r := <-done:
		if r.status != http.StatusOK {
			t.Fatalf("listen: status %d", r.status)
		}
		var woke []struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(r.env.Data, &woke); err != nil {
			t.Fatalf("decode listen batch: %v", err)
		}
		if len(woke) != 1 || woke[0].Content != "second" {
			t.Errorf("listen batch = %+v, want the second message", woke)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll never woke")
	}
}

func TestLongPollReports404WhenTicketDeletedMidWait(t *testing.T) {
	ts := newTestServer(t)
	adminToken := login(t, ts, "admin", "admin")
	userToken := login(t, ts, "user", "password")

	done := make(chan int, 1)
	go func() {
		s, _ := request(t, ts, http.MethodGet, "/api/messages/1/listen?after=0", userToken, nil)
		done <- s
	}()

	time.Sleep(100 * time.Millisecond)
	if status, _ := request(t, ts, http.MethodDelete, "/api/tickets/1", adminToken, nil); status != http.StatusOK {
		t.Fatalf("delete ticket: status %d", status)
	}

	select {
	case status := <-done:
		if status != http.StatusNotFound {
			t.Errorf("listen after deletion status = %d, want 404", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll never observed the deletion")
	}
}

func TestLongPollTimesOutEmpty(t *testing.T) {
	ts := newTestServer(t)
	userToken := login(t, ts, "user", "password")

	start := time.Now()
	status, env := request(t, ts, http.MethodGet, "/api/messages/1/listen?after=0", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("listen: status %d", status)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("listen returned after %v, expected to hold near the wait bound", elapsed)
	}
	var batch []json.RawMessage
	if err := json.Unmarshal(env.Data, &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(batch) != 0 {
		t.Errorf("batch = %d messages, want 0", len(batch))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	status, env := request(t, ts, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if !env.Success {
		t.Error("healthz envelope not successful")
	}
}
