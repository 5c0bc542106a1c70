package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"
	"chessBlocker/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	mu      sync.Mutex
	runs    []models.Intent
	release chan struct{}
	err     error
	busy    bool
	active  bool

	inspection *orchestrator.Inspection
	inspectErr error
	store      *orchestrator.StatusStore
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{store: orchestrator.NewStatusStore()}
}

func (f *fakeRunner) Run(ctx context.Context, intent models.Intent) (*orchestrator.RunResult, error) {
	f.mu.Lock()
	f.runs = append(f.runs, intent)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.RunResult{
		RunID:   "run-1",
		Intent:  intent,
		Message: "Chess sites " + intent.String() + "ed",
		Output:  "ok",
		Kills:   []orchestrator.KillResult{{Process: "firefox", Outcome: orchestrator.KillNoMatch, ExitCode: 1}},
	}, nil
}

func (f *fakeRunner) Inspect(ctx context.Context) (*orchestrator.Inspection, error) {
	return f.inspection, f.inspectErr
}

func (f *fakeRunner) Start(ctx context.Context, intent models.Intent, done func(*orchestrator.RunResult, error)) error {
	f.mu.Lock()
	if f.busy || f.active {
		f.mu.Unlock()
		return apperror.New(apperror.Busy, "another action is already in progress", nil)
	}
	f.active = true
	f.mu.Unlock()

	go func() {
		result, err := f.Run(ctx, intent)
		f.mu.Lock()
		f.active = false
		f.mu.Unlock()
		done(result, err)
	}()
	return nil
}

func (f *fakeRunner) Status() *orchestrator.StatusStore {
	return f.store
}

func (f *fakeRunner) Runs() []models.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Intent(nil), f.runs...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := NewWebhook(Config{Logger: testLogger()}, newFakeRunner())

	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health response %d %v", rec.Code, body)
	}
}

func TestWebhookAcceptsBeforeRunCompletes(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := NewWebhook(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":"block this now","tags":[]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "accepted" || body["action"] != "blocking" {
		t.Errorf("unexpected body %v", body)
	}

	close(runner.release)
	s.Wait()

	runs := runner.Runs()
	if len(runs) != 1 || runs[0] != models.IntentBlock {
		t.Errorf("expected one block run, got %v", runs)
	}
}

func TestWebhookIgnored(t *testing.T) {
	runner := newFakeRunner()
	s := NewWebhook(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":"hello","tags":[]}`, nil)
	if rec.Code != http.StatusOK || body["status"] != "ignored" {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
	if _, ok := body["action"]; ok {
		t.Error("ignored response should not carry an action")
	}

	s.Wait()
	if runs := runner.Runs(); len(runs) != 0 {
		t.Errorf("no run expected, got %v", runs)
	}
}

func TestWebhookEmptyBodyIgnored(t *testing.T) {
	s := NewWebhook(Config{Logger: testLogger()}, newFakeRunner())

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ignored" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
}

func TestWebhookTagsWin(t *testing.T) {
	runner := newFakeRunner()
	s := NewWebhook(Config{Logger: testLogger()}, runner)

	_, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook",
		`{"message":"block the sites","title":"Chess","priority":4,"tags":["ALLOW"]}`, nil)
	if body["action"] != "allowing" {
		t.Errorf("expected allowing, got %v", body)
	}
	s.Wait()
	if runs := runner.Runs(); len(runs) != 1 || runs[0] != models.IntentAllow {
		t.Errorf("expected one allow run, got %v", runs)
	}
}

func TestWebhookBusy(t *testing.T) {
	runner := newFakeRunner()
	runner.busy = true
	s := NewWebhook(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":"block"}`, nil)
	if rec.Code != http.StatusConflict || body["status"] != "busy" || body["code"] != "Busy" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}
	s.Wait()
	if runs := runner.Runs(); len(runs) != 0 {
		t.Errorf("busy webhook must not start a run, got %v", runs)
	}
}

func TestWebhookSecondRequestBusyWhileFirstRuns(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := NewWebhook(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":"block"}`, nil)
	if rec.Code != http.StatusOK || body["status"] != "accepted" {
		t.Fatalf("first webhook: unexpected %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":"allow"}`, nil)
	if rec.Code != http.StatusConflict || body["status"] != "busy" || body["action"] != "allowing" {
		t.Errorf("second webhook: unexpected %d %v", rec.Code, body)
	}

	close(runner.release)
	s.Wait()
	if runs := runner.Runs(); len(runs) != 1 || runs[0] != models.IntentBlock {
		t.Errorf("expected only the first run, got %v", runs)
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	s := NewWebhook(Config{Logger: testLogger()}, newFakeRunner())

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", `{"message":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["code"] != "BadRequest" || body["success"] != false {
		t.Errorf("unexpected error body %v", body)
	}
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignature(t *testing.T) {
	runner := newFakeRunner()
	s := NewWebhook(Config{Logger: testLogger(), WebhookSecret: "hush"}, runner)
	payload := `{"message":"suspend chess"}`

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", payload, nil)
	if rec.Code != http.StatusUnauthorized || body["code"] != "Unauthorized" {
		t.Errorf("missing signature: unexpected %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", payload,
		map[string]string{"X-Signature-256": sign(payload, "wrong")})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: expected 401, got %d", rec.Code)
	}

	rec, body = doJSON(t, s.Handler(), http.MethodPost, "/ntfy-webhook", payload,
		map[string]string{"X-Signature-256": sign(payload, "hush")})
	if rec.Code != http.StatusOK || body["status"] != "accepted" {
		t.Errorf("valid signature: unexpected %d %v", rec.Code, body)
	}
	s.Wait()
}

func TestControlAction(t *testing.T) {
	runner := newFakeRunner()
	s := NewControl(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/block", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["output"] != "ok" || body["runId"] != "run-1" {
		t.Errorf("unexpected body %v", body)
	}
	if runs := runner.Runs(); len(runs) != 1 || runs[0] != models.IntentBlock {
		t.Errorf("expected a synchronous block run, got %v", runs)
	}
}

func TestControlActionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upload", apperror.New(apperror.UploadFailed, "hosts file upload exited with code 2", nil), http.StatusInternalServerError, "UploadFailed"},
		{"connection", apperror.New(apperror.ConnectionError, "failed to connect", io.ErrUnexpectedEOF), http.StatusInternalServerError, "ConnectionError"},
		{"busy", apperror.New(apperror.Busy, "another action is already in progress", nil), http.StatusConflict, "Busy"},
		{"plain", io.ErrClosedPipe, http.StatusInternalServerError, "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			runner.err = tt.err
			s := NewControl(Config{Logger: testLogger()}, runner)

			rec, body := doJSON(t, s.Handler(), http.MethodPost, "/api/allow", "", nil)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if body["success"] != false || body["code"] != tt.code {
				t.Errorf("unexpected body %v", body)
			}
			if body["error"] != tt.err.Error() {
				t.Errorf("expected raw error text, got %v", body["error"])
			}
		})
	}
}

func TestStatusBeforeAndAfterRun(t *testing.T) {
	runner := newFakeRunner()
	s := NewControl(Config{Logger: testLogger()}, runner)

	_, body := doJSON(t, s.Handler(), http.MethodGet, "/api/status", "", nil)
	for _, field := range []string{"runId", "actionType", "state", "message", "timestamp"} {
		value, ok := body[field]
		if !ok || value != nil {
			t.Errorf("expected %s to be null, got %v", field, value)
		}
	}

	runner.store.Set(models.ActionStatus{
		RunID:      "abc",
		ActionType: models.IntentAllow,
		State:      models.StateSuccess,
		Message:    "Chess sites allowed",
		Timestamp:  time.Now(),
	})
	_, body = doJSON(t, s.Handler(), http.MethodGet, "/api/status", "", nil)
	if body["actionType"] != "allow" || body["state"] != "success" || body["runId"] != "abc" {
		t.Errorf("unexpected status %v", body)
	}
}

func TestAPIToken(t *testing.T) {
	s := NewControl(Config{Logger: testLogger(), APIToken: "t0ken"}, newFakeRunner())

	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusUnauthorized || body["code"] != "Unauthorized" {
		t.Errorf("expected 401, got %d %v", rec.Code, body)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", rec.Code)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer t0ken"})
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", rec.Code)
	}

	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/api/status?token=t0ken", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("query token: expected 200, got %d", rec.Code)
	}

	// the page itself stays public
	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("index: expected 200, got %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	s := NewControl(Config{Logger: testLogger()}, newFakeRunner())

	rec, _ := doJSON(t, s.Handler(), http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Chess Blocker")) {
		t.Error("expected the control page")
	}
}

func TestRemote(t *testing.T) {
	runner := newFakeRunner()
	runner.inspection = &orchestrator.Inspection{Path: "/etc/hosts", Policy: models.PolicyBlocked, Size: 42}
	s := NewControl(Config{Logger: testLogger()}, runner)

	rec, body := doJSON(t, s.Handler(), http.MethodGet, "/api/remote", "", nil)
	if rec.Code != http.StatusOK || body["policy"] != "blocked" || body["path"] != "/etc/hosts" {
		t.Errorf("unexpected response %d %v", rec.Code, body)
	}

	runner.inspectErr = apperror.New(apperror.ConnectionError, "failed to connect", nil)
	rec, body = doJSON(t, s.Handler(), http.MethodGet, "/api/remote", "", nil)
	if rec.Code != http.StatusInternalServerError || body["code"] != "ConnectionError" {
		t.Errorf("unexpected error response %d %v", rec.Code, body)
	}
}

func TestStatusFeed(t *testing.T) {
	runner := newFakeRunner()
	runner.store.Set(models.ActionStatus{RunID: "1", ActionType: models.IntentBlock, State: models.StateRunning})
	s := NewControl(Config{Logger: testLogger()}, runner)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if first := read(); first["state"] != "running" {
		t.Errorf("expected current status first, got %v", first)
	}

	runner.store.Set(models.ActionStatus{RunID: "1", ActionType: models.IntentBlock, State: models.StateSuccess})
	if next := read(); next["state"] != "success" || next["actionType"] != "block" {
		t.Errorf("expected pushed update, got %v", next)
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"message":"block"}`)
	if !verifyHMAC(body, "s", sign(string(body), "s")) {
		t.Error("valid signature should verify")
	}
	if verifyHMAC(body, "s", "") {
		t.Error("empty signature should not verify")
	}
	if verifyHMAC(body, "s", "sha256=00") {
		t.Error("invalid signature should not verify")
	}
}
