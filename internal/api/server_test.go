package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/armlink/internal/armband"
	"github.com/nerrad567/armlink/internal/auth"
	"github.com/nerrad567/armlink/internal/hub"
	"github.com/nerrad567/armlink/internal/infrastructure/config"
	"github.com/nerrad567/armlink/internal/infrastructure/database"
	"github.com/nerrad567/armlink/internal/infrastructure/logging"
	"github.com/nerrad567/armlink/internal/session"
	_ "github.com/nerrad567/armlink/migrations" // registers the schema
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testHubID    = "hub-test"
	testClientID = "rig"
	testAPIKey   = "rig-key"
)

var (
	testKeyHashOnce sync.Once
	testKeyHash     string
)

// rigKeyHash hashes testAPIKey once per test binary.
func rigKeyHash(t *testing.T) string {
	t.Helper()
	testKeyHashOnce.Do(func() {
		h, err := auth.HashKey(testAPIKey)
		if err != nil {
			t.Fatalf("HashKey() error = %v", err)
		}
		testKeyHash = h
	})
	return testKeyHash
}

var errSinkDown = errors.New("sink down")

type sentCommand struct {
	Handle  armband.Handle
	Command armband.Command
}

// mockSink records every command it receives.
type mockSink struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (s *mockSink) Send(h armband.Handle, cmd armband.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCommand{Handle: h, Command: cmd})
	return nil
}

func (s *mockSink) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *mockSink) last() (sentCommand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentCommand{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// mockConn reports a fixed broker state.
type mockConn struct{ connected bool }

func (m mockConn) IsConnected() bool { return m.connected }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

type testEnv struct {
	srv  *Server
	hub  *hub.Hub
	sink *mockSink
}

// testServer creates a Server over a real hub whose recorder is the
// server's WebSocket hub. The hub uses the "none" unlock policy so the
// sink only sees commands the tests send.
func testServer(t *testing.T, modify ...func(*Deps)) *testEnv {
	t.Helper()

	log := testLogger()
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	ws := NewWSHub(wsCfg, log)

	sink := &mockSink{}
	h, err := hub.New(hub.Options{Sink: sink, UnlockPolicy: hub.UnlockPolicyNone, Recorder: ws})
	if err != nil {
		t.Fatalf("hub.New() error = %v", err)
	}

	authn, err := auth.NewAuthenticator([]config.APIClientConfig{
		{ID: testClientID, KeyHash: rigKeyHash(t), Role: string(auth.RoleOperator)},
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: wsCfg,
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:  log,
		Hub:     h,
		Auth:    authn,
		WSHub:   ws,
		HubID:   testHubID,
		Version: "test",
	}
	for _, fn := range modify {
		fn(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{srv: srv, hub: h, sink: sink}
}

// tokenFor mints a token for the given role without going through /auth/token.
func tokenFor(t *testing.T, role auth.Role) string {
	t.Helper()
	token, _, err := auth.GenerateAccessToken(auth.Client{ID: "client-" + string(role), Role: role}, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func (e *testEnv) connect(h armband.Handle, arm armband.Arm) {
	e.hub.HandleConnected(armband.ConnectEvent{Handle: h, Arm: arm, XDirection: armband.XDirectionTowardWrist})
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

// ─── Construction ─────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	env := testServer(t)
	base := Deps{Logger: testLogger(), Hub: env.hub, Auth: env.srv.auth}

	tests := []struct {
		name   string
		modify func(*Deps)
	}{
		{name: "no logger", modify: func(d *Deps) { d.Logger = nil }},
		{name: "no hub", modify: func(d *Deps) { d.Hub = nil }},
		{name: "no authenticator", modify: func(d *Deps) { d.Auth = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.modify(&d)
			if _, err := New(d); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	srv, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.WSHub() == nil {
		t.Error("WSHub() = nil, want private hub")
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

// ─── Health / Middleware ──────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.MQTT = mockConn{connected: true} })
	env.connect(1, armband.ArmLeft)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeBody[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["hub_id"] != testHubID {
		t.Errorf("hub_id = %v, want %s", resp["hub_id"], testHubID)
	}
	if resp["armbands"] != float64(1) {
		t.Errorf("armbands = %v, want 1", resp["armbands"])
	}
}

func TestHealth_DegradedWhenBrokerDown(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.MQTT = mockConn{connected: false} })

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	resp := decodeBody[map[string]any](t, w)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID to be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://dash.local"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/armbands", nil)
	req.Header.Set("Origin", "http://dash.local")
	w := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Errorf("Allow-Origin = %q, want http://dash.local", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/armbands", nil)
	req.Header.Set("Origin", "http://elsewhere")
	w = httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unlisted origin = %q, want empty", got)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if e := decodeBody[Error](t, w); e.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNotFound)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/health", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /health status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// ─── Authentication ───────────────────────────────────────────────

func TestToken_Success(t *testing.T) {
	env := testServer(t)

	body := `{"client_id":"` + testClientID + `","api_key":"` + testAPIKey + `"}`
	w := env.do(t, http.MethodPost, "/api/v1/auth/token", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeBody[tokenResponse](t, w)
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 15*60 {
		t.Errorf("expires_in = %d, want %d", resp.ExpiresIn, 15*60)
	}
	if resp.Role != string(auth.RoleOperator) {
		t.Errorf("role = %q, want operator", resp.Role)
	}

	claims, err := auth.ParseToken(resp.AccessToken, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != testClientID {
		t.Errorf("subject = %q, want %q", claims.Subject, testClientID)
	}

	// The issued token opens protected routes.
	if w := env.do(t, http.MethodGet, "/api/v1/armbands", "", resp.AccessToken); w.Code != http.StatusOK {
		t.Errorf("GET /armbands with issued token = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestToken_Rejected(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "wrong key", body: `{"client_id":"rig","api_key":"nope"}`, want: http.StatusUnauthorized},
		{name: "unknown client", body: `{"client_id":"ghost","api_key":"rig-key"}`, want: http.StatusUnauthorized},
		{name: "missing key", body: `{"client_id":"rig"}`, want: http.StatusBadRequest},
		{name: "invalid JSON", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/auth/token", tt.body, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + mustToken(t, "another-secret-that-is-32-characters")},
		{name: "expired", header: "Bearer " + expiredToken(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/armbands", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.srv.buildRouter().ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	token, _, err := auth.GenerateAccessToken(auth.Client{ID: "x", Role: auth.RoleAdmin}, secret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

// expiredToken returns a correctly signed token that expired a minute ago.
func expiredToken(t *testing.T) string {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	claims := auth.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: auth.RoleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestPermissions(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)

	tests := []struct {
		name   string
		role   auth.Role
		method string
		path   string
		body   string
		want   int
	}{
		{name: "viewer reads", role: auth.RoleViewer, method: http.MethodGet, path: "/api/v1/armbands", want: http.StatusOK},
		{name: "viewer cannot lock", role: auth.RoleViewer, method: http.MethodPost, path: "/api/v1/armbands/1/lock", want: http.StatusForbidden},
		{name: "operator locks", role: auth.RoleOperator, method: http.MethodPost, path: "/api/v1/armbands/1/lock", want: http.StatusAccepted},
		{name: "operator no metrics", role: auth.RoleOperator, method: http.MethodGet, path: "/api/v1/metrics", want: http.StatusForbidden},
		{name: "admin metrics", role: auth.RoleAdmin, method: http.MethodGet, path: "/api/v1/metrics", want: http.StatusOK},
		{name: "viewer sessions", role: auth.RoleViewer, method: http.MethodGet, path: "/api/v1/sessions", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, tokenFor(t, tt.role))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ─── Armband reads ────────────────────────────────────────────────

func TestListArmbands(t *testing.T) {
	env := testServer(t)
	token := tokenFor(t, auth.RoleViewer)

	w := env.do(t, http.MethodGet, "/api/v1/armbands", "", token)
	resp := decodeBody[armbandListResponse](t, w)
	if resp.Count != 0 || resp.Armbands == nil {
		t.Errorf("empty list = %+v, want count 0 and non-nil armbands", resp)
	}

	env.connect(3, armband.ArmRight)
	env.connect(1, armband.ArmLeft)

	resp = decodeBody[armbandListResponse](t, env.do(t, http.MethodGet, "/api/v1/armbands", "", token))
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Armbands[0].Handle != 3 || resp.Armbands[1].Handle != 1 {
		t.Errorf("order = [%d %d], want [3 1]", resp.Armbands[0].Handle, resp.Armbands[1].Handle)
	}
}

func TestArmbandStats(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)
	env.connect(2, armband.ArmLeft)

	w := env.do(t, http.MethodGet, "/api/v1/armbands/stats", "", tokenFor(t, auth.RoleViewer))
	stats := decodeBody[hub.Stats](t, w)
	if stats.Connected != 2 {
		t.Errorf("connected = %d, want 2", stats.Connected)
	}
	if stats.ByArm[armband.ArmLeft] != 2 {
		t.Errorf("by_arm[left] = %d, want 2", stats.ByArm[armband.ArmLeft])
	}
}

func TestGetArmband(t *testing.T) {
	env := testServer(t)
	env.connect(7, armband.ArmRight)
	token := tokenFor(t, auth.RoleViewer)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "connected", path: "/api/v1/armbands/7", want: http.StatusOK},
		{name: "unknown", path: "/api/v1/armbands/8", want: http.StatusNotFound},
		{name: "not a number", path: "/api/v1/armbands/left", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "", token)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				rec := decodeBody[armband.Record](t, w)
				if rec.Handle != 7 || rec.Arm != armband.ArmRight {
					t.Errorf("record = %+v, want handle 7 on right arm", rec)
				}
			}
		})
	}
}

func TestArmbandFrame(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)
	env.connect(2, armband.ArmRight)
	token := tokenFor(t, auth.RoleViewer)

	frame := decodeBody[FramePayload](t, env.do(t, http.MethodGet, "/api/v1/armbands/frame", "", token))
	if frame.Count != 2 || len(frame.Frame.Handles) != 2 {
		t.Fatalf("default frame count = %d handles = %d, want 2", frame.Count, len(frame.Frame.Handles))
	}

	frame = decodeBody[FramePayload](t, env.do(t, http.MethodGet, "/api/v1/armbands/frame?n=4", "", token))
	if len(frame.Frame.Arms) != 4 {
		t.Fatalf("arms slots = %d, want 4", len(frame.Frame.Arms))
	}
	if frame.Frame.Arms[3].Present {
		t.Error("slot 3 present, want padding")
	}
	if got := hub.Values(frame.Frame.Handles, -1); got[0] != 1 || got[1] != 2 || got[2] != -1 {
		t.Errorf("handles = %v, want [1 2 -1 -1]", got)
	}

	for _, bad := range []string{"-1", "x", "65"} {
		w := env.do(t, http.MethodGet, "/api/v1/armbands/frame?n="+bad, "", token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("n=%s status = %d, want %d", bad, w.Code, http.StatusBadRequest)
		}
	}
}

func TestArmbandEMG(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)
	token := tokenFor(t, auth.RoleViewer)

	emg := []int{1, 2, 3, 4, 5, 6, 7, 8}
	env.hub.HandleSample(armband.Sample{Handle: 1, Kind: armband.SampleEMG, EMG: emg})

	resp := decodeBody[emgResponse](t, env.do(t, http.MethodGet, "/api/v1/armbands/1/emg", "", token))
	if resp.Handle == nil || *resp.Handle != 1 {
		t.Errorf("handle = %v, want 1", resp.Handle)
	}
	if len(resp.EMG) != len(emg) || resp.EMG[7] != 8 {
		t.Errorf("emg = %v, want %v", resp.EMG, emg)
	}

	latest := decodeBody[emgResponse](t, env.do(t, http.MethodGet, "/api/v1/armbands/emg", "", token))
	if latest.Handle != nil || len(latest.EMG) != len(emg) || latest.EMG[0] != 1 {
		t.Errorf("latest = %+v, want unaddressed %v", latest, emg)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/armbands/2/emg", "", token); w.Code != http.StatusNotFound {
		t.Errorf("unknown handle status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Commands ─────────────────────────────────────────────────────

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		want    int
		wantCmd armband.Command
	}{
		{name: "lock", path: "/api/v1/armbands/1/lock", want: http.StatusAccepted, wantCmd: armband.LockCommand()},
		{name: "unlock timed", path: "/api/v1/armbands/1/unlock", want: http.StatusAccepted, wantCmd: armband.UnlockCommand(armband.UnlockTimed)},
		{name: "unlock hold", path: "/api/v1/armbands/1/unlock", body: `{"hold":true}`, want: http.StatusAccepted, wantCmd: armband.UnlockCommand(armband.UnlockHold)},
		{name: "vibrate", path: "/api/v1/armbands/1/vibrate", body: `{"type":"Medium"}`, want: http.StatusAccepted, wantCmd: armband.VibrateCommand(armband.VibrationMedium)},
		{name: "streaming on", path: "/api/v1/armbands/1/streaming", body: `{"enabled":true}`, want: http.StatusAccepted, wantCmd: armband.StreamingCommand(true)},
		{name: "vibrate unknown type", path: "/api/v1/armbands/1/vibrate", body: `{"type":"buzz"}`, want: http.StatusBadRequest},
		{name: "streaming missing enabled", path: "/api/v1/armbands/1/streaming", body: `{}`, want: http.StatusBadRequest},
		{name: "unlock bad body", path: "/api/v1/armbands/1/unlock", body: `{`, want: http.StatusBadRequest},
		{name: "unknown handle", path: "/api/v1/armbands/9/lock", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.connect(1, armband.ArmLeft)

			w := env.do(t, http.MethodPost, tt.path, tt.body, tokenFor(t, auth.RoleOperator))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}

			got, sent := env.sink.last()
			if tt.want != http.StatusAccepted {
				if sent {
					t.Errorf("sink received %+v, want nothing", got)
				}
				return
			}
			if !sent || got.Handle != 1 || got.Command != tt.wantCmd {
				t.Errorf("sink last = %+v (sent %v), want %+v", got, sent, tt.wantCmd)
			}
			resp := decodeBody[commandResponse](t, w)
			if resp.Command != tt.wantCmd.String() || resp.Status != "sent" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestCommand_NotDelivered(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)
	env.sink.setErr(errSinkDown)

	w := env.do(t, http.MethodPost, "/api/v1/armbands/1/lock", "", tokenFor(t, auth.RoleOperator))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if e := decodeBody[Error](t, w); e.Code != ErrCodeNotDelivered {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNotDelivered)
	}
}

func TestStreaming_UpdatesRecord(t *testing.T) {
	env := testServer(t)
	env.connect(1, armband.ArmLeft)
	token := tokenFor(t, auth.RoleOperator)

	env.do(t, http.MethodPost, "/api/v1/armbands/1/streaming", `{"enabled":true}`, token)

	rec := decodeBody[armband.Record](t, env.do(t, http.MethodGet, "/api/v1/armbands/1", "", token))
	if !rec.Streaming {
		t.Error("streaming = false after enabling")
	}
}

// ─── Sessions ─────────────────────────────────────────────────────

func setupSessions(t *testing.T) *session.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return session.NewSQLiteRepository(db.DB)
}

func TestListSessions(t *testing.T) {
	repo := setupSessions(t)
	env := testServer(t, func(d *Deps) { d.Sessions = repo })
	token := tokenFor(t, auth.RoleViewer)

	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, h := range []armband.Handle{1, 2, 1} {
		s := &session.Session{HubID: testHubID, Handle: h, Arm: armband.ArmLeft, StartedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := repo.Start(ctx, s); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if i == 0 {
			if _, err := repo.End(ctx, testHubID, h, t0.Add(30*time.Second), "disconnected"); err != nil {
				t.Fatalf("End() error = %v", err)
			}
		}
	}
	other := &session.Session{HubID: "other-hub", Handle: 1, StartedAt: t0}
	if err := repo.Start(ctx, other); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantCode  int
	}{
		{name: "this hub", query: "", wantTotal: 3, wantCode: http.StatusOK},
		{name: "by handle", query: "?handle=1", wantTotal: 2, wantCode: http.StatusOK},
		{name: "open only", query: "?open=true", wantTotal: 2, wantCode: http.StatusOK},
		{name: "other hub", query: "?hub_id=other-hub", wantTotal: 1, wantCode: http.StatusOK},
		{name: "bad handle", query: "?handle=x", wantCode: http.StatusBadRequest},
		{name: "bad open", query: "?open=maybe", wantCode: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-1", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/sessions"+tt.query, "", token)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			res := decodeBody[session.ListResult](t, w)
			if res.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", res.Total, tt.wantTotal)
			}
		})
	}

	res := decodeBody[session.ListResult](t, env.do(t, http.MethodGet, "/api/v1/sessions?limit=1&offset=1", "", token))
	if len(res.Sessions) != 1 || res.Limit != 1 || res.Offset != 1 {
		t.Errorf("page = %d sessions limit %d offset %d, want 1/1/1", len(res.Sessions), res.Limit, res.Offset)
	}
}

// ─── Metrics ──────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.MQTT = mockConn{connected: true} })
	env.connect(1, armband.ArmLeft)

	w := env.do(t, http.MethodGet, "/api/v1/metrics", "", tokenFor(t, auth.RoleAdmin))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	m := decodeBody[SystemMetrics](t, w)
	if m.HubID != testHubID || m.Version != "test" {
		t.Errorf("hub_id/version = %q/%q", m.HubID, m.Version)
	}
	if m.Armbands.Connected != 1 {
		t.Errorf("armbands.connected = %d, want 1", m.Armbands.Connected)
	}
	if !m.MQTT.Connected {
		t.Error("mqtt.connected = false, want true")
	}
	if m.Bridge != nil {
		t.Errorf("bridge = %+v, want omitted without provider", m.Bridge)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
}
