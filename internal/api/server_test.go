package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/ffmpeg"
	"github.com/smazurov/captioner/internal/render"
)

const (
	testUser = "admin"
	testPass = "s3cret"
)

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *render.Runner) {
	t.Helper()
	bus := events.New()
	runner := render.NewRunner(&render.Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		EventBus: bus,
		Tools:    ffmpeg.Tools{FFmpeg: "/nonexistent/ffmpeg", FFprobe: "/nonexistent/ffprobe"},
	})
	t.Cleanup(runner.CloseAll)

	opts := &Options{
		AuthUsername: testUser,
		AuthPassword: testPass,
		Runner:       runner,
		EventBus:     bus,
	}
	if mutate != nil {
		mutate(opts)
	}
	return NewServer(opts), runner
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Basic "+basicAuth(testUser, testPass))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthWithoutAuth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		ActiveJobs int    `json:"active_jobs"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.ActiveJobs != 0 {
		t.Errorf("body = %+v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request ID header")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc123" {
		t.Errorf("request ID = %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/renders", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != authRealm {
		t.Errorf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
	}

	cases := map[string]string{
		"wrong password": "Basic " + basicAuth(testUser, "nope"),
		"bearer":         "Bearer token",
		"bad base64":     "Basic !!!",
		"no colon":       "Basic " + base64.StdEncoding.EncodeToString([]byte("admin")),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/renders", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}

	if rec := do(t, s, http.MethodGet, "/api/renders", "", true); rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d", rec.Code)
	}
}

func TestAuthViaQuery(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/options?auth="+basicAuth(testUser, testPass), "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Options []ffmpeg.Option `json:"options"`
	}
	decode(t, rec, &body)
	if len(body.Options) != len(ffmpeg.AllOptions) {
		t.Errorf("got %d options", len(body.Options))
	}
}

func TestAuthDisabledWithoutCredentials(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.AuthUsername, o.AuthPassword = "", "" })
	if rec := do(t, s, http.MethodGet, "/api/renders", "", false); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth off", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.CORSOrigins = []string{"http://ui.local"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/renders", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/renders", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got %q", got)
	}
}

func TestUpdateRoutesWithoutService(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/update/check", "/api/update/status"} {
		if rec := do(t, s, http.MethodGet, path, "", true); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestMetricsMounted(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) {
		o.PrometheusHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "captioner_up 1\n")
		})
	})
	rec := do(t, s, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "captioner_up") {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}
