// Package api serves the captioner HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/captioner/internal/api/models"
	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/render"
	"github.com/smazurov/captioner/internal/updater"
	"github.com/smazurov/captioner/internal/version"
)

const authRealm = `Basic realm="Captioner API"`

// Options configures NewServer.
type Options struct {
	AuthUsername string
	AuthPassword string
	CORSOrigins  []string // empty allows any origin

	Runner            *render.Runner
	EventBus          *events.Bus
	UpdateService     updater.Service // optional
	PrometheusHandler http.Handler    // optional, mounted at GET /metrics
}

// Server is the huma API on a standard library mux.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	runner     *render.Runner
	eventBus   *events.Bus
	logger     *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds the API and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	cors := DefaultCORSConfig()
	if len(opts.CORSOrigins) > 0 {
		cors.AllowOrigins = opts.CORSOrigins
	}
	AddCORSHandler(mux, cors)

	config := huma.DefaultConfig("Captioner API", version.Version)
	config.Info.Description = "Run ffmpeg subtitle burn-in jobs and arbitrary commands with progress reporting"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}
	api := humago.New(mux, config)

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		runner:     opts.Runner,
		eventBus:   opts.EventBus,
		logger:     logging.GetLogger("api"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	api.UseMiddleware(NewCORSMiddleware(cors))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API for registering extra operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on addr and blocks until Stop. It returns http.ErrServerClosed after Stop.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+displayAddr(addr)+"/docs")
	return s.httpServer.ListenAndServe()
}

// Stop ends open event streams and drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	s.cancelBase()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{Body: models.HealthData{Status: "ok", Message: "API is healthy"}}
		if s.runner != nil {
			resp.Body.ActiveJobs = s.runner.Active()
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{Body: models.VersionData{
			Version:   v.Version,
			GitCommit: v.GitCommit,
			BuildDate: v.BuildDate,
			GoVersion: v.GoVersion,
			Platform:  v.Platform,
		}}, nil
	})

	s.registerOptionsRoutes()
	s.registerExecRoutes()
	s.registerRenderRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerUpdateRoutes()
}

func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// basicAuthMiddleware guards operations that declare security. Event
// streams may pass base64 credentials in ?auth= since EventSource cannot
// set headers.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	wantUser := []byte(username)
	wantPass := []byte(password)

	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, msg := credentials(ctx)
		if msg == "" {
			userOK := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
			if userOK && passOK {
				next(ctx)
				return
			}
			msg = "Invalid credentials"
		}

		ctx.SetHeader("WWW-Authenticate", authRealm)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
	}
}

// credentials returns a non-empty msg when no usable credentials were sent.
func credentials(ctx huma.Context) (user, pass, msg string) {
	var encoded string
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	} else {
		encoded = ctx.Query("auth")
	}
	if encoded == "" {
		return "", "", "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", "Invalid credentials format"
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", "Invalid credentials format"
	}
	return user, pass, ""
}
