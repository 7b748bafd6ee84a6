package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins []string // "*" allows any origin
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "Accept", "Last-Event-ID"},
		MaxAge:       86400,
	}
}

type corsHeaders struct {
	cfg     CORSConfig
	methods string
	headers string
	maxAge  string
}

func newCORSHeaders(cfg CORSConfig) corsHeaders {
	return corsHeaders{
		cfg:     cfg,
		methods: strings.Join(cfg.AllowMethods, ", "),
		headers: strings.Join(cfg.AllowHeaders, ", "),
		maxAge:  strconv.Itoa(cfg.MaxAge),
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when origin is not allowed.
func (c corsHeaders) allowOrigin(origin string) string {
	if slices.Contains(c.cfg.AllowOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(c.cfg.AllowOrigins, origin) {
		return origin
	}
	return ""
}

func (c corsHeaders) apply(origin string, set func(key, value string)) {
	allowed := c.allowOrigin(origin)
	if allowed == "" {
		return
	}
	set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		set("Vary", "Origin")
	}
	set("Access-Control-Allow-Methods", c.methods)
	set("Access-Control-Allow-Headers", c.headers)
	set("Access-Control-Max-Age", c.maxAge)
}

// NewCORSMiddleware sets CORS headers on huma operations.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	c := newCORSHeaders(config)
	return func(ctx huma.Context, next func(huma.Context)) {
		c.apply(ctx.Header("Origin"), ctx.SetHeader)
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests, which never reach huma routing.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	c := newCORSHeaders(config)
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		c.apply(r.Header.Get("Origin"), w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
