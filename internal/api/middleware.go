package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lithammer/shortuuid/v4"
	"github.com/smazurov/captioner/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// HTTPLoggingMiddleware tags each request with an ID and logs it once
// finished, at a level chosen by status code.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	reqID := ctx.Header(requestIDHeader)
	if reqID == "" {
		reqID = shortuuid.New()
	}
	ctx.SetHeader(requestIDHeader, reqID)

	method := ctx.Method()
	attrs := []slog.Attr{
		slog.String("request_id", reqID),
		slog.String("method", method),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case method == "OPTIONS":
		level = slog.LevelDebug
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
