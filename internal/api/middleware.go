package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// quietPaths are polled by dashboards and scrapers and only logged at debug.
var quietPaths = map[string]bool{
	"/health":       true,
	"/metrics":      true,
	"/api/v1/obs":   true,
	"/api/v1/state": true,
}

// requestLogger logs one line per request. Server errors log at warn, polled
// read-only paths at debug. The /events stream is logged when it ends.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			level = slog.LevelWarn
		case r.Method == http.MethodGet && quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if route := routePattern(r); route != "" && route != r.URL.Path {
			attrs = append(attrs, "route", route)
		}
		if board := chi.URLParam(r, "board"); board != "" {
			attrs = append(attrs, "board", board)
		}
		slog.Log(r.Context(), level, "http request", attrs...)
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return strings.TrimSuffix(rctx.RoutePattern(), "/")
}
