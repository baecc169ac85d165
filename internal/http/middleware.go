package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/autoride/internal/auth"
	"github.com/example/autoride/internal/observability"
)

type ctxKey int

const requestInfoKey ctxKey = iota

// requestInfo rides along in the request context. Handlers deeper in the
// chain fill in what the access log line should say about the caller.
type requestInfo struct {
	id       string
	driverID string
}

func (s *Server) registerMiddleware() {
	// trace wraps recover so panics still produce a 500 log line
	s.mux.Use(s.traceRequests, s.recoverPanics)
}

// traceRequests assigns the request id, then records metrics and one access
// log line per request. Websocket requests log when the socket closes.
func (s *Server) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &requestInfo{id: r.Header.Get("X-Request-ID")}
		if info.id == "" {
			info.id = newID()
		}
		w.Header().Set("X-Request-ID", info.id)

		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))
		elapsed := time.Since(began)

		route, code := routeTemplate(r), strconv.Itoa(rec.code)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())

		attrs := []slog.Attr{
			slog.String("request_id", info.id),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.code),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.Int("bytes", rec.bytes),
			slog.String("remote_addr", clientIP(r)),
		}
		if info.driverID != "" {
			attrs = append(attrs, slog.String("driver_id", info.driverID))
		}
		level := slog.LevelInfo
		if rec.code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "http_request", attrs...)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.logger.Error("panic recovered", "panic", v, "route", routeTemplate(r),
				"request_id", requestID(r.Context()), "stack", string(debug.Stack()))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
		}()
		next.ServeHTTP(w, r)
	})
}

// requireDriver rejects requests without a valid driver bearer token and
// stores the driver id in the request context.
func (s *Server) requireDriver(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := s.Auth.FromRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		noteDriver(r.Context(), driverID)
		next(w, r.WithContext(auth.WithDriver(r.Context(), driverID)))
	}
}

// optionalDriver returns the driver named by a valid token, or "". Browsers
// cannot set headers on websocket upgrades, so ?token= is accepted too.
func (s *Server) optionalDriver(r *http.Request) string {
	id, err := s.Auth.FromRequest(r)
	if err != nil {
		tok := r.URL.Query().Get("token")
		if tok == "" {
			return ""
		}
		if id, err = s.Auth.Verify(tok); err != nil {
			return ""
		}
	}
	noteDriver(r.Context(), id)
	return id
}

func noteDriver(ctx context.Context, driverID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.driverID = driverID
	}
}

func requestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
