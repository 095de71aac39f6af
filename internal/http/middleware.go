package http

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cefalo/quick-meet/internal/application"
)

const (
	// HeaderUserEmail carries the caller identity set by the auth proxy.
	HeaderUserEmail = "X-User-Email"
	// HeaderUserDomain carries the caller's organisation domain. When absent
	// the domain part of the e-mail address is used.
	HeaderUserDomain = "X-User-Domain"
	// HeaderRequestID echoes the identifier attached to request logs.
	HeaderRequestID = "X-Request-ID"
)

// RequireIdentity rejects requests that arrive without a usable identity
// and stores the resulting principal on the request context.
func RequireIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := principalFromHeaders(r)
			if err != nil {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromHeaders(r *http.Request) (application.Principal, error) {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserEmail)))
	if email == "" {
		return application.Principal{}, errMissingIdentity
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return application.Principal{}, errInvalidIdentity
	}

	domain := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserDomain)))
	if domain == "" {
		at := strings.LastIndex(email, "@")
		domain = email[at+1:]
	}
	if domain == "" {
		return application.Principal{}, errInvalidIdentity
	}
	return application.Principal{Email: email, Domain: domain}, nil
}

// RequestLogger attaches a logger carrying a request id, method and path to
// every request and logs its completion with status and duration.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set(HeaderRequestID, id)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
