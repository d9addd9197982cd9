package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/logging"
	"github.com/dmitrijs2005/textshr/internal/server/services"
)

type ctxKey int

const callerKey ctxKey = 0

// callerID returns the session ID the request is acting as.
func callerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey).(string)
	return id, ok
}

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first listed runs outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns handler panics into 500s instead of dropped connections.
func Recover(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(r.Context(), "handler panic", "path", r.URL.Path, "panic", rec)
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLog logs one line per request.
func RequestLog(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// Session resolves the session cookie into a caller ID, minting a fresh
// session (and setting its cookie) when the request carries none or an
// expired one. Requests proceed anonymously only if the session store is
// down, in which case handlers needing a caller reject them.
func Session(sessions *services.SessionService, logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// health probes should not mint sessions
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			var token string
			if c, err := r.Cookie(common.SessionCookieName); err == nil {
				token = c.Value
			}

			id, newToken, err := sessions.ResolveOrStart(r.Context(), token)
			if err != nil {
				logger.Error(r.Context(), "session resolution failed", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			if newToken != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     common.SessionCookieName,
					Value:    newToken,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), callerKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
