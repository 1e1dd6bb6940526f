package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/auth"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// requestID takes X-Request-ID from the request or generates one, echoes it
// back and stores it in the context for the logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(common.RequestIDHeaderName))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		took := time.Since(start)
		status := rec.code()
		route := routeTemplate(r)

		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveRequest(r.Method, route, status, took)
		}

		args := []any{"method", r.Method, "path", r.URL.Path, "status", status, "duration_ms", took.Milliseconds()}
		switch {
		case status >= 500:
			s.log.Error(r.Context(), "HTTP request", args...)
		case status >= 400:
			s.log.Warn(r.Context(), "HTTP request", args...)
		default:
			s.log.Info(r.Context(), "HTTP request", args...)
		}
	})
}

func routeTemplate(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if t, err := cur.GetPathTemplate(); err == nil {
			return t
		}
	}
	return "unmatched"
}

// recoverer turns a handler panic into a 500. In development the stack is
// included in the body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			stack := string(debug.Stack())
			s.log.Error(r.Context(), "panic serving request", "panic", rv, "stack", stack)

			body := errorBody{Message: "internal server error"}
			if s.deps.Development {
				body.Detail = fmt.Sprint(rv)
				body.Stack = stack
			}
			writeJSON(w, http.StatusInternalServerError, body)
		}()
		next.ServeHTTP(w, r)
	})
}

// timeout bounds every request, including the wait for a pooled connection.
func (s *Server) timeout(next http.Handler) http.Handler {
	if s.deps.RequestTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.deps.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAuth verifies the bearer access token and stores the identity in
// the request context. Missing and invalid tokens both yield 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, common.NewError(common.ErrorUnauthenticated, "missing bearer token"))
			return
		}
		id, err := s.deps.Verifier.Verify(token)
		if err != nil {
			s.writeError(w, r, common.NewError(common.ErrorUnauthenticated, "invalid or expired token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// caller returns the authenticated user id. Only valid behind requireAuth.
func caller(r *http.Request) int64 {
	id, _ := auth.FromContext(r.Context())
	return id.UserID
}
