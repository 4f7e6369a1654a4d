package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/access"
	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
)

// logRequests logs one line per request. Bodies, cookies and headers are never logged.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// recoverer turns a handler panic into a 500 and logs the stack.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error("panic",
				zap.Any("reason", rec),
				zap.ByteString("stack", debug.Stack()),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Kind: "Internal", Error: "internal error"})
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate rejects requests without a valid session.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := tokenFromRequest(r)
		if !ok {
			s.writeError(w, r, errs.ErrUnauthorized)
			return
		}
		id, err := s.auth.Verify(tok)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

// optionalAuth attaches the identity when a valid session is present and
// otherwise lets the request through anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := tokenFromRequest(r); ok {
			if id, err := s.auth.Verify(tok); err == nil {
				r = r.WithContext(access.WithIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requireRole(s *Server, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.Require(r.Context(), roles...); err != nil {
				s.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identity returns the identity attached by authenticate.
func identity(r *http.Request) (model.Identity, error) {
	id, ok := access.FromContext(r.Context())
	if !ok {
		return model.Identity{}, errs.ErrUnauthorized
	}
	return id, nil
}
