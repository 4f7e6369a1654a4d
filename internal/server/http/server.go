// Package httpserver exposes the vault over HTTP with chi.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/breach"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/service"
)

// RequestTimeout bounds a single request, breach lookups included.
const RequestTimeout = 30 * time.Second

// HealthFunc reports whether the backing store answers.
type HealthFunc func(ctx context.Context) error

// Server wires services into HTTP handlers.
type Server struct {
	auth   service.AuthService
	vault  service.VaultService
	admin  service.AdminService
	gate   breach.Checker
	log    *zap.Logger
	secure bool
	proxy  bool
	health HealthFunc
}

// Options configures a Server.
type Options struct {
	Auth  service.AuthService
	Vault service.VaultService
	Admin service.AdminService
	Gate  breach.Checker
	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For or X-Real-IP.
	// Leave it off unless a reverse proxy sets those headers.
	TrustProxyHeaders bool
	Health            HealthFunc // optional
}

// New constructs a Server.
func New(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:   opts.Auth,
		vault:  opts.Vault,
		admin:  opts.Admin,
		gate:   opts.Gate,
		log:    log,
		secure: opts.SecureCookies,
		proxy:  opts.TrustProxyHeaders,
		health: opts.Health,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.proxy {
		r.Use(middleware.RealIP)
	}
	r.Use(
		s.recoverer,
		s.logRequests,
		middleware.Timeout(RequestTimeout),
	)

	r.Get("/healthz", s.healthz)

	r.Route("/auth", func(r chi.Router) {
		r.With(s.optionalAuth).Post("/register", s.register)
		r.Post("/login", s.login)
		r.With(s.authenticate).Post("/logout", s.logout)
		r.With(s.authenticate).Get("/verify", s.verify)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate, requireRole(s, model.RoleAdmin))
			r.Get("/users", s.listUsers)
			r.Get("/stats", s.stats)
			r.Put("/users/{id}/promote", s.promote)
			r.Delete("/users/{id}", s.deleteUser)
		})
	})

	r.Route("/passwords", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/add", s.addPassword)
		r.Get("/getpasswords", s.getPasswords)
		r.Delete("/delete/{id}", s.deletePassword)
	})

	r.Route("/safe", func(r chi.Router) {
		r.Post("/check", s.checkURL)
		r.Post("/checkpassword", s.checkPassword)
	})

	return r
}

// NewHTTPServer wraps h with the listener timeouts used in production.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
