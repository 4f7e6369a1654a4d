package httpserver

import (
	"net"
	"net/http"
	"time"

	"github.com/fortivault/fortivault/internal/access"
	"github.com/fortivault/fortivault/internal/convert"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/service"
)

type registerRequest struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	MasterPassword string      `json:"masterPassword"`
	Role           *model.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Email          string `json:"email"`
	MasterPassword string `json:"masterPassword"`
}

// SessionResponse answers register and login. The token is also set as a cookie.
type SessionResponse struct {
	User      convert.UserView `json:"user"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type userResponse struct {
	User convert.UserView `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var caller *model.Identity
	if id, ok := access.FromContext(r.Context()); ok {
		caller = &id
	}

	res, err := s.auth.Register(r.Context(), service.RegisterInput{
		Name:           req.Name,
		Email:          req.Email,
		MasterPassword: req.MasterPassword,
		Role:           req.Role,
	}, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, res)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Email, req.MasterPassword, clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, res)
}

func (s *Server) writeSession(w http.ResponseWriter, status int, res service.AuthResult) {
	s.setSessionCookie(w, res.Session)
	writeJSON(w, status, SessionResponse{
		User:      convert.ToUserView(res.User),
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
	})
}

// logout drops the client copy of the token. The token itself stays valid until it expires.
func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.auth.CurrentUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: convert.ToUserView(u)})
}

// clientIP is the socket peer, or the forwarded address when
// TrustProxyHeaders lets middleware.RealIP rewrite RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
