package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/fortivault/fortivault/internal/model"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "token"

func (s *Server) setSessionCookie(w http.ResponseWriter, sess model.Session) {
	maxAge := int(sess.ExpiresAt.Sub(sess.IssuedAt) / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// tokenFromRequest prefers the session cookie and falls back to "Authorization: Bearer <jwt>".
func tokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}
