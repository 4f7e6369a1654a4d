// Package session issues and verifies stateless HS256 session tokens.
//
// Tokens carry the user id (sub) and role and stay valid until their natural expiry:
// there is no server-side revocation, so logging out only drops the client copy.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
)

// DefaultTTL is the validity window of every session token.
const DefaultTTL = 24 * time.Hour

// Claims are the session token claims: registered claims plus the role.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a process-wide secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager constructs a Manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(secret []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the validity window of issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for userID with the given role.
func (m *Manager) Issue(userID uuid.UUID, role model.Role) (model.Session, error) {
	if userID == uuid.Nil || !role.Valid() {
		return model.Session{}, fmt.Errorf("%w: cannot issue session for %q/%q", errs.ErrValidation, userID, role)
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Session{}, err
	}
	now := m.now().Truncate(time.Second)
	exp := now.Add(m.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{Token: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks signature and expiry and returns the identity carried by the token.
// It fails with errs.ErrExpired past expiry and errs.ErrInvalidToken otherwise.
func (m *Manager) Verify(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, errs.ErrInvalidToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, errs.ErrExpired
		}
		return model.Identity{}, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return model.Identity{}, fmt.Errorf("%w: missing role", errs.ErrInvalidToken)
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return model.Identity{}, fmt.Errorf("%w: bad subject", errs.ErrInvalidToken)
	}
	return model.Identity{UserID: id, Role: claims.Role}, nil
}
