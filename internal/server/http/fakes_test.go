package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fortivault/fortivault/internal/breach"
	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/service"
	"github.com/fortivault/fortivault/internal/session"
)

var testSecret = []byte("http-test-secret-http-test-secret")

type fakeAuth struct {
	sessions *session.Manager

	mu         sync.Mutex
	users      map[uuid.UUID]model.User
	lastCaller *model.Identity
	lastIP     string
	registered int
	loginErr   error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		sessions: session.NewManager(testSecret, session.DefaultTTL),
		users:    map[uuid.UUID]model.User{},
	}
}

func (f *fakeAuth) add(name string, role model.Role) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeAuth) token(t *testing.T, u model.User) string {
	t.Helper()
	s, err := f.sessions.Issue(u.ID, u.Role)
	require.NoError(t, err)
	return s.Token
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput, caller *model.Identity) (service.AuthResult, error) {
	f.mu.Lock()
	f.lastCaller = caller
	f.registered++
	f.mu.Unlock()

	role := model.RoleUser
	if in.Role != nil {
		if *in.Role != model.RoleUser && (caller == nil || !caller.IsAdmin()) {
			return service.AuthResult{}, errs.ErrForbidden
		}
		role = *in.Role
	}
	u := f.add(in.Name, role)
	sess, err := f.sessions.Issue(u.ID, u.Role)
	if err != nil {
		return service.AuthResult{}, err
	}
	return service.AuthResult{User: u, Session: sess}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, _ string, ip string) (service.AuthResult, error) {
	f.mu.Lock()
	f.lastIP = ip
	err := f.loginErr
	var found *model.User
	for _, u := range f.users {
		if u.Email == email {
			found = &u
			break
		}
	}
	f.mu.Unlock()
	if err != nil {
		return service.AuthResult{}, err
	}
	if found == nil {
		return service.AuthResult{}, errs.ErrInvalidCredentials
	}
	sess, err := f.sessions.Issue(found.ID, found.Role)
	if err != nil {
		return service.AuthResult{}, err
	}
	return service.AuthResult{User: *found, Session: sess}, nil
}

func (f *fakeAuth) Verify(token string) (model.Identity, error) {
	return f.sessions.Verify(token)
}

func (f *fakeAuth) CurrentUser(_ context.Context, id model.Identity) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id.UserID]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

type fakeVault struct {
	mu   sync.Mutex
	recs map[uuid.UUID][]model.Credential
	adds int
	err  error
}

func newFakeVault() *fakeVault { return &fakeVault{recs: map[uuid.UUID][]model.Credential{}} }

func (f *fakeVault) Add(_ context.Context, owner uuid.UUID, in service.AddInput) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.err != nil {
		return model.Credential{}, f.err
	}
	c := model.Credential{
		ID:         uuid.Must(uuid.NewV4()),
		Website:    in.Website,
		WebsiteURL: in.WebsiteURL,
		Username:   in.Username,
		Password:   in.Password,
		CreatedAt:  time.Now().UTC(),
	}
	f.recs[owner] = append(f.recs[owner], c)
	return c, nil
}

func (f *fakeVault) List(_ context.Context, owner uuid.UUID) ([]model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Credential(nil), f.recs[owner]...), nil
}

func (f *fakeVault) Delete(ctx context.Context, owner, id uuid.UUID) ([]model.Credential, error) {
	f.mu.Lock()
	kept := f.recs[owner][:0:0]
	for _, c := range f.recs[owner] {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.recs[owner] = kept
	f.mu.Unlock()
	return f.List(ctx, owner)
}

type fakeAdmin struct {
	auth *fakeAuth
}

func (f *fakeAdmin) ListUsers(context.Context) ([]model.UserSummary, error) {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	out := make([]model.UserSummary, 0, len(f.auth.users))
	for _, u := range f.auth.users {
		out = append(out, model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	return out, nil
}

func (f *fakeAdmin) Stats(context.Context) (model.Stats, error) {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	return model.Stats{TotalUsers: len(f.auth.users)}, nil
}

func (f *fakeAdmin) Promote(_ context.Context, id uuid.UUID) (model.User, error) {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	u, ok := f.auth.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	u.Role = model.RoleAdmin
	f.auth.users[id] = u
	return u, nil
}

func (f *fakeAdmin) PromoteByEmail(context.Context, string) (model.User, error) {
	return model.User{}, errs.ErrNotFound
}

func (f *fakeAdmin) DeleteUser(_ context.Context, id uuid.UUID) error {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	if _, ok := f.auth.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.auth.users, id)
	return nil
}

type fakeGate struct {
	pw     breach.PasswordReport
	url    breach.URLReport
	pwErr  error
	urlErr error
	urls   []string
}

func (g *fakeGate) CheckPassword(_ context.Context, password string) (breach.PasswordReport, error) {
	if password == "" {
		return breach.PasswordReport{}, errs.ErrValidation
	}
	return g.pw, g.pwErr
}

func (g *fakeGate) CheckURL(_ context.Context, rawURL string) (breach.URLReport, error) {
	g.urls = append(g.urls, rawURL)
	return g.url, g.urlErr
}

type harness struct {
	auth  *fakeAuth
	vault *fakeVault
	gate  *fakeGate
	h     http.Handler
}

func newHarness(t *testing.T, secure bool) *harness {
	t.Helper()
	return buildHarness(t, Options{SecureCookies: secure})
}

// buildHarness fills the service fields of opts with fakes.
func buildHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	a := newFakeAuth()
	v := newFakeVault()
	g := &fakeGate{url: breach.URLReport{Safe: true}}
	opts.Auth, opts.Vault, opts.Admin, opts.Gate = a, v, &fakeAdmin{auth: a}, g
	srv := New(opts, zaptest.NewLogger(t))
	return &harness{auth: a, vault: v, gate: g, h: srv.Router()}
}

// do sends body (if any) with an optional bearer token and returns the recorded response.
func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.7:51234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)
	return rec
}
