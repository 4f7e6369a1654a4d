package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/limiter"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// fakeStore backs both repositories so user deletion can cascade.
type fakeStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
	creds map[uuid.UUID][]model.CredentialRecord

	getErr    error
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]*model.User{}, creds: map[uuid.UUID][]model.CredentialRecord{}}
}

type fakeUsers struct{ *fakeStore }
type fakeCreds struct{ *fakeStore }

var (
	_ repository.UserRepository       = fakeUsers{}
	_ repository.CredentialRepository = fakeCreds{}
)

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.users {
		if x.Email == u.Email {
			return errs.ErrDuplicateEmail
		}
	}
	cpy := *u
	f.users[u.ID] = &cpy
	f.creds[u.ID] = nil
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f fakeUsers) SetRole(_ context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u.Role = role
	c := *u
	return &c, nil
}

func (f fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.users, id)
	delete(f.creds, id)
	return nil
}

func (f fakeUsers) ListSummaries(context.Context) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.UserSummary, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, model.UserSummary{
			ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt,
			PasswordCount: len(f.creds[u.ID]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f fakeUsers) Stats(context.Context) (model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := model.Stats{TotalUsers: len(f.users)}
	for _, c := range f.creds {
		st.TotalPasswords += len(c)
	}
	return st, nil
}

func (f fakeCreds) Insert(_ context.Context, rec *model.CredentialRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.users[rec.OwnerID]; !ok {
		return errs.ErrNotFound
	}
	f.creds[rec.OwnerID] = append(f.creds[rec.OwnerID], *rec)
	return nil
}

func (f fakeCreds) ListByOwner(_ context.Context, owner uuid.UUID) ([]model.CredentialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[owner]; !ok {
		return nil, errs.ErrNotFound
	}
	return slices.Clone(f.creds[owner]), nil
}

func (f fakeCreds) Delete(_ context.Context, owner, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[owner] = slices.DeleteFunc(f.creds[owner], func(r model.CredentialRecord) bool { return r.ID == id })
	return nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}
