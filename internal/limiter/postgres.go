package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with a fixed window opened by the first failure, and lockout.
type PG struct {
	pool pgxQuerier
	s    Settings
	now  func() time.Time
}

var _ Limiter = (*PG)(nil)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter on any pool exposing Exec and QueryRow.
func NewPG(q pgxQuerier, s Settings) *PG {
	return &PG{pool: q, s: s.withDefaults(), now: time.Now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM login_limiter WHERE email=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, email, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (email, ip).
func (l *PG) Success(ctx context.Context, email string, ipHash []byte) error {
	const q = `
INSERT INTO login_limiter (email, ip_hash, fail_count, window_start, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch','epoch',now())
ON CONFLICT (email, ip_hash)
DO UPDATE SET fail_count=0, window_start='epoch', blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, email, ipHash)
	return err
}

// Failure counts failures within Window of the first one and blocks once MaxFails is reached.
// A failure after the window has elapsed opens a new window with a count of 1.
func (l *PG) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO login_limiter (email, ip_hash, fail_count, window_start, blocked_until, updated_at)
VALUES ($1,$2,1,$3,'epoch',$3)
ON CONFLICT (email, ip_hash) DO UPDATE
SET
  fail_count   = CASE WHEN login_limiter.window_start > $4 THEN login_limiter.fail_count + 1 ELSE 1 END,
  window_start = CASE WHEN login_limiter.window_start > $4 THEN login_limiter.window_start ELSE $3 END,
  updated_at   = $3
RETURNING fail_count`
	now := l.now().UTC()
	var fails int
	if err := l.pool.QueryRow(ctx, q, email, ipHash, now, now.Add(-l.s.Window)).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.s.MaxFails {
		return false, 0, nil
	}
	const upd = `UPDATE login_limiter SET blocked_until=$3 WHERE email=$1 AND ip_hash=$2`
	if _, err := l.pool.Exec(ctx, upd, email, ipHash, now.Add(l.s.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.s.BlockFor, nil
}
