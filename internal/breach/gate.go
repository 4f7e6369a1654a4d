// Package breach screens candidate passwords and URLs against external threat intelligence.
package breach

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/errs"
)

// Policy decides what a check reports when the upstream service cannot answer.
type Policy string

const (
	// PolicyOpen reports the permissive result flagged Unverified and no error.
	PolicyOpen Policy = "open"
	// PolicyClosed reports the same result together with an errs.ErrExternalService error.
	PolicyClosed Policy = "closed"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 5 * time.Second

// ParsePolicy parses "open" or "closed"; empty means open.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyOpen, nil
	case PolicyOpen, PolicyClosed:
		return p, nil
	default:
		return "", fmt.Errorf("unknown breach failure policy %q", s)
	}
}

// PasswordReport is the outcome of a breach lookup.
type PasswordReport struct {
	Breached   bool
	Count      int
	Unverified bool
}

// Threat is one reputation match for a URL.
type Threat struct {
	ThreatType   string
	PlatformType string
	URL          string
}

// URLReport is the outcome of a reputation lookup.
type URLReport struct {
	Safe       bool
	Threats    []Threat
	Unverified bool
}

// Checker is what handlers need from the gate.
type Checker interface {
	CheckPassword(ctx context.Context, password string) (PasswordReport, error)
	CheckURL(ctx context.Context, rawURL string) (URLReport, error)
}

// Options configures a Gate.
type Options struct {
	HIBPBaseURL         string
	SafeBrowsingBaseURL string
	SafeBrowsingAPIKey  string
	Timeout             time.Duration
	Policy              Policy
	Cache               RangeCache // optional
	CacheTTL            time.Duration
	HTTPClient          *http.Client
}

// Gate implements Checker on top of the range and threat-match clients.
type Gate struct {
	hibp   *hibpClient
	sb     *safeBrowsingClient
	policy Policy
	log    *zap.Logger
}

var _ Checker = (*Gate)(nil)

// NewGate wires both upstream clients.
func NewGate(opts Options, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy == "" {
		opts.Policy = PolicyOpen
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Gate{
		hibp:   newHIBPClient(opts.HIBPBaseURL, httpc, opts.Timeout, opts.Cache, opts.CacheTTL, log),
		sb:     newSafeBrowsingClient(opts.SafeBrowsingBaseURL, opts.SafeBrowsingAPIKey, httpc, opts.Timeout, log),
		policy: opts.Policy,
		log:    log,
	}
}

// Policy returns the configured failure policy.
func (g *Gate) Policy() Policy { return g.policy }

// CheckPassword looks the password up by its 5-char SHA-1 prefix; the full hash never leaves the process.
func (g *Gate) CheckPassword(ctx context.Context, password string) (PasswordReport, error) {
	if password == "" {
		return PasswordReport{}, fmt.Errorf("%w: password is required", errs.ErrValidation)
	}
	n, err := g.hibp.count(ctx, password)
	if err != nil {
		rep := PasswordReport{Unverified: true}
		return rep, g.degrade("password breach lookup", err)
	}
	return PasswordReport{Breached: n > 0, Count: n}, nil
}

// CheckURL asks the threat-match service about rawURL.
func (g *Gate) CheckURL(ctx context.Context, rawURL string) (URLReport, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return URLReport{}, fmt.Errorf("%w: url is required", errs.ErrValidation)
	}
	threats, err := g.sb.find(ctx, rawURL)
	if err != nil {
		rep := URLReport{Safe: true, Unverified: true}
		return rep, g.degrade("url reputation lookup", err)
	}
	return URLReport{Safe: len(threats) == 0, Threats: threats}, nil
}

func (g *Gate) degrade(op string, cause error) error {
	if g.policy == PolicyClosed {
		g.log.Warn("breach check failed", zap.String("op", op), zap.Error(cause))
		return fmt.Errorf("%w: %s: %v", errs.ErrExternalService, op, cause)
	}
	g.log.Warn("breach check failed, continuing unverified", zap.String("op", op), zap.Error(cause))
	return nil
}
