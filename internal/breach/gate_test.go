package breach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fortivault/fortivault/internal/errs"
)

// SHA-1("password") = 5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8
const passwordRange = "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n" +
	"1E4C9B93F3F0682250B6CF8331B7EE68FD8:9545824\r\n" +
	"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF:0\r\n"

type rangeServer struct {
	*httptest.Server
	hits    atomic.Int32
	fail    atomic.Bool
	stall   atomic.Bool
	mu      sync.Mutex
	lastReq *http.Request
}

func newRangeServer(t *testing.T) *rangeServer {
	t.Helper()
	rs := &rangeServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		rs.mu.Lock()
		rs.lastReq = r.Clone(context.Background())
		rs.mu.Unlock()
		if rs.stall.Load() {
			<-r.Context().Done()
			return
		}
		if rs.fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		prefix := strings.TrimPrefix(r.URL.Path, "/range/")
		if prefix == "5BAA6" {
			_, _ = io.WriteString(w, passwordRange)
			return
		}
		// padding-only answer for everything else
		_, _ = io.WriteString(w, "0000000000000000000000000000000000A:0\r\n")
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rangeServer) last() *http.Request {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastReq
}

func newTestGate(t *testing.T, opts Options) *Gate {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	return NewGate(opts, zaptest.NewLogger(t))
}

func TestCheckPassword_Breached(t *testing.T) {
	rs := newRangeServer(t)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL})

	rep, err := g.CheckPassword(context.Background(), "password")
	require.NoError(t, err)
	assert.True(t, rep.Breached)
	assert.Equal(t, 9545824, rep.Count)
	assert.False(t, rep.Unverified)

	req := rs.last()
	require.NotNil(t, req)
	assert.Equal(t, "/range/5BAA6", req.URL.Path)
	assert.Equal(t, "true", req.Header.Get("Add-Padding"))
	assert.NotContains(t, req.URL.String(), "1E4C9B93F3F0682250B6CF8331B7EE68FD8")
}

func TestCheckPassword_NotBreached(t *testing.T) {
	rs := newRangeServer(t)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL})

	rep, err := g.CheckPassword(context.Background(), "q7#Lm2!vR9zX4pW8&kT1nB6yH3sD0fG5")
	require.NoError(t, err)
	assert.False(t, rep.Breached)
	assert.Zero(t, rep.Count)
	assert.False(t, rep.Unverified)
	assert.Len(t, strings.TrimPrefix(rs.last().URL.Path, "/range/"), prefixLen)
}

func TestCheckPassword_Empty(t *testing.T) {
	g := newTestGate(t, Options{HIBPBaseURL: "http://127.0.0.1:1"})
	_, err := g.CheckPassword(context.Background(), "")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestCheckPassword_UpstreamDown_Open(t *testing.T) {
	rs := newRangeServer(t)
	rs.fail.Store(true)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL, Policy: PolicyOpen})

	rep, err := g.CheckPassword(context.Background(), "password")
	require.NoError(t, err)
	assert.Equal(t, PasswordReport{Unverified: true}, rep)
}

func TestCheckPassword_UpstreamDown_Closed(t *testing.T) {
	rs := newRangeServer(t)
	rs.fail.Store(true)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL, Policy: PolicyClosed})

	rep, err := g.CheckPassword(context.Background(), "password")
	require.ErrorIs(t, err, errs.ErrExternalService)
	assert.True(t, rep.Unverified)
	assert.False(t, rep.Breached)
}

func TestCheckPassword_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	g := newTestGate(t, Options{HIBPBaseURL: slow.URL, Timeout: 50 * time.Millisecond, Policy: PolicyClosed})

	start := time.Now()
	_, err := g.CheckPassword(context.Background(), "password")
	require.ErrorIs(t, err, errs.ErrExternalService)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheckPassword_BreakerOpensAfterFailures(t *testing.T) {
	rs := newRangeServer(t)
	rs.fail.Store(true)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL})

	for i := 0; i < 8; i++ {
		rep, err := g.CheckPassword(context.Background(), "password")
		require.NoError(t, err)
		require.True(t, rep.Unverified)
	}
	assert.EqualValues(t, 5, rs.hits.Load(), "open breaker must stop calling upstream")
}

func TestCheckPassword_CancelledCallersKeepBreakerClosed(t *testing.T) {
	rs := newRangeServer(t)
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		rep, err := g.CheckPassword(cancelled, "password")
		require.NoError(t, err)
		require.True(t, rep.Unverified)
	}
	assert.Zero(t, rs.hits.Load(), "an already cancelled request must not reach upstream")

	rs.stall.Store(true)
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		rep, err := g.CheckPassword(ctx, "password")
		require.NoError(t, err)
		require.True(t, rep.Unverified)
	}
	rs.stall.Store(false)

	before := rs.hits.Load()
	rep, err := g.CheckPassword(context.Background(), "password")
	require.NoError(t, err)
	assert.Equal(t, PasswordReport{Breached: true, Count: 9545824}, rep)
	assert.Equal(t, before+1, rs.hits.Load())
}

func TestCheckURL_CancelledCallersKeepBreakerClosed(t *testing.T) {
	srv, hits := newThreatServer(t, "k3y")
	g := newTestGate(t, Options{SafeBrowsingBaseURL: srv.URL, SafeBrowsingAPIKey: "k3y"})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		rep, err := g.CheckURL(cancelled, "http://malware.test/login")
		require.NoError(t, err)
		require.True(t, rep.Unverified)
	}
	assert.Zero(t, hits.Load())

	rep, err := g.CheckURL(context.Background(), "http://malware.test/login")
	require.NoError(t, err)
	assert.False(t, rep.Safe)
	assert.False(t, rep.Unverified)
	assert.EqualValues(t, 1, hits.Load())
}

type memCache struct {
	mu     sync.Mutex
	m      map[string]string
	getErr error
	setErr error
}

func (c *memCache) Get(_ context.Context, prefix string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.m[prefix]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, prefix, body string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if c.m == nil {
		c.m = map[string]string{}
	}
	c.m[prefix] = body
	return nil
}

func TestCheckPassword_CacheHitSkipsUpstream(t *testing.T) {
	rs := newRangeServer(t)
	cache := &memCache{}
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL, Cache: cache, CacheTTL: time.Hour})

	for i := 0; i < 3; i++ {
		rep, err := g.CheckPassword(context.Background(), "password")
		require.NoError(t, err)
		require.True(t, rep.Breached)
	}
	assert.EqualValues(t, 1, rs.hits.Load())
}

func TestCheckPassword_CacheErrorsIgnored(t *testing.T) {
	rs := newRangeServer(t)
	boom := errors.New("cache down")
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL, Cache: &memCache{getErr: boom, setErr: boom}})

	rep, err := g.CheckPassword(context.Background(), "password")
	require.NoError(t, err)
	assert.True(t, rep.Breached)
}

func TestCheckPassword_UnreachableRedisIgnored(t *testing.T) {
	rs := newRangeServer(t)
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })
	g := newTestGate(t, Options{HIBPBaseURL: rs.URL, Cache: NewRedisRangeCache(rc), CacheTTL: time.Hour})

	rep, err := g.CheckPassword(context.Background(), "password")
	require.NoError(t, err)
	assert.True(t, rep.Breached)
}

func TestMatchSuffix(t *testing.T) {
	n, err := matchSuffix(passwordRange, "1e4c9b93f3f0682250b6cf8331b7ee68fd8")
	require.NoError(t, err)
	assert.Equal(t, 9545824, n)

	n, err = matchSuffix(passwordRange, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	require.NoError(t, err)
	assert.Zero(t, n, "padding rows must not count")

	_, err = matchSuffix("ABC:notanumber\n", "ABC")
	require.Error(t, err)
}

func TestHashParts(t *testing.T) {
	p, s := hashParts("password")
	assert.Equal(t, "5BAA6", p)
	assert.Equal(t, "1E4C9B93F3F0682250B6CF8331B7EE68FD8", s)
}

func newThreatServer(t *testing.T, key string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/v4/threatMatches:find" || r.URL.Query().Get("key") != key {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var req sbRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Client.ClientID != clientID || len(req.ThreatInfo.ThreatTypes) != 4 || len(req.ThreatInfo.ThreatEntries) != 1 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		u := req.ThreatInfo.ThreatEntries[0].URL
		if strings.Contains(u, "malware.test") {
			_, _ = fmt.Fprintf(w, `{"matches":[{"threatType":"MALWARE","platformType":"ANY_PLATFORM","threat":{"url":%q},"threatEntryType":"URL"}]}`, u)
			return
		}
		_, _ = io.WriteString(w, "{}")
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCheckURL(t *testing.T) {
	srv, _ := newThreatServer(t, "k3y")
	g := newTestGate(t, Options{SafeBrowsingBaseURL: srv.URL, SafeBrowsingAPIKey: "k3y"})

	rep, err := g.CheckURL(context.Background(), "http://malware.test/login")
	require.NoError(t, err)
	assert.False(t, rep.Safe)
	require.Len(t, rep.Threats, 1)
	assert.Equal(t, "MALWARE", rep.Threats[0].ThreatType)
	assert.Equal(t, "http://malware.test/login", rep.Threats[0].URL)

	rep, err = g.CheckURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.True(t, rep.Safe)
	assert.Empty(t, rep.Threats)
	assert.False(t, rep.Unverified)
}

func TestCheckURL_Failures(t *testing.T) {
	srv, hits := newThreatServer(t, "k3y")

	t.Run("rejected key open", func(t *testing.T) {
		g := newTestGate(t, Options{SafeBrowsingBaseURL: srv.URL, SafeBrowsingAPIKey: "wrong"})
		rep, err := g.CheckURL(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, URLReport{Safe: true, Unverified: true}, rep)
	})

	t.Run("missing key closed", func(t *testing.T) {
		before := hits.Load()
		g := newTestGate(t, Options{SafeBrowsingBaseURL: srv.URL, Policy: PolicyClosed})
		rep, err := g.CheckURL(context.Background(), "https://example.com")
		require.ErrorIs(t, err, errs.ErrExternalService)
		assert.True(t, rep.Unverified)
		assert.Equal(t, before, hits.Load())
	})

	t.Run("blank url", func(t *testing.T) {
		g := newTestGate(t, Options{SafeBrowsingBaseURL: srv.URL, SafeBrowsingAPIKey: "k3y"})
		_, err := g.CheckURL(context.Background(), "  ")
		require.ErrorIs(t, err, errs.ErrValidation)
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOpen, p)

	p, err = ParsePolicy(" Closed ")
	require.NoError(t, err)
	assert.Equal(t, PolicyClosed, p)

	_, err = ParsePolicy("maybe")
	require.Error(t, err)
}
