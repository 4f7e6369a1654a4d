package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	prefixLen    = 5
	maxRangeBody = 1 << 20
)

type hibpClient struct {
	base     string
	httpc    *http.Client
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
	cache    RangeCache
	cacheTTL time.Duration
	log      *zap.Logger
}

func newHIBPClient(base string, httpc *http.Client, timeout time.Duration, cache RangeCache, ttl time.Duration, log *zap.Logger) *hibpClient {
	return &hibpClient{
		base:     strings.TrimRight(base, "/"),
		httpc:    httpc,
		timeout:  timeout,
		cb:       newBreaker("hibp", log),
		cache:    cache,
		cacheTTL: ttl,
		log:      log,
	}
}

// hashParts returns the uppercase SHA-1 of password split into range prefix and suffix.
func hashParts(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:prefixLen], h[prefixLen:]
}

func (c *hibpClient) count(ctx context.Context, password string) (int, error) {
	prefix, suffix := hashParts(password)
	body, err := c.rangeBody(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return matchSuffix(body, suffix)
}

func (c *hibpClient) rangeBody(ctx context.Context, prefix string) (string, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, prefix)
		if err != nil {
			c.log.Debug("range cache get failed", zap.Error(err))
		} else if ok {
			return body, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := c.cb.Execute(func() (any, error) { return c.fetch(ctx, prefix) })
	if err != nil {
		return "", err
	}
	body := v.(string)

	if c.cache != nil {
		if err := c.cache.Set(ctx, prefix, body, c.cacheTTL); err != nil {
			c.log.Debug("range cache set failed", zap.Error(err))
		}
	}
	return body, nil
}

func (c *hibpClient) fetch(ctx context.Context, prefix string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/range/"+prefix, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("range lookup: unexpected status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxRangeBody))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// matchSuffix scans SUFFIX:COUNT lines; padding rows carry count 0 and never match.
func matchSuffix(body, suffix string) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		suf, cnt, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(suf, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(cnt))
		if err != nil {
			return 0, fmt.Errorf("range lookup: bad count %q", cnt)
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, sc.Err()
}
