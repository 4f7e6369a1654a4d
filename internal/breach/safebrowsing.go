package breach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	clientID      = "fortivault"
	clientVersion = "1.0.0"
	userAgent     = clientID + "/" + clientVersion
)

var threatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}

var errNoAPIKey = errors.New("safe browsing api key not configured")

type sbRequest struct {
	Client     sbClientInfo `json:"client"`
	ThreatInfo sbThreatInfo `json:"threatInfo"`
}

type sbClientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type sbThreatInfo struct {
	ThreatTypes      []string  `json:"threatTypes"`
	PlatformTypes    []string  `json:"platformTypes"`
	ThreatEntryTypes []string  `json:"threatEntryTypes"`
	ThreatEntries    []sbEntry `json:"threatEntries"`
}

type sbEntry struct {
	URL string `json:"url"`
}

type sbResponse struct {
	Matches []struct {
		ThreatType   string  `json:"threatType"`
		PlatformType string  `json:"platformType"`
		Threat       sbEntry `json:"threat"`
	} `json:"matches"`
}

type safeBrowsingClient struct {
	base    string
	key     string
	httpc   *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

func newSafeBrowsingClient(base, key string, httpc *http.Client, timeout time.Duration, log *zap.Logger) *safeBrowsingClient {
	return &safeBrowsingClient{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		httpc:   httpc,
		timeout: timeout,
		cb:      newBreaker("safebrowsing", log),
	}
}

func (c *safeBrowsingClient) find(ctx context.Context, rawURL string) ([]Threat, error) {
	if c.key == "" {
		return nil, errNoAPIKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := c.cb.Execute(func() (any, error) { return c.post(ctx, rawURL) })
	if err != nil {
		return nil, err
	}
	return v.([]Threat), nil
}

func (c *safeBrowsingClient) post(ctx context.Context, rawURL string) ([]Threat, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(sbRequest{
		Client: sbClientInfo{ClientID: clientID, ClientVersion: clientVersion},
		ThreatInfo: sbThreatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []sbEntry{{URL: rawURL}},
		},
	})
	if err != nil {
		return nil, err
	}
	endpoint := c.base + "/v4/threatMatches:find?key=" + url.QueryEscape(c.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("threat match: unexpected status %d", resp.StatusCode)
	}
	var out sbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("threat match: decode: %w", err)
	}
	threats := make([]Threat, 0, len(out.Matches))
	for _, m := range out.Matches {
		threats = append(threats, Threat{ThreatType: m.ThreatType, PlatformType: m.PlatformType, URL: m.Threat.URL})
	}
	return threats, nil
}
