// Package market reads prediction-market resolution state over HTTP.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"escrowOracle/internal/model"
)

const DefaultURL = "https://gamma-api.polymarket.com"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

const defaultTimeout = 12 * time.Second

type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
}

func NewClient(host string, timeout time.Duration) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("market url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("market url must be http(s), got %q", host)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: DefaultUserAgent,
	}, nil
}

type marketResponse struct {
	Question string  `json:"question"`
	Closed   bool    `json:"closed"`
	Resolved bool    `json:"resolved"`
	Outcome  *string `json:"outcome"`
}

// Market fetches a market by id. An unknown market returns (nil, nil).
func (c *Client) Market(ctx context.Context, marketID string) (*model.Market, error) {
	if c == nil {
		return nil, fmt.Errorf("market client nil")
	}
	marketID = strings.TrimSpace(marketID)
	if marketID == "" {
		return nil, fmt.Errorf("market id required")
	}

	endpoint := c.host + "/markets/" + url.PathEscape(marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return nil, fmt.Errorf("market %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}

	var raw marketResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("market decode: %w", err)
	}

	m := &model.Market{
		ID:       marketID,
		Question: raw.Question,
		Closed:   raw.Closed,
		Resolved: raw.Resolved,
	}
	if raw.Outcome != nil {
		m.Outcome = strings.TrimSpace(*raw.Outcome)
	}
	return m, nil
}

// IsResolved reports whether the market settled with an outcome.
func IsResolved(m *model.Market) bool {
	return m != nil && m.Resolved && m.Outcome != ""
}

// OutcomeBool maps "Yes"/"No" (any case) to true/false.
func OutcomeBool(m *model.Market) (bool, error) {
	if m == nil || m.Outcome == "" {
		return false, model.ErrNotYetResolved
	}
	switch strings.ToLower(m.Outcome) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", model.ErrUnmappedOutcome, m.Outcome)
	}
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
