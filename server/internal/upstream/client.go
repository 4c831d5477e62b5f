package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ownerwatch/ownerwatch/server/internal/config"
	"github.com/ownerwatch/ownerwatch/server/internal/metrics"
)

// Headers sent to the provider. They are matched byte for byte upstream.
const (
	JSONAccept    = "application/json"
	JSONUserAgent = "Mozilla/5.0"

	HTMLAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	HTMLUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 16 << 20

// Request kinds, used as the metrics "kind" label.
const (
	KindJSON = "json"
	KindHTML = "html"
)

// ErrInvalidBody is returned by FetchJSON when the body is not valid JSON.
var ErrInvalidBody = errors.New("upstream: body is not valid JSON")

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d from %s", e.StatusCode, e.URL)
}

// headerRoundTripper sets a fixed header set on every outgoing request.
type headerRoundTripper struct {
	base   http.RoundTripper
	header http.Header
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	return t.base.RoundTrip(req)
}

// Client fetches JSON and HTML from the provider.
type Client struct {
	baseURL string
	json    *http.Client
	html    *http.Client
	metrics *metrics.Metrics
	now     func() time.Time // injectable for deterministic tests
}

// New builds a Client for cfg. Both request shapes share one transport.
func New(cfg config.UpstreamConfig, m *metrics.Metrics) *Client {
	return newClient(cfg, http.DefaultTransport, m)
}

func newClient(cfg config.UpstreamConfig, base http.RoundTripper, m *metrics.Metrics) *Client {
	jsonHeader := http.Header{}
	jsonHeader.Set("Accept", JSONAccept)
	jsonHeader.Set("User-Agent", JSONUserAgent)

	htmlHeader := http.Header{}
	htmlHeader.Set("Accept", HTMLAccept)
	htmlHeader.Set("User-Agent", HTMLUserAgent)

	return &Client{
		baseURL: cfg.BaseURL,
		json: &http.Client{
			Transport: &headerRoundTripper{base: base, header: jsonHeader},
			Timeout:   cfg.Timeout,
		},
		html: &http.Client{
			Transport: &headerRoundTripper{base: base, header: htmlHeader},
			Timeout:   cfg.Timeout,
		},
		metrics: m,
		now:     time.Now,
	}
}

// FetchJSON GETs url from the JSON API and returns the raw body.
// The body is checked to be valid JSON but otherwise passed through untouched.
func (c *Client) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	body, err := c.get(ctx, c.json, url)
	if err == nil && !json.Valid(body) {
		err = fmt.Errorf("%w: %s", ErrInvalidBody, url)
	}
	c.observe(KindJSON, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchHTML GETs url with a browser user agent and returns the raw body.
func (c *Client) FetchHTML(ctx context.Context, url string) ([]byte, error) {
	body, err := c.get(ctx, c.html, url)
	c.observe(KindHTML, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream: read body: %w", err)
	}
	return body, nil
}

func (c *Client) observe(kind string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	c.metrics.UpstreamRequest(kind, outcome)
}
