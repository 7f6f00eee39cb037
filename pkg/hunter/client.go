// Package hunter provides a client for the Hunter.io domain search and
// email verification APIs.
package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.hunter.io/v2"

// ErrNoEmail is returned by Find when Hunter has no address for the domain.
var ErrNoEmail = eris.New("hunter: no email found for domain")

// Client defines the Hunter.io operations used by the pipeline.
type Client interface {
	// Find returns the highest-confidence generic or personal address for a
	// domain, or ErrNoEmail.
	Find(ctx context.Context, domain string) (*FindResult, error)
	// Verify checks deliverability of a single address.
	Verify(ctx context.Context, email string) (*VerifyResult, error)
}

// FindResult is the best address from a domain search.
type FindResult struct {
	Email      string
	Confidence float64
}

// VerifyResult is the outcome of an email verification.
type VerifyResult struct {
	// Status is Hunter's verdict: deliverable, undeliverable, risky, unknown.
	Status string
	Score  float64
}

// Deliverable reports whether the address is safe to send to.
func (r *VerifyResult) Deliverable() bool {
	return r.Status == "deliverable"
}

// Option configures the Hunter client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (15 req/s, Hunter's
// documented limit).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Hunter.io client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(15, 15),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type domainSearchResponse struct {
	Data struct {
		Emails []struct {
			Value      string  `json:"value"`
			Type       string  `json:"type"`
			Confidence float64 `json:"confidence"`
		} `json:"emails"`
	} `json:"data"`
}

func (c *httpClient) Find(ctx context.Context, domain string) (*FindResult, error) {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("limit", "10")

	var resp domainSearchResponse
	if err := c.get(ctx, "hunter.domain_search", "/domain-search", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Emails) == 0 {
		return nil, ErrNoEmail
	}

	best := resp.Data.Emails[0]
	for _, e := range resp.Data.Emails[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	return &FindResult{
		Email:      best.Value,
		Confidence: best.Confidence / 100,
	}, nil
}

type verifyResponse struct {
	Data struct {
		Status string  `json:"status"`
		Score  float64 `json:"score"`
	} `json:"data"`
}

func (c *httpClient) Verify(ctx context.Context, email string) (*VerifyResult, error) {
	q := url.Values{}
	q.Set("email", email)

	var resp verifyResponse
	if err := c.get(ctx, "hunter.verify", "/email-verifier", q, &resp); err != nil {
		return nil, err
	}
	return &VerifyResult{
		Status: resp.Data.Status,
		Score:  resp.Data.Score / 100,
	}, nil
}

// get performs a rate-limited GET with retries on transient failures and
// decodes the JSON body into out.
func (c *httpClient) get(ctx context.Context, op, path string, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	return resilience.Do(ctx, c.retry, op, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "hunter: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrap(err, "hunter: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "hunter: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "hunter: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("hunter: unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "hunter: unmarshal response")
		}
		return nil
	})
}
