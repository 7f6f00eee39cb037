// Package sendgrid provides a minimal client for the SendGrid v3 mail send
// API.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const defaultBaseURL = "https://api.sendgrid.com/v3"

// Client defines the SendGrid operations used by the pipeline.
type Client interface {
	// Send delivers one plain-text email and returns the time the API
	// accepted it.
	Send(ctx context.Context, req SendRequest) (time.Time, error)
}

// SendRequest is one outbound email.
type SendRequest struct {
	To      string
	Subject string
	Body    string
}

// Option configures the SendGrid client.
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

// WithRateLimit overrides the default send rate (10 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey    string
	fromEmail string
	fromName  string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient creates a SendGrid client sending from the given address.
func NewClient(apiKey, fromEmail, fromName string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *httpClient) Send(ctx context.Context, req SendRequest) (time.Time, error) {
	body, err := json.Marshal(mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: req.To}}}},
		From:             emailAddress{Email: c.fromEmail, Name: c.fromName},
		Subject:          req.Subject,
		Content:          []mailContent{{Type: "text/plain", Value: req.Body}},
	})
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sendgrid: marshal request")
	}

	var sentAt time.Time
	err = resilience.Do(ctx, c.retry, "sendgrid.send", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "sendgrid: rate limit")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mail/send", bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "sendgrid: create request")
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			// Once the request may have reached the API, a retry could
			// deliver the message twice. Only failures to establish the
			// connection are safe to retry.
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Op == "dial" {
				return resilience.NewTransientError(eris.Wrap(err, "sendgrid: connect"), 0)
			}
			return resilience.NewPermanentError(eris.Wrap(err, "sendgrid: send request"))
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "sendgrid: read response")
		}

		if resp.StatusCode != http.StatusAccepted {
			err := eris.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, string(respBody))
			// A rate-limit rejection is the one status known not to have
			// accepted the message; 5xx is ambiguous and must not be resent.
			if resp.StatusCode == http.StatusTooManyRequests {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		sentAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return sentAt, nil
}
