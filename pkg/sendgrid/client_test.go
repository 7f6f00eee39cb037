package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mailSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Personalizations, 1)
		assert.Equal(t, "jane@acme.com", req.Personalizations[0].To[0].Email)
		assert.Equal(t, "us@sells.group", req.From.Email)
		assert.Equal(t, "Hello", req.Subject)
		require.Len(t, req.Content, 1)
		assert.Equal(t, "text/plain", req.Content[0].Type)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient("test-key", "us@sells.group", "Sells Group", WithBaseURL(srv.URL))
	before := time.Now()
	sentAt, err := c.Send(context.Background(), SendRequest{
		To:      "jane@acme.com",
		Subject: "Hello",
		Body:    "Quick note.",
	})
	require.NoError(t, err)
	assert.False(t, sentAt.Before(before.UTC().Truncate(time.Second)))
}

func TestSend_RejectedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"does not contain a valid address"}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "us@sells.group", "", WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), SendRequest{To: "not-an-email", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// A 5xx after the request was delivered is ambiguous: the message may
	// already be queued, so resending risks a duplicate email.
	c := NewClient("test-key", "us@sells.group", "", WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), SendRequest{To: "a@b.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient("test-key", "us@sells.group", "", WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), SendRequest{To: "a@b.com", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
