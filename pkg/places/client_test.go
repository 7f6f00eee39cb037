package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		var req textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "plumbers in austin", req.TextQuery)

		w.Write([]byte(`{"places":[
			{"displayName":{"text":"Austin Plumbing Co"},"websiteUri":"https://austinplumbing.com"},
			{"displayName":{"text":"Pipe Dreams"},"websiteUri":"https://pipedreams.io"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.TextSearch(context.Background(), "plumbers in austin", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Austin Plumbing Co", got[0].DisplayName.Text)
	assert.Equal(t, "https://pipedreams.io", got[1].WebsiteURI)
}

func TestTextSearch_FollowsPagination(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		page++
		if page == 1 {
			assert.Empty(t, req.PageToken)
			w.Write([]byte(`{"places":[{"displayName":{"text":"A"},"websiteUri":"https://a.com"}],"nextPageToken":"tok-2"}`))
			return
		}
		assert.Equal(t, "tok-2", req.PageToken)
		w.Write([]byte(`{"places":[{"displayName":{"text":"B"},"websiteUri":"https://b.com"}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.TextSearch(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, page)
}

func TestTextSearch_TruncatesToMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places":[
			{"displayName":{"text":"A"},"websiteUri":"https://a.com"},
			{"displayName":{"text":"B"},"websiteUri":"https://b.com"},
			{"displayName":{"text":"C"},"websiteUri":"https://c.com"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := c.TextSearch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTextSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key invalid"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.TextSearch(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
