package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	client, err := NewClient("tv-test-key")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestSearchSendsExpectedRequest(t *testing.T) {
	var captured searchRequest
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(searchResponse{
			Results: []searchResult{
				{URL: "https://a.example", Title: "A", Content: "snippet a", Score: 0.9},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("tv-test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	docs, err := client.Search(context.Background(), "remote work trends", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "Bearer tv-test-key", authHeader)
	assert.Equal(t, "remote work trends", captured.Query)
	assert.Equal(t, "advanced", captured.SearchDepth)
	assert.Equal(t, 5, captured.MaxResults)
	assert.True(t, captured.IncludeRawContent)
}

func TestSearchPrefersRawContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{
			Results: []searchResult{
				{URL: "https://raw.example", Title: "Raw", Content: "short snippet", RawContent: "full page body", Score: 0.8},
				{URL: "https://snippet.example", Title: "Snippet", Content: "only a snippet", Score: 0.5},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("tv-test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	docs, err := client.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "full page body", docs[0].Content)
	assert.Equal(t, 0.8, docs[0].Score)
	assert.Equal(t, "only a snippet", docs[1].Content)
}

func TestSearchReturnsErrorOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail": "rate limited"}`))
	}))
	defer server.Close()

	client, err := NewClient("tv-test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSearchReturnsErrorOnMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewClient("tv-test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
