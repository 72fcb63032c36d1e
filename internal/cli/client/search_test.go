package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
)

func newSearchRoot(t *testing.T, url string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv(envAPIURL, "")
	root := &cobra.Command{Use: "govsearch", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("output", false, "")
	root.PersistentFlags().String("api-url", "", "")
	root.AddCommand(SearchCmd())

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"--api-url", url})
	return root, out
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "2", r.Header.Get("X-MCP-Version"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "postcode lookup", req.Query)
		assert.Equal(t, 3, req.Limit)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"repository":"alphagov/locations","file_path":"summary","match_snippet":"Postcode\nlookup","relevance_score":0.87,"metadata":{"language":"Ruby","stars":0,"last_updated":"2024-01-01T00:00:00Z","github_url":"https://github.com/alphagov/locations"}}],"took_ms":42}`))
	}))
	defer server.Close()

	root, out := newSearchRoot(t, server.URL)
	root.SetArgs([]string{"--api-url", server.URL, "search", "postcode", "lookup", "-n", "3"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Found 1 results in 42ms")
	assert.Contains(t, out.String(), "1. alphagov/locations (0.87)")
	assert.Contains(t, out.String(), "Postcode lookup")
	assert.Contains(t, out.String(), "Ruby | https://github.com/alphagov/locations")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[],"took_ms":3}`))
	}))
	defer server.Close()

	root, out := newSearchRoot(t, server.URL)
	root.SetArgs([]string{"--api-url", server.URL, "--output", "search", "nothing here"})

	require.NoError(t, root.Execute())
	assert.JSONEq(t, `{"results":[],"took_ms":3}`, out.String())
}

func TestSearchCmd_SurfacesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"SEARCH_UNAVAILABLE","message":"search service is temporarily unavailable","retry_after_seconds":60}}`))
	}))
	defer server.Close()

	root, _ := newSearchRoot(t, server.URL)
	root.SetArgs([]string{"--api-url", server.URL, "search", "tax"})

	err := root.Execute()

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "SEARCH_UNAVAILABLE", apiErr.Code)
	assert.Equal(t, 60, apiErr.RetryAfterSeconds)
	assert.Contains(t, err.Error(), "retry after 60s")
}

func TestAPIClient_Post_NonEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewAPIClientWithConfig(server.URL).Post(context.Background(), "/search", SearchRequest{Query: "abc"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestNewAPIClientWithCmd_EnvFallback(t *testing.T) {
	t.Setenv(envAPIURL, "http://search.internal:9000")
	assert.Equal(t, "http://search.internal:9000", NewAPIClientWithCmd(nil).baseURL)

	t.Setenv(envAPIURL, "")
	assert.Equal(t, defaultAPIURL, NewAPIClientWithCmd(nil).baseURL)
}

func TestPrintSearch_NoResults(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printSearch(out, domain.SearchResponse{Results: []domain.SearchResult{}}, false))
	assert.Equal(t, "No results found.\n", out.String())
}
