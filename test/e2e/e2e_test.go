//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/ingest"
	"github.com/govreposcrape/govsearch/internal/storage"
)

var feedRepos = []ingest.Repository{
	{URL: "https://github.com/alphagov/vehicle-tax", PushedAt: "2025-01-10T09:00:00Z", Owner: "alphagov", Name: "vehicle-tax"},
	{URL: "https://github.com/dwp/benefit-calculator", PushedAt: "2025-02-11T10:00:00Z", Owner: "dwp", Name: "benefit-calculator"},
	{URL: "https://github.com/hmrc/broken", PushedAt: "2025-02-12T10:00:00Z", Owner: "hmrc", Name: "broken"},
}

var summaries = map[string]string{
	"alphagov/vehicle-tax":   "Repository: alphagov/vehicle-tax\nVehicle tax renewal service for DVLA vehicle tax payments",
	"dwp/benefit-calculator": "Repository: dwp/benefit-calculator\nUniversal credit benefit calculator for claimants",
}

func ingestFeed(t *testing.T, env *E2ETestEnv) {
	t.Helper()
	stats, err := env.Pipeline(env.ServeFeed(feedRepos), summaries).RunFeed(env.Ctx, ingest.Options{BatchSize: 1})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 1, stats.Failed)
}

// TestE2E_IngestThenSearch covers the ingest → object store → index → search loop
func TestE2E_IngestThenSearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingestFeed(t, env)

	t.Run("summary uploaded with cache metadata", func(t *testing.T) {
		info, err := env.S3Client.HeadObject(env.Ctx, storage.SummaryKey("alphagov", "vehicle-tax"))
		require.NoError(t, err)
		md := storage.DecodeMetadata(info.Metadata)
		assert.Equal(t, "2025-01-10T09:00:00Z", md.PushedAt)
		assert.Equal(t, "https://github.com/alphagov/vehicle-tax", md.SourceURL)

		_, err = env.S3Client.HeadObject(env.Ctx, storage.SummaryKey("hmrc", "broken"))
		assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	})

	t.Run("second run is fully cached", func(t *testing.T) {
		stats, err := env.Pipeline(env.ServeFeed(feedRepos), summaries).RunFeed(env.Ctx, ingest.Options{BatchSize: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Cached)
		assert.Equal(t, 0, stats.Processed)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("search returns enriched results", func(t *testing.T) {
		status, header, body := env.PostSearch(`{"query":"vehicle tax renewal","limit":2}`)
		require.Equal(t, http.StatusOK, status, string(body))
		assert.Equal(t, "2", header.Get("X-MCP-Version"))
		assert.NotEmpty(t, header.Get("X-Request-ID"))

		var resp domain.SearchResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		require.NotEmpty(t, resp.Results)
		top := resp.Results[0]
		assert.Equal(t, "alphagov/vehicle-tax", top.Repository)
		assert.Equal(t, "summary", top.FilePath)
		assert.Equal(t, "https://github.com/alphagov/vehicle-tax", top.Metadata.GitHubURL)
		assert.Equal(t, "2025-01-10T09:00:00Z", top.Metadata.LastUpdated.Value)
		assert.GreaterOrEqual(t, top.RelevanceScore, 0.0)
		assert.LessOrEqual(t, top.RelevanceScore, 1.0)
	})

	t.Run("validation errors use the envelope", func(t *testing.T) {
		status, _, body := env.PostSearch(`{"query":"ab"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "QUERY_TOO_SHORT")

		status, _, body = env.PostSearch(`{"query":"vehicle","limit":21}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "INVALID_LIMIT")
	})

	t.Run("health reports dependencies", func(t *testing.T) {
		resp, err := env.HTTPClient.Get(env.ServerURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	assert.NotEmpty(t, env.Events.ByKind(events.RequestEnd))
	assert.NotEmpty(t, env.Events.ByKind(events.IngestSummary))
}

// TestE2E_MCPTool calls the search tool over streamable HTTP
func TestE2E_MCPTool(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingestFeed(t, env)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "e2e", Version: "test"}, nil)
	session, err := client.Connect(env.Ctx, &sdkmcp.StreamableClientTransport{Endpoint: env.ServerURL + "/mcp"}, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(env.Ctx, &sdkmcp.CallToolParams{
		Name:      "search_uk_gov_code",
		Arguments: map[string]any{"query": "universal credit calculator", "limit": 1},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "dwp/benefit-calculator", resp.Results[0].Repository)
}

// TestE2E_CLISearch runs the govsearch binary against the server
func TestE2E_CLISearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ingestFeed(t, env)
	env.BuildBinaries()

	out, err := env.RunGovsearch("search", "vehicle tax", "-n", "1", "--output")
	require.NoError(t, err, out)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "alphagov/vehicle-tax", resp.Results[0].Repository)

	out, err = env.RunGovsearch("search", "ab")
	assert.Error(t, err)
	assert.Contains(t, out, "QUERY_TOO_SHORT")
}
