package admin

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/config"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/storage"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Backend:           backend,
		BackendURL:        "http://backend.invalid/query",
		BackendTimeout:    time.Second,
		RetryMaxAttempts:  1,
		RetryDelays:       []time.Duration{time.Millisecond},
		RetryAfterSeconds: 60,
		SlowThreshold:     800 * time.Millisecond,
		MetadataCacheTTL:  time.Minute,
		MetadataTimeout:   time.Second,
		FeedURL:           config.DefaultFeedURL,
	}
}

func TestBuildStack_FulltextInMemory(t *testing.T) {
	ctx := context.Background()
	logger := events.NewJSONLogger(&bytes.Buffer{}, false)

	stack, err := BuildStack(ctx, testConfig(config.BackendFulltext), logger)
	require.NoError(t, err)
	defer stack.Close()

	require.NotNil(t, stack.Indexer)
	assert.IsType(t, &storage.MemoryStore{}, stack.Store)
	assert.Contains(t, stack.Health, "object_store")

	key := storage.SummaryKey("alphagov", "pay-connector")
	require.NoError(t, stack.Indexer.Index(ctx, domain.SummaryDocument{
		StoragePath: key,
		Repository:  "alphagov/pay-connector",
		Content:     "Repository: alphagov/pay-connector\nPayment card connector for GOV.UK Pay",
	}))
	require.NoError(t, stack.Store.PutObject(ctx, key, []byte("summary"), "text/plain", storage.EncodeMetadata(storage.SummaryRecord{
		Org:  "alphagov",
		Repo: "pay-connector",
		Metadata: domain.ObjectMetadata{
			SourceURL: "https://github.com/alphagov/pay-connector",
			PushedAt:  "2025-03-01T10:00:00Z",
			Language:  "Java",
		},
	})))

	req, err := domain.NewSearchRequest("payment connector", 0)
	require.NoError(t, err)

	resp, err := stack.SearchService().Search(ctx, req, time.Now())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "alphagov/pay-connector", resp.Results[0].Repository)
	assert.Equal(t, "Java", resp.Results[0].Metadata.Language.Value)
}

func TestBuildStack_HTTPBackendHasNoIndexer(t *testing.T) {
	stack, err := BuildStack(context.Background(), testConfig(config.BackendHTTP), events.NewJSONLogger(&bytes.Buffer{}, false))
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Backend)
	assert.Nil(t, stack.Indexer)

	pipeline, err := stack.Pipeline("http://feed.invalid/repos.json")
	require.NoError(t, err)
	assert.NotNil(t, pipeline)
}

func TestBuildStack_UnknownBackend(t *testing.T) {
	_, err := BuildStack(context.Background(), testConfig("elastic"), events.NewJSONLogger(&bytes.Buffer{}, false))

	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestIngestCmd_RejectsInvalidPartition(t *testing.T) {
	cmd := IngestCmd()
	cmd.SetArgs([]string{"--batch-size", "4", "--offset", "4"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()

	assert.ErrorIs(t, err, domain.ErrInvalidPartition)
}
