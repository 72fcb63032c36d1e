package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
)

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "gitingest/alphagov/govuk-frontend/summary.txt", SummaryKey("alphagov", "govuk-frontend"))
}

func TestEncodeMetadata(t *testing.T) {
	m := EncodeMetadata(SummaryRecord{
		Org:  "alphagov",
		Repo: "govuk-frontend",
		Metadata: domain.ObjectMetadata{
			PushedAt:    "2025-10-15T12:00:00Z",
			SourceURL:   "https://github.com/alphagov/govuk-frontend",
			ProcessedAt: "2025-10-16T08:00:00Z",
		},
		Size: 2048,
	})

	assert.Equal(t, map[string]string{
		"pushedat":    "2025-10-15T12:00:00Z",
		"url":         "https://github.com/alphagov/govuk-frontend",
		"processedat": "2025-10-16T08:00:00Z",
		"org":         "alphagov",
		"repo":        "govuk-frontend",
		"size":        "2048",
	}, m)
}

func TestDecodeMetadata_IgnoresKeyCase(t *testing.T) {
	md := DecodeMetadata(map[string]string{
		"pushedAt":    "2025-10-15T12:00:00Z",
		"URL":         "https://github.com/a/b",
		"processedat": "2025-10-16T08:00:00Z",
		"language":    "Go",
	})

	assert.Equal(t, domain.ObjectMetadata{
		PushedAt:    "2025-10-15T12:00:00Z",
		SourceURL:   "https://github.com/a/b",
		ProcessedAt: "2025-10-16T08:00:00Z",
		Language:    "Go",
	}, md)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.HeadObject(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	md, err := store.GetMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, md)

	meta := map[string]string{MetaPushedAt: "2025-01-01T00:00:00Z"}
	require.NoError(t, store.PutObject(ctx, "k", []byte("body"), SummaryContentType, meta))
	meta[MetaPushedAt] = "mutated"

	info, err := store.HeadObject(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.ContentLength)
	assert.Equal(t, "2025-01-01T00:00:00Z", info.Metadata[MetaPushedAt])

	body, err := store.GetObject(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))
	assert.Equal(t, 1, store.Len())
}
