//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/testutil"
)

func TestS3Client_SummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "summaries",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	key := SummaryKey("alphagov", "govuk-frontend")

	md, err := client.GetMetadata(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, md, "missing object reports absent metadata")

	_, err = client.HeadObject(ctx, key)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	body := []byte("Repository: alphagov/govuk-frontend\n")
	err = client.PutObject(ctx, key, body, SummaryContentType, EncodeMetadata(SummaryRecord{
		Org:  "alphagov",
		Repo: "govuk-frontend",
		Metadata: domain.ObjectMetadata{
			PushedAt:  "2025-10-15T12:00:00Z",
			SourceURL: "https://github.com/alphagov/govuk-frontend",
			Language:  "JavaScript",
		},
		Size: len(body),
	}))
	require.NoError(t, err)

	md, err = client.GetMetadata(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, "2025-10-15T12:00:00Z", md.PushedAt)
	assert.Equal(t, "https://github.com/alphagov/govuk-frontend", md.SourceURL)
	assert.Equal(t, "JavaScript", md.Language)

	got, err := client.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}
