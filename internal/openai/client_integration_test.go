//go:build integration

package openai

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(Config{APIKey: apiKey})

	embedding, err := client.GenerateEmbedding(context.Background(), "NHS appointment booking frontend")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_TiktokenTrimmer(t *testing.T) {
	trimmer, err := NewTiktokenTrimmer()
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	text := strings.Repeat("department ", 50)
	assert.Greater(t, trimmer.CountTokens(text), 10)

	trimmed := trimmer.TrimToTokenLimit(text, 10)
	assert.LessOrEqual(t, trimmer.CountTokens(trimmed), 10)
	assert.True(t, strings.HasPrefix(text, trimmed))
	assert.Equal(t, "short", trimmer.TrimToTokenLimit("short", 10))
}
