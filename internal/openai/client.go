// Package openai turns search queries and repository summaries into vectors
// for the self-hosted Qdrant backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel      = openai.SmallEmbedding3
	DefaultEmbeddingDimensions = 1536
	// DefaultMaxInputChars keeps summaries well inside the model's token
	// window. Summaries are truncated, queries never reach this size.
	DefaultMaxInputChars = 24000
	// DefaultMaxInputTokens sits just under the 8191-token limit of the
	// text-embedding-3 models.
	DefaultMaxInputTokens = 8000
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
	ErrNoEmbedding     = errors.New("no embedding data returned")
)

// EmbeddingAPI is the subset of the OpenAI API used here
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Config configures the embedding client
type Config struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint. Empty means api.openai.com.
	BaseURL       string
	Model         openai.EmbeddingModel
	Dimensions     int
	MaxInputChars  int
	MaxInputTokens int
	// Tokens trims input to MaxInputTokens. NewClient loads a tiktoken
	// encoder when nil; without one only the character cap applies.
	Tokens TokenTrimmer
}

// Client generates fixed-size embeddings
type Client struct {
	api            EmbeddingAPI
	tokens         TokenTrimmer
	dimensions     int
	maxInputChars  int
	maxInputTokens int
}

type apiAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func (a *apiAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbedding
	}
	return resp.Data[0].Embedding, nil
}

// NewClient creates a Client. Zero config fields take the package defaults.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if cfg.Tokens == nil {
		if trimmer, err := NewTiktokenTrimmer(); err == nil {
			cfg.Tokens = trimmer
		}
	}
	return newClient(&apiAdapter{client: openai.NewClientWithConfig(clientCfg), model: model}, cfg)
}

func newClient(api EmbeddingAPI, cfg Config) *Client {
	c := &Client{
		api:            api,
		tokens:         cfg.Tokens,
		dimensions:     cfg.Dimensions,
		maxInputChars:  cfg.MaxInputChars,
		maxInputTokens: cfg.MaxInputTokens,
	}
	if c.maxInputTokens <= 0 {
		c.maxInputTokens = DefaultMaxInputTokens
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.maxInputChars <= 0 {
		c.maxInputChars = DefaultMaxInputChars
	}
	return c
}

// Dimensions returns the vector size this client produces
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding embeds text, truncating overly long input.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	input := truncate(text, c.maxInputChars)
	if c.tokens != nil {
		input = c.tokens.TrimToTokenLimit(input, c.maxInputTokens)
	}

	embedding, err := c.api.CreateEmbeddings(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}
	return embedding, nil
}

func truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	return string([]rune(s)[:maxChars])
}
