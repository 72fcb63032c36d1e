// Package httpbackend reaches a managed semantic search backend that speaks
// the JSON query contract over HTTP.
package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/govreposcrape/govsearch/internal/domain"
)

const DefaultTimeout = 10 * time.Second

// Client posts {query, topK} and decodes {results, tookMs}.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// New creates a Client. token is sent as a bearer token when non-empty.
func New(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, token: token, httpClient: &http.Client{Timeout: timeout}}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search backend returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Query(ctx context.Context, q domain.BackendQuery) (*domain.BackendResult, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backend query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var result domain.BackendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	if result.Results == nil {
		result.Results = []domain.BackendHit{}
	}
	return &result, nil
}
