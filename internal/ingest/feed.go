// Package ingest keeps the object store and search index in step with the
// published feed of UK government repositories.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	giturls "github.com/whilp/git-urls"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/retry"
)

const DefaultFeedTimeout = 30 * time.Second

// Repository is one entry of repos.json. The feed names the owning
// organisation "owner"; older snapshots used "org".
type Repository struct {
	URL      string `json:"url"`
	PushedAt string `json:"pushedAt"`
	Owner    string `json:"owner,omitempty"`
	Org      string `json:"org,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Identity returns the organisation and repository name, falling back to
// parsing the clone URL when the feed omits them.
func (r Repository) Identity() (org, name string, err error) {
	org = r.Owner
	if org == "" {
		org = r.Org
	}
	name = r.Name
	if org != "" && name != "" {
		return org, name, nil
	}

	u, err := giturls.Parse(r.URL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse repository url %q: %w", r.URL, err)
	}
	parts := strings.Split(strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("repository url %q has no owner/name", r.URL)
	}
	if org == "" {
		org = parts[len(parts)-2]
	}
	if name == "" {
		name = parts[len(parts)-1]
	}
	return org, name, nil
}

// FeedClient downloads repos.json
type FeedClient struct {
	url        string
	httpClient *http.Client
	retry      *retry.Executor
}

func NewFeedClient(url string, executor *retry.Executor) *FeedClient {
	return &FeedClient{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultFeedTimeout},
		retry:      executor,
	}
}

// Fetch downloads and decodes the feed, retrying transient failures.
func (c *FeedClient) Fetch(ctx context.Context) ([]Repository, error) {
	return retry.Execute(ctx, c.retry, "fetch_feed", c.fetchOnce)
}

func (c *FeedClient) fetchOnce(ctx context.Context) ([]Repository, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("feed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var repos []Repository
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return repos, nil
}

// Partition keeps the repositories whose feed index i satisfies
// i % batchSize == offset, so that batchSize workers cover the feed exactly once.
func Partition(repos []Repository, batchSize, offset int) ([]Repository, error) {
	if err := ValidatePartition(batchSize, offset); err != nil {
		return nil, err
	}

	out := make([]Repository, 0, len(repos)/batchSize+1)
	for i, r := range repos {
		if i%batchSize == offset {
			out = append(out, r)
		}
	}
	return out, nil
}

// ValidatePartition checks 0 <= offset < batchSize.
func ValidatePartition(batchSize, offset int) error {
	if batchSize < 1 || offset < 0 || offset >= batchSize {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("offset (%d) must be in [0, batch-size (%d))", offset, batchSize),
			domain.ErrInvalidPartition)
	}
	return nil
}

// Limit caps repos at n entries. n <= 0 means no cap.
func Limit(repos []Repository, n int) []Repository {
	if n <= 0 || n >= len(repos) {
		return repos
	}
	return repos[:n]
}
