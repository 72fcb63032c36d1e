package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/govreposcrape/govsearch/internal/api"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query string `json:"query" jsonschema:"Natural-language description of the code to find (3 to 500 characters)"`
	Limit *int   `json:"limit,omitempty" jsonschema:"Maximum number of results, 1 to 20 (default 5)"`
}

type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest, acceptedAt time.Time) (*domain.SearchResponse, error)
}

// SearchTool handles the search_uk_gov_code tool.
type SearchTool struct {
	svc    Searcher
	now    func() time.Time
	logger *slog.Logger
}

func NewSearchTool(svc Searcher) *SearchTool {
	return &SearchTool{svc: svc, now: time.Now, logger: slog.Default()}
}

// WithLogger sets the logger that receives the detail of unexpected failures.
func (t *SearchTool) WithLogger(logger *slog.Logger) *SearchTool {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Handle validates the arguments, runs the search and returns the response
// both as JSON text and as structured content. Every failure is a tool error
// carrying the same code and message POST /search would publish.
func (t *SearchTool) Handle(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	acceptedAt := t.now()

	req, err := searchRequest(args)
	if err != nil {
		return t.toolError(ctx, err)
	}

	resp, err := t.svc.Search(ctx, req, acceptedAt)
	if err != nil {
		return t.toolError(ctx, err)
	}

	text, err := json.Marshal(resp)
	if err != nil {
		return t.toolError(ctx, fmt.Errorf("failed to encode search response: %w", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}, resp, nil
}

// searchRequest applies the HTTP gateway's rules: the query is checked
// first and an explicit limit, zero included, must be in range.
func searchRequest(args SearchArgument) (domain.SearchRequest, error) {
	q, err := domain.ValidateQuery(args.Query)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	limit := domain.DefaultLimit
	if args.Limit != nil {
		limit = *args.Limit
		if err := domain.ValidateLimit(limit); err != nil {
			return domain.SearchRequest{}, err
		}
	}
	return domain.SearchRequest{Query: q, Limit: limit}, nil
}

func (t *SearchTool) toolError(ctx context.Context, err error) (*mcp.CallToolResult, any, error) {
	status, body := api.Classify(err)
	if status >= http.StatusInternalServerError {
		t.logger.Error("search tool failed",
			slog.String("tool", ToolName),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		telemetry.CaptureError(ctx, err)
	}

	msg := fmt.Sprintf("%s: %s", body.Code, body.Message)
	if body.RetryAfterSeconds > 0 {
		msg += fmt.Sprintf(" (retry after %d seconds)", body.RetryAfterSeconds)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}, nil, nil
}
