package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Query and limit bounds. Query length is measured in characters after
// trimming surrounding whitespace.
const (
	MinQueryLength = 3
	MaxQueryLength = 500
	MinLimit       = 1
	MaxLimit       = 20
	DefaultLimit   = 5
)

// SearchRequest is a validated search request
type SearchRequest struct {
	Query string
	Limit int
}

// NewSearchRequest trims the query and validates both fields.
// A zero limit means "not supplied" and resolves to DefaultLimit.
func NewSearchRequest(query string, limit int) (SearchRequest, error) {
	q, err := ValidateQuery(query)
	if err != nil {
		return SearchRequest{}, err
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if err := ValidateLimit(limit); err != nil {
		return SearchRequest{}, err
	}
	return SearchRequest{Query: q, Limit: limit}, nil
}

// ValidateQuery returns the trimmed query or a ValidationError.
func ValidateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	n := utf8.RuneCountInString(q)
	if n < MinQueryLength {
		return "", NewValidationError(ErrCodeQueryTooShort,
			fmt.Sprintf("query must be at least %d characters", MinQueryLength))
	}
	if n > MaxQueryLength {
		return "", NewValidationError(ErrCodeQueryTooLong,
			fmt.Sprintf("query must be at most %d characters", MaxQueryLength))
	}
	return q, nil
}

// ValidateLimit checks limit is within [MinLimit, MaxLimit].
func ValidateLimit(limit int) error {
	if limit < MinLimit || limit > MaxLimit {
		return NewValidationError(ErrCodeInvalidLimit,
			fmt.Sprintf("limit must be an integer between %d and %d", MinLimit, MaxLimit))
	}
	return nil
}

// BackendQuery is the request sent to a semantic search backend
type BackendQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// BackendHit is a single backend result
type BackendHit struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Path    string  `json:"path"`
}

// BackendResult is the backend response
type BackendResult struct {
	Results []BackendHit `json:"results"`
	TookMs  int64        `json:"tookMs"`
}

// RawSearchHit is a backend hit after client-side normalisation
type RawSearchHit struct {
	Content     string
	Score       float64
	StoragePath string
}

// RepositoryIdentity identifies a repository by organisation and name.
// Known is false when the identity could not be derived.
type RepositoryIdentity struct {
	Org      string
	Name     string
	FullName string
	Known    bool
}

const unknownSegment = "unknown"

// NewRepositoryIdentity builds a known identity
func NewRepositoryIdentity(org, name string) RepositoryIdentity {
	return RepositoryIdentity{Org: org, Name: name, FullName: org + "/" + name, Known: true}
}

// UnknownRepository is the identity used when a storage path cannot be parsed.
func UnknownRepository() RepositoryIdentity {
	return RepositoryIdentity{
		Org:      unknownSegment,
		Name:     unknownSegment,
		FullName: unknownSegment + "/" + unknownSegment,
	}
}

// RepositoryLinks are the derived browse/open links for a repository
type RepositoryLinks struct {
	Primary    string
	GitHubDev  string
	Codespaces string
}

// ObjectMetadata is the user metadata stored alongside a summary object.
// Empty strings mean the field was not recorded.
type ObjectMetadata struct {
	PushedAt    string
	SourceURL   string
	ProcessedAt string
	Language    string
}

// EnrichedResult is a raw hit joined with repository identity, links and
// object metadata. Metadata is nil when unavailable.
type EnrichedResult struct {
	Content     string
	Score       float64
	StoragePath string
	Repository  RepositoryIdentity
	Links       RepositoryLinks
	Metadata    *ObjectMetadata
}

// SearchResponse is the published response body
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	TookMs  int64          `json:"took_ms"`
}

// SearchResult is a single published result
type SearchResult struct {
	Repository     string         `json:"repository"`
	FilePath       string         `json:"file_path"`
	MatchSnippet   string         `json:"match_snippet"`
	RelevanceScore float64        `json:"relevance_score"`
	Metadata       ResultMetadata `json:"metadata"`
}

// ResultMetadata is the published per-result metadata. Fields that could not
// be sourced are marked Defaulted but still serialise to a plain value.
type ResultMetadata struct {
	Language    Field[string] `json:"language"`
	Stars       Field[int]    `json:"stars"`
	LastUpdated Field[string] `json:"last_updated"`
	GitHubURL   string        `json:"github_url"`
}

// SummaryDocument is a repository summary handed to an indexing backend
type SummaryDocument struct {
	StoragePath string
	Repository  string
	Content     string
}
