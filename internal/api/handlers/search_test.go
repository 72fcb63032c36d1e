package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/api"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, req domain.SearchRequest, acceptedAt time.Time) (*domain.SearchResponse, error) {
	args := m.Called(ctx, req, acceptedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResponse), args.Error(1)
}

func postSearch(h *SearchHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Search(w, req)
	return w
}

func sampleResponse() *domain.SearchResponse {
	return &domain.SearchResponse{
		Results: []domain.SearchResult{
			{
				Repository:     "alphagov/govuk-frontend",
				FilePath:       "summary",
				MatchSnippet:   "Frontend components",
				RelevanceScore: 0.92,
				Metadata: domain.ResultMetadata{
					Language:    domain.Known("TypeScript"),
					Stars:       domain.Defaulted(0),
					LastUpdated: domain.Known("2025-01-10T00:00:00Z"),
					GitHubURL:   "https://github.com/alphagov/govuk-frontend",
				},
			},
		},
		TookMs: 42,
	}
}

func TestSearchHandler_Success(t *testing.T) {
	svc := new(MockSearchService)
	rec := &events.Recorder{}
	h := NewSearchHandler(svc, rec)

	svc.On("Search", mock.Anything, domain.SearchRequest{Query: "frontend components", Limit: 3}, mock.AnythingOfType("time.Time")).
		Return(sampleResponse(), nil)

	w := postSearch(h, `{"query":"  frontend components ","limit":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["took_ms"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "alphagov/govuk-frontend", first["repository"])
	assert.Equal(t, float64(0), first["metadata"].(map[string]any)["stars"])

	assert.Len(t, rec.ByKind(events.RequestStart), 1)
	ends := rec.ByKind(events.RequestEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, 1, ends[0].Fields["result_count"])
	svc.AssertExpectations(t)
}

func TestSearchHandler_ValidationErrorSkipsService(t *testing.T) {
	svc := new(MockSearchService)
	rec := &events.Recorder{}
	h := NewSearchHandler(svc, rec)

	w := postSearch(h, `{"query":"ab"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, domain.ErrCodeQueryTooShort, env.Error.Code)
	svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)

	errs := rec.ByKind(events.RequestError)
	require.Len(t, errs, 1)
	assert.Equal(t, 400, errs[0].Fields["status"])
	assert.NotContains(t, errs[0].Fields, "error")
}

func TestSearchHandler_ServiceUnavailable(t *testing.T) {
	svc := new(MockSearchService)
	h := NewSearchHandler(svc, nil)

	svc.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewServiceError(domain.ErrCodeSearchUnavailable, "search service is temporarily unavailable", 503, 60, errors.New("timeout")))

	w := postSearch(h, `{"query":"benefits calculator"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	var env api.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 60, env.Error.RetryAfterSeconds)
}

func TestSearchHandler_UnclassifiedErrorIsGeneric(t *testing.T) {
	svc := new(MockSearchService)
	rec := &events.Recorder{}
	h := NewSearchHandler(svc, rec)

	svc.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("index out of range"))

	w := postSearch(h, `{"query":"benefits calculator"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "index out of range")

	errs := rec.ByKind(events.RequestError)
	require.Len(t, errs, 1)
	assert.Equal(t, "index out of range", errs[0].Fields["error"])
}

type stubChecker struct{ err error }

func (s stubChecker) Health(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthChecker{"backend": stubChecker{}})
		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"backend":"ok"}}`, w.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthChecker{
			"backend": stubChecker{},
			"storage": HealthFunc(func(context.Context) error { return errors.New("refused") }),
		})
		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"backend":"ok","storage":"unavailable"}}`, w.Body.String())
	})

	t.Run("no checks", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})
}
