package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
)

func newSearchRequest(contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestRequestValidator_Valid(t *testing.T) {
	tests := []struct {
		name      string
		ct        string
		body      string
		wantQuery string
		wantLimit int
	}{
		{"defaults limit", "application/json", `{"query":"authentication middleware"}`, "authentication middleware", 5},
		{"explicit limit", "application/json", `{"query":"nhs login","limit":20}`, "nhs login", 20},
		{"null limit", "application/json", `{"query":"nhs login","limit":null}`, "nhs login", 5},
		{"integral float", "application/json", `{"query":"nhs login","limit":5.0}`, "nhs login", 5},
		{"charset parameter", "application/json; charset=utf-8", `{"query":"abc"}`, "abc", 5},
		{"trims query", "application/json", `{"query":"   postcode   "}`, "postcode", 5},
		{"unknown fields ignored", "application/json", `{"query":"postcode","extra":true}`, "postcode", 5},
	}

	v := NewRequestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := v.Validate(newSearchRequest(tt.ct, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, req.Query)
			assert.Equal(t, tt.wantLimit, req.Limit)
		})
	}
}

func TestRequestValidator_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		ct       string
		body     string
		wantCode string
	}{
		{"missing content type", "", `{"query":"abc"}`, domain.ErrCodeInvalidContentType},
		{"wrong content type", "text/plain", `{"query":"abc"}`, domain.ErrCodeInvalidContentType},
		{"too large", "application/json", `{"query":"` + strings.Repeat("a", 1100) + `"}`, domain.ErrCodePayloadTooLarge},
		{"not json", "application/json", `query=abc`, domain.ErrCodeMalformedBody},
		{"json array", "application/json", `["abc"]`, domain.ErrCodeMalformedBody},
		{"empty body", "application/json", ``, domain.ErrCodeMalformedBody},
		{"trailing data", "application/json", `{"query":"abc"}{"query":"def"}`, domain.ErrCodeMalformedBody},
		{"missing query", "application/json", `{"limit":5}`, domain.ErrCodeMalformedBody},
		{"numeric query", "application/json", `{"query":123}`, domain.ErrCodeMalformedBody},
		{"short query", "application/json", `{"query":"ab"}`, domain.ErrCodeQueryTooShort},
		{"whitespace query", "application/json", `{"query":"    a    "}`, domain.ErrCodeQueryTooShort},
		{"long query", "application/json", `{"query":"` + strings.Repeat("a", 501) + `"}`, domain.ErrCodeQueryTooLong},
		{"zero limit", "application/json", `{"query":"abc","limit":0}`, domain.ErrCodeInvalidLimit},
		{"limit above range", "application/json", `{"query":"abc","limit":21}`, domain.ErrCodeInvalidLimit},
		{"negative limit", "application/json", `{"query":"abc","limit":-1}`, domain.ErrCodeInvalidLimit},
		{"fractional limit", "application/json", `{"query":"abc","limit":5.5}`, domain.ErrCodeInvalidLimit},
		{"string limit", "application/json", `{"query":"abc","limit":"5"}`, domain.ErrCodeInvalidLimit},
		{"boolean limit", "application/json", `{"query":"abc","limit":true}`, domain.ErrCodeInvalidLimit},
	}

	v := NewRequestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(newSearchRequest(tt.ct, tt.body))
			ve, ok := domain.AsValidationError(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantCode, ve.Code)
		})
	}
}

func TestRequestValidator_OrderShortCircuits(t *testing.T) {
	v := NewRequestValidator()

	// wrong content type wins over a malformed body and bad limit
	_, err := v.Validate(newSearchRequest("text/plain", `{"query":"a","limit":99`))
	ve, _ := domain.AsValidationError(err)
	require.NotNil(t, ve)
	assert.Equal(t, domain.ErrCodeInvalidContentType, ve.Code)

	// query is checked before limit
	_, err = v.Validate(newSearchRequest("application/json", `{"query":"a","limit":99}`))
	ve, _ = domain.AsValidationError(err)
	require.NotNil(t, ve)
	assert.Equal(t, domain.ErrCodeQueryTooShort, ve.Code)
}

func TestRequestValidator_QueryLengthCountsCharacters(t *testing.T) {
	v := NewRequestValidator()

	req, err := v.Validate(newSearchRequest("application/json", `{"query":"ÆØÅ"}`))

	require.NoError(t, err)
	assert.Equal(t, "ÆØÅ", req.Query)
}
