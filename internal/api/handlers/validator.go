package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// MaxSearchBodyBytes caps the size of a search request body.
const MaxSearchBodyBytes = 1024

// RequestValidator turns an inbound search request into a domain.SearchRequest.
// Checks run in a fixed order and stop at the first failure: content type,
// body size, JSON shape, query, limit.
type RequestValidator struct {
	maxBodyBytes int64
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{maxBodyBytes: MaxSearchBodyBytes}
}

func (v *RequestValidator) Validate(r *http.Request) (domain.SearchRequest, error) {
	if err := checkContentType(r.Header.Get("Content-Type")); err != nil {
		return domain.SearchRequest{}, err
	}

	body, err := v.readBody(r)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	fields, err := decodeObject(body)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	query, err := parseQuery(fields["query"])
	if err != nil {
		return domain.SearchRequest{}, err
	}

	limit, err := parseLimit(fields["limit"])
	if err != nil {
		return domain.SearchRequest{}, err
	}

	return domain.SearchRequest{Query: query, Limit: limit}, nil
}

func checkContentType(header string) error {
	if header == "" {
		return domain.NewValidationError(domain.ErrCodeInvalidContentType, "Content-Type must be application/json")
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType != "application/json" {
		return domain.NewValidationError(domain.ErrCodeInvalidContentType, "Content-Type must be application/json")
	}
	return nil
}

func (v *RequestValidator) readBody(r *http.Request) ([]byte, error) {
	tooLarge := domain.NewValidationError(domain.ErrCodePayloadTooLarge,
		fmt.Sprintf("request body must not exceed %d bytes", v.maxBodyBytes))

	if r.ContentLength > v.maxBodyBytes {
		return nil, tooLarge
	}
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodyBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge
		}
		return nil, domain.NewValidationError(domain.ErrCodeMalformedBody, "request body could not be read")
	}
	if int64(len(body)) > v.maxBodyBytes {
		return nil, tooLarge
	}
	return body, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	malformed := domain.NewValidationError(domain.ErrCodeMalformedBody, "request body must be a JSON object")

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, malformed
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, malformed
	}
	if dec.More() {
		return nil, malformed
	}
	return fields, nil
}

func parseQuery(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", domain.NewValidationError(domain.ErrCodeMalformedBody, "query is required")
	}
	var query string
	if err := json.Unmarshal(raw, &query); err != nil {
		return "", domain.NewValidationError(domain.ErrCodeMalformedBody, "query must be a string")
	}
	return domain.ValidateQuery(query)
}

// parseLimit accepts integral JSON numbers, including forms like 5.0.
func parseLimit(raw json.RawMessage) (int, error) {
	if isAbsent(raw) {
		return domain.DefaultLimit, nil
	}

	invalid := domain.NewValidationError(domain.ErrCodeInvalidLimit,
		fmt.Sprintf("limit must be an integer between %d and %d", domain.MinLimit, domain.MaxLimit))

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, invalid
	}
	// json.Number also accepts quoted numbers
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		return 0, invalid
	}

	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, invalid
	}
	if f < domain.MinLimit || f > domain.MaxLimit {
		return 0, invalid
	}
	return int(f), nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
