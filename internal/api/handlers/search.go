package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/govreposcrape/govsearch/internal/api"
	"github.com/govreposcrape/govsearch/internal/api/middleware"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
)

type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest, acceptedAt time.Time) (*domain.SearchResponse, error)
}

type SearchHandler struct {
	svc       SearchService
	validator *RequestValidator
	events    events.Emitter
	now       func() time.Time
}

func NewSearchHandler(svc SearchService, emitter events.Emitter) *SearchHandler {
	return &SearchHandler{
		svc:       svc,
		validator: NewRequestValidator(),
		events:    events.OrNop(emitter),
		now:       time.Now,
	}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	acceptedAt := h.now()
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	h.events.Emit(ctx, events.Event{
		Kind:      events.RequestStart,
		Level:     slog.LevelInfo,
		Component: "gateway",
		Fields: map[string]any{
			"request_id": requestID,
			"path":       r.URL.Path,
		},
	})

	req, err := h.validator.Validate(r)
	if err != nil {
		h.fail(w, r, err, acceptedAt)
		return
	}

	resp, err := h.svc.Search(ctx, req, acceptedAt)
	if err != nil {
		h.fail(w, r, err, acceptedAt)
		return
	}

	api.JSON(w, http.StatusOK, resp)

	h.events.Emit(ctx, events.Event{
		Kind:      events.RequestEnd,
		Level:     slog.LevelInfo,
		Component: "gateway",
		Fields: map[string]any{
			"request_id":   requestID,
			"status":       http.StatusOK,
			"result_count": len(resp.Results),
			"took_ms":      resp.TookMs,
			"limit":        req.Limit,
		},
	})
}

func (h *SearchHandler) fail(w http.ResponseWriter, r *http.Request, err error, acceptedAt time.Time) {
	status := api.HandleError(w, r, err)
	_, body := api.Classify(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	fields := map[string]any{
		"request_id": middleware.GetRequestID(r.Context()),
		"status":     status,
		"code":       body.Code,
		"took_ms":    h.now().Sub(acceptedAt).Milliseconds(),
	}
	// full detail stays server-side
	if status >= http.StatusInternalServerError {
		fields["error"] = err.Error()
	}

	h.events.Emit(r.Context(), events.Event{
		Kind:      events.RequestError,
		Level:     level,
		Component: "gateway",
		Message:   body.Message,
		Fields:    fields,
	})
}
