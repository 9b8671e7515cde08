package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"obligo/internal/occurrence/models"
	"obligo/internal/platform/middleware"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
)

// Service defines the interface for occurrence operations.
type Service interface {
	Ensure(ctx context.Context, req models.EnsureRequest) (*models.View, error)
	Submit(ctx context.Context, id domain.OccurrenceID, req models.SubmitRequest) (*models.View, error)
	Correct(ctx context.Context, id domain.OccurrenceID, req models.CorrectRequest) (*models.View, error)
	Get(ctx context.Context, id domain.OccurrenceID) (*models.View, error)
	GetByPeriod(ctx context.Context, code domain.DefinitionCode, periodLabel string) (*models.View, error)
	ListByDefinition(ctx context.Context, code domain.DefinitionCode) ([]*models.View, error)
	ListPending(ctx context.Context) ([]*models.View, error)
	ListOverdue(ctx context.Context) ([]*models.View, error)
	ListHistory(ctx context.Context, from, to time.Time) ([]*models.View, error)
}

// Handler handles occurrence lifecycle endpoints. All routes require
// authentication; role checks live in the service.
type Handler struct {
	logger      *slog.Logger
	occurrences Service
}

func New(occurrences Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, occurrences: occurrences}
}

// Register adds the occurrence routes. The router is expected to already
// carry the platform middleware chain including RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/occurrences/ensure", h.handleEnsure)
	r.Get("/occurrences/pending", h.handleListPending)
	r.Get("/occurrences/overdue", h.handleListOverdue)
	r.Get("/occurrences/history", h.handleListHistory)
	r.Get("/occurrences/{id}", h.handleGet)
	r.Post("/occurrences/{id}/submit", h.handleSubmit)
	r.Post("/occurrences/{id}/corrections", h.handleCorrect)
	r.Get("/definitions/{code}/occurrences", h.handleListByDefinition)
	r.Get("/definitions/{code}/occurrences/{period}", h.handleGetByPeriod)
}

func (h *Handler) handleEnsure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.EnsureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	view, err := h.occurrences.Ensure(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to ensure occurrence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	view, err := h.occurrences.Submit(ctx, id, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to record submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.CorrectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	view, err := h.occurrences.Correct(ctx, id, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to append correction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.occurrences.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, "failed to load occurrence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetByPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.occurrences.GetByPeriod(ctx, code, chi.URLParam(r, "period"))
	if err != nil {
		h.writeServiceError(w, r, "failed to load occurrence", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleListByDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.occurrences.ListByDefinition(ctx, code)
	if err != nil {
		h.writeServiceError(w, r, "failed to list occurrences", err)
		return
	}
	h.writeViews(w, views)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	views, err := h.occurrences.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list pending occurrences", err)
		return
	}
	h.writeViews(w, views)
}

func (h *Handler) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	views, err := h.occurrences.ListOverdue(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list overdue occurrences", err)
		return
	}
	h.writeViews(w, views)
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.occurrences.ListHistory(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, "failed to list history", err)
		return
	}
	h.writeViews(w, views)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "query parameter "+name+" is required")
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, name+" must be a YYYY-MM-DD date")
	}
	return t, nil
}

func (h *Handler) writeViews(w http.ResponseWriter, views []*models.View) {
	if views == nil {
		views = []*models.View{}
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
