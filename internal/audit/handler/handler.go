package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"obligo/internal/audit"
	"obligo/internal/platform/middleware"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
)

// Service defines the read surface of the trail. Writes go through
// audit.Service.Emit from the owning services; there is no write endpoint.
type Service interface {
	ListByOccurrence(ctx context.Context, occurrenceID string) ([]audit.Event, error)
	ListByDefinition(ctx context.Context, definitionCode string) ([]audit.Event, error)
}

// Handler exposes the audit trail read-only.
type Handler struct {
	logger *slog.Logger
	trail  Service
}

func New(trail Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, trail: trail}
}

// Register adds the audit routes. The router is expected to already carry
// the platform middleware chain including RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/occurrences/{id}/audit", h.handleListByOccurrence)
	r.Get("/definitions/{code}/audit", h.handleListByDefinition)
}

func (h *Handler) handleListByOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.trail.ListByOccurrence(r.Context(), id.String())
	if err != nil {
		h.writeServiceError(w, r, "failed to list audit events", err)
		return
	}
	h.writeEvents(w, events)
}

func (h *Handler) handleListByDefinition(w http.ResponseWriter, r *http.Request) {
	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.trail.ListByDefinition(r.Context(), code.String())
	if err != nil {
		h.writeServiceError(w, r, "failed to list audit events", err)
		return
	}
	h.writeEvents(w, events)
}

func (h *Handler) writeEvents(w http.ResponseWriter, events []audit.Event) {
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
}
