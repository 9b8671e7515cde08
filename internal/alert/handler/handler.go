package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"obligo/internal/alert"
	"obligo/internal/platform/middleware"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
)

// Service defines the interface for alert operations.
type Service interface {
	Evaluate(ctx context.Context) ([]alert.Alert, error)
	EvaluateOccurrence(ctx context.Context, id domain.OccurrenceID) ([]alert.Alert, error)
	Acknowledge(ctx context.Context, id domain.OccurrenceID, tier alert.Tier) (*alert.Alert, error)
	ListByOccurrence(ctx context.Context, id domain.OccurrenceID) ([]alert.Alert, error)
}

// Handler exposes the alert evaluation trigger and the acknowledgement
// transition. Evaluation is called by the external scheduler; the rest is
// for operators and the UI.
type Handler struct {
	logger *slog.Logger
	alerts Service
}

func New(alerts Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, alerts: alerts}
}

// Register adds the alert routes. The router is expected to already carry
// the platform middleware chain including RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/alerts/evaluate", h.handleEvaluate)
	r.Get("/occurrences/{id}/alerts", h.handleList)
	r.Post("/occurrences/{id}/alerts/evaluate", h.handleEvaluateOccurrence)
	r.Post("/occurrences/{id}/alerts/{tier}/ack", h.handleAcknowledge)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	fired, err := h.alerts.Evaluate(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "alert evaluation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fired)
}

func (h *Handler) handleEvaluateOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fired, err := h.alerts.EvaluateOccurrence(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "alert evaluation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fired)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	alerts, err := h.alerts.ListByOccurrence(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOccurrenceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tier, err := alert.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	acked, err := h.alerts.Acknowledge(r.Context(), id, tier)
	if err != nil {
		h.writeServiceError(w, r, "failed to acknowledge alert", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acked)
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
