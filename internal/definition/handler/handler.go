package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"obligo/internal/definition/models"
	"obligo/internal/platform/middleware"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/httputil"
	"obligo/pkg/requestcontext"
)

// Service defines the interface for definition operations.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.Definition, error)
	Update(ctx context.Context, code domain.DefinitionCode, req models.UpdateRequest) (*models.Definition, error)
	Deactivate(ctx context.Context, code domain.DefinitionCode) error
	Get(ctx context.Context, code domain.DefinitionCode) (*models.Definition, error)
	List(ctx context.Context, includeInactive bool) ([]*models.Definition, error)
}

// Handler handles definition registry endpoints. Writes require the
// supervisor role; reads only authentication.
type Handler struct {
	logger      *slog.Logger
	definitions Service
}

func New(definitions Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, definitions: definitions}
}

// Register adds the definition routes. The router is expected to already
// carry the platform middleware chain including RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/definitions", h.handleList)
	r.Get("/definitions/{code}", h.handleGet)

	r.Group(func(g chi.Router) {
		g.Use(middleware.RequireRole(requestcontext.RoleSupervisor, h.logger))
		g.Post("/definitions", h.handleCreate)
		g.Put("/definitions/{code}", h.handleUpdate)
		g.Delete("/definitions/{code}", h.handleDeactivate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	def, err := h.definitions.Create(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to create definition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, def)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	def, err := h.definitions.Update(ctx, code, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to update definition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, def)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.definitions.Deactivate(ctx, code); err != nil {
		h.writeServiceError(w, r, "failed to deactivate definition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := domain.ParseDefinitionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	def, err := h.definitions.Get(ctx, code)
	if err != nil {
		h.writeServiceError(w, r, "failed to load definition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, def)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	defs, err := h.definitions.List(ctx, includeInactive)
	if err != nil {
		h.writeServiceError(w, r, "failed to list definitions", err)
		return
	}
	if defs == nil {
		defs = []*models.Definition{}
	}
	httputil.WriteJSON(w, http.StatusOK, defs)
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
