package images

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/httpapi"
	"github.com/driftlab/boardroom/internal/models"
)

// Mover is the reconciler's move entry point. REST position writes use an
// empty connection ID, so the accepted state echoes to every viewer
// including any of the caller's own live connections.
type Mover interface {
	ApplyMove(ctx context.Context, actor *models.Identity, connID string, imageID uuid.UUID, patch models.PositionPatch) (*models.Position, error)
}

// Service exposes image CRUD and the position endpoint over HTTP.
type Service struct {
	app      *App
	mover    Mover
	verifier auth.TokenVerifier
}

// NewService creates the images transport layer.
func NewService(app *App, mover Mover, verifier auth.TokenVerifier) *Service {
	return &Service{app: app, mover: mover, verifier: verifier}
}

// HandleCreate handles POST /api/images.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req CreateImageRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	image, err := s.app.CreateImage(r.Context(), actor, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, image)
}

// HandleGet handles GET /api/images/{id}.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.Identity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, models.ErrValidation)
		return
	}

	image, err := s.app.GetImage(r.Context(), actor, id)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, image)
}

// HandleUpdate handles PUT /api/images/{id}.
func (s *Service) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, models.ErrValidation)
		return
	}

	var req UpdateImageRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	image, err := s.app.UpdateImage(r.Context(), actor, id, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, image)
}

// HandleUpdatePosition handles PUT /api/images/{id}/position. The body is a
// partial position; it goes through the same merge path as live moves.
func (s *Service) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, models.ErrValidation)
		return
	}

	var patch models.PositionPatch
	if err := httpapi.DecodeJSON(r, &patch); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	pos, err := s.mover.ApplyMove(r.Context(), actor, "", id, patch)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, pos)
}

// HandleDelete handles DELETE /api/images/{id}.
func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, models.ErrValidation)
		return
	}

	if err := s.app.DeleteImage(r.Context(), actor, id); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the image endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/images", s.HandleCreate)
	mux.HandleFunc("GET /api/images/{id}", s.HandleGet)
	mux.HandleFunc("PUT /api/images/{id}", s.HandleUpdate)
	mux.HandleFunc("PUT /api/images/{id}/position", s.HandleUpdatePosition)
	mux.HandleFunc("DELETE /api/images/{id}", s.HandleDelete)
}
