package boards

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/httpapi"
	"github.com/driftlab/boardroom/internal/models"
)

// ImageLister supplies a board's images so GET /api/boards/{id} can return
// the full canvas in one round trip.
type ImageLister interface {
	ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Image, error)
}

// Service exposes board CRUD over HTTP.
type Service struct {
	app      *App
	images   ImageLister
	verifier auth.TokenVerifier
}

// NewService creates the boards transport layer.
func NewService(app *App, images ImageLister, verifier auth.TokenVerifier) *Service {
	return &Service{app: app, images: images, verifier: verifier}
}

// HandleCreate handles POST /api/boards.
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req CreateBoardRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	board, err := s.app.CreateBoard(r.Context(), actor, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, board)
}

type boardDetail struct {
	Board  *models.Board   `json:"board"`
	Images []*models.Image `json:"images"`
}

// HandleGet handles GET /api/boards/{id}. Public boards are readable without
// a credential.
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

	board, err := s.app.GetBoard(r.Context(), actor, id)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	images, err := s.images.ListImagesByBoard(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, boardDetail{Board: board, Images: images})
}

// HandleListMine handles GET /api/boards.
func (s *Service) HandleListMine(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	boards, err := s.app.ListMyBoards(r.Context(), actor)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, boards)
}

// HandleListPublic handles GET /api/boards/public.
func (s *Service) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	boards, err := s.app.ListPublicBoards(r.Context(), int32(limit), int32(offset))
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, boards)
}

// HandleUpdate handles PUT /api/boards/{id}.
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

	var req UpdateBoardRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	board, err := s.app.UpdateBoard(r.Context(), actor, id, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, board)
}

// HandleDelete handles DELETE /api/boards/{id}.
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

	if err := s.app.DeleteBoard(r.Context(), actor, id); err != nil {
		httpapi.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCollaborators handles PUT /api/boards/{id}/collaborators.
func (s *Service) HandleCollaborators(w http.ResponseWriter, r *http.Request) {
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

	var req CollaboratorRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	board, err := s.app.SetCollaborator(r.Context(), actor, id, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, board)
}

// RegisterRoutes registers the board endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/boards", s.HandleCreate)
	mux.HandleFunc("GET /api/boards", s.HandleListMine)
	mux.HandleFunc("GET /api/boards/public", s.HandleListPublic)
	mux.HandleFunc("GET /api/boards/{id}", s.HandleGet)
	mux.HandleFunc("PUT /api/boards/{id}", s.HandleUpdate)
	mux.HandleFunc("DELETE /api/boards/{id}", s.HandleDelete)
	mux.HandleFunc("PUT /api/boards/{id}/collaborators", s.HandleCollaborators)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
