package users

import (
	"net/http"

	"github.com/driftlab/boardroom/internal/httpapi"
	"github.com/driftlab/boardroom/internal/models"
)

// Service exposes registration and login over HTTP.
type Service struct {
	app *App
}

// NewService creates the users transport layer.
func NewService(app *App) *Service {
	return &Service{app: app}
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// HandleRegister handles POST /api/auth/register.
func (s *Service) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	user, token, err := s.app.Register(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

// HandleLogin handles POST /api/auth/login.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	user, token, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// RegisterRoutes registers the auth endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", s.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", s.HandleLogin)
}
