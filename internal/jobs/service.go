package jobs

import (
	"net/http"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/httpapi"
)

// Service exposes the combine endpoint over HTTP.
type Service struct {
	runner   *Runner
	verifier auth.TokenVerifier
}

// NewService creates the jobs transport layer.
func NewService(runner *Runner, verifier auth.TokenVerifier) *Service {
	return &Service{runner: runner, verifier: verifier}
}

// HandleCombine handles POST /api/ai/combine. The job is accepted and worked
// in the background; progress arrives on the caller's private event channel.
func (s *Service) HandleCombine(w http.ResponseWriter, r *http.Request) {
	actor, err := httpapi.RequireIdentity(r, s.verifier)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	var req CombineRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, err)
		return
	}

	job, err := s.runner.Enqueue(r.Context(), actor, req)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusAccepted, job)
}

// RegisterRoutes registers the job endpoints.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ai/combine", s.HandleCombine)
}
