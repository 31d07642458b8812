package httpapi

import (
	"net/http"
	"strings"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/models"
)

// Identity resolves the caller's identity from a bearer token. A request
// without a credential yields (nil, nil): an anonymous actor, which the
// access gate may still admit to public boards.
func Identity(r *http.Request, verifier auth.TokenVerifier) (*models.Identity, error) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, nil
	}
	return verifier.Verify(r.Context(), token)
}

// RequireIdentity is Identity but rejects anonymous callers.
func RequireIdentity(r *http.Request, verifier auth.TokenVerifier) (*models.Identity, error) {
	identity, err := Identity(r, verifier)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, models.ErrUnauthorized
	}
	return identity, nil
}
