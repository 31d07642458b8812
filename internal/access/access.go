// Package access resolves what an actor may do on a board. It is a pure
// decision component: no I/O, no shared state, safe to call on every request.
package access

import "github.com/driftlab/boardroom/internal/models"

// Operation is a board-scoped action subject to authorization.
type Operation string

const (
	OpView                Operation = "view"
	OpMoveImage           Operation = "move-image"
	OpEditMetadata        Operation = "edit-metadata"
	OpManageCollaborators Operation = "manage-collaborators"
	OpDelete              Operation = "delete"
)

// Tier is the resolved permission level of an actor on a specific board.
// It is derived fresh per request, never stored.
type Tier string

const (
	TierOwner        Tier = "owner"
	TierAdmin        Tier = "admin"
	TierEditor       Tier = "editor"
	TierViewer       Tier = "viewer"
	TierPublicViewer Tier = "public-viewer"
	TierDenied       Tier = "denied"
)

// Resolve computes the access tier for actor on board performing op.
// First matching rule wins:
//
//  1. board owner -> TierOwner
//  2. unauthenticated actor, public board, view -> TierPublicViewer
//  3. listed collaborator with role admin or editor -> that tier
//  4. listed collaborator with role viewer -> TierViewer
//  5. public board, view -> TierPublicViewer
//  6. otherwise -> TierDenied
func Resolve(actor *models.Identity, board *models.Board, op Operation) Tier {
	if board == nil {
		return TierDenied
	}

	if actor == nil {
		if board.IsPublic && op == OpView {
			return TierPublicViewer
		}
		return TierDenied
	}

	if actor.UserID == board.UserID {
		return TierOwner
	}

	if role, ok := board.CollaboratorRole(actor.UserID); ok {
		switch role {
		case models.RoleAdmin:
			return TierAdmin
		case models.RoleEditor:
			return TierEditor
		case models.RoleViewer:
			return TierViewer
		}
	}

	if board.IsPublic && op == OpView {
		return TierPublicViewer
	}

	return TierDenied
}

// Allows reports whether a tier permits an operation.
func Allows(tier Tier, op Operation) bool {
	switch op {
	case OpView:
		return tier != TierDenied
	case OpMoveImage, OpEditMetadata:
		return tier == TierOwner || tier == TierAdmin || tier == TierEditor
	case OpManageCollaborators, OpDelete:
		return tier == TierOwner
	}
	return false
}

// Check is the common resolve-then-test combination. It returns
// models.ErrForbidden when the resolved tier does not permit op.
func Check(actor *models.Identity, board *models.Board, op Operation) error {
	if !Allows(Resolve(actor, board, op), op) {
		return models.ErrForbidden
	}
	return nil
}
