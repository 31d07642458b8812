package models

import (
	"time"

	"github.com/google/uuid"
)

// CollaboratorRole is the role a user was granted on someone else's board.
type CollaboratorRole string

const (
	RoleViewer CollaboratorRole = "viewer"
	RoleEditor CollaboratorRole = "editor"
	RoleAdmin  CollaboratorRole = "admin"
)

// Valid reports whether the role is one of the recognized values.
func (r CollaboratorRole) Valid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// Collaborator is one entry in a board's access list. The owner is implicitly
// full-admin and is never listed here.
type Collaborator struct {
	UserID  uuid.UUID        `json:"userId"`
	Role    CollaboratorRole `json:"role"`
	AddedAt time.Time        `json:"addedAt"`
}

// Board is a shared 2-D canvas of images.
type Board struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"userId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	IsPublic      bool           `json:"isPublic"`
	Background    string         `json:"background"`
	Collaborators []Collaborator `json:"collaborators"`
	Tags          []string       `json:"tags"`
	FolderID      *uuid.UUID     `json:"folderId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CollaboratorRole returns the role granted to userID, if any.
func (b *Board) CollaboratorRole(userID uuid.UUID) (CollaboratorRole, bool) {
	for _, c := range b.Collaborators {
		if c.UserID == userID {
			return c.Role, true
		}
	}
	return "", false
}
