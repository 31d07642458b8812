package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Image is one placed image record. Position is the only field mutated
// through the realtime path; everything else goes through ordinary CRUD.
type Image struct {
	ID            uuid.UUID       `json:"id"`
	BoardID       uuid.UUID       `json:"boardId"`
	UserID        uuid.UUID       `json:"userId"`
	URL           string          `json:"url"`
	Thumbnail     string          `json:"thumbnail"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Position      Position        `json:"position"`
	Tags          []string        `json:"tags"`
	IsAIGenerated bool            `json:"isAIGenerated"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
