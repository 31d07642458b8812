package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/driftlab/boardroom/internal/models"
)

// Event is the wire envelope for every message on the persistent channel,
// in both directions.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType identifies the payload carried by an Event.
type EventType string

// Client -> server events.
const (
	EventBoardJoin  EventType = "board:join"
	EventBoardLeave EventType = "board:leave"
	EventImageMove  EventType = "image:move"
	EventCursorMove EventType = "cursor:move"
)

// Server -> client events.
const (
	EventUserJoined      EventType = "user:joined"
	EventUserLeft        EventType = "user:left"
	EventImageMoved      EventType = "image:moved"
	EventMoveAccepted    EventType = "move:accepted"
	EventBoardUpdate     EventType = "board:update"
	EventBoardDelete     EventType = "board:delete"
	EventImageAdd        EventType = "image:add"
	EventImageDelete     EventType = "image:delete"
	EventFeedUpdate      EventType = "feed:update"
	EventImageProcessing EventType = "image:processing"
	EventCursorMoved     EventType = "cursor:moved"
	EventError           EventType = "error"
)

// BoardJoinPayload asks to join (or leave) a board room.
type BoardJoinPayload struct {
	BoardID uuid.UUID `json:"boardId"`
}

// ImageMovePayload is a client's position mutation request.
type ImageMovePayload struct {
	BoardID  uuid.UUID            `json:"boardId"`
	ImageID  uuid.UUID            `json:"imageId"`
	Position models.PositionPatch `json:"position"`
}

// CursorMovePayload relays a participant's cursor. Never persisted.
type CursorMovePayload struct {
	BoardID uuid.UUID `json:"boardId"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
}

// CursorMovedPayload is the relayed form, stamped with the mover.
type CursorMovedPayload struct {
	BoardID  uuid.UUID `json:"boardId"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
}

// UserPresencePayload announces a join or leave to the rest of a board room.
type UserPresencePayload struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

// ImageMovedPayload is the canonical state broadcast after an accepted move.
type ImageMovedPayload struct {
	ImageID  uuid.UUID       `json:"imageId"`
	Position models.Position `json:"position"`
	UserID   uuid.UUID       `json:"userId"`
}

// MoveAcceptedPayload confirms an accepted move to the requester only,
// echoing the request's event ID so the client can settle the matching
// optimistic change. Everyone else learns of the move from image:moved.
type MoveAcceptedPayload struct {
	RequestID string          `json:"requestId"`
	ImageID   uuid.UUID       `json:"imageId"`
	Position  models.Position `json:"position"`
}

// BoardUpdatePayload carries metadata changes to a board's current viewers.
type BoardUpdatePayload struct {
	BoardID uuid.UUID       `json:"boardId"`
	Updates json.RawMessage `json:"updates"`
}

// BoardDeletePayload announces that a board is gone.
type BoardDeletePayload struct {
	BoardID uuid.UUID `json:"boardId"`
}

// ImageAddPayload announces a new image on a board.
type ImageAddPayload struct {
	Image *models.Image `json:"image"`
}

// ImageDeletePayload announces an image removal.
type ImageDeletePayload struct {
	ImageID uuid.UUID `json:"imageId"`
	BoardID uuid.UUID `json:"boardId"`
}

// FeedUpdatePayload is the global activity feed entry.
type FeedUpdatePayload struct {
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"userId"`
	Username   string    `json:"username"`
	BoardID    uuid.UUID `json:"boardId"`
	BoardTitle string    `json:"boardTitle"`
}

// ImageProcessingPayload reports combine-job progress to the job owner's
// private room.
type ImageProcessingPayload struct {
	JobID    string  `json:"jobId"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	Error    *string `json:"error,omitempty"`
}

// ErrorPayload is sent only to the connection whose request failed.
// RequestID echoes the ID of the offending event so the client can roll
// back exactly the optimistic change that was rejected.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// NewEvent wraps a payload in an envelope with a fresh ID and timestamp.
func NewEvent(eventType EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// BoardRoom is the room name every viewer of a board belongs to.
func BoardRoom(boardID uuid.UUID) string {
	return "board:" + boardID.String()
}

// UserRoom is the private room holding every live connection of one user.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}
