package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/access"
	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/models"
)

// BoardLoader fetches a board so room joins can be authorized.
type BoardLoader interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
}

// MoveApplier is the position reconciler as seen from the transport.
type MoveApplier interface {
	ApplyMove(ctx context.Context, actor *models.Identity, connID string, imageID uuid.UUID, patch models.PositionPatch) (*models.Position, error)
}

// WebSocketHandler authenticates handshakes, upgrades connections and
// dispatches client events to the router and the reconciler.
type WebSocketHandler struct {
	manager     *Manager
	verifier    auth.TokenVerifier
	boards      BoardLoader
	mover       MoveApplier
	upgrader    websocket.Upgrader
	authTimeout time.Duration
}

// NewWebSocketHandler wires the transport. It installs itself as the
// manager's message handler.
func NewWebSocketHandler(m *Manager, verifier auth.TokenVerifier, boards BoardLoader, mover MoveApplier) *WebSocketHandler {
	h := &WebSocketHandler{
		manager:  m,
		verifier: verifier,
		boards:   boards,
		mover:    mover,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  m.config.ReadBufferSize,
			WriteBufferSize: m.config.WriteBufferSize,
			CheckOrigin:     m.config.CheckOrigin,
		},
		authTimeout: 5 * time.Second,
	}
	m.SetMessageHandler(h.handleClientMessage)
	return h
}

// HandleConnection is the GET /ws endpoint. The credential is verified
// before the upgrade completes admission: a connection that fails
// authentication is refused with 401 and never touches room state.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	credential := bearerToken(r)

	ctx, cancel := context.WithTimeout(r.Context(), h.authTimeout)
	defer cancel()

	identity, err := h.verifier.Verify(ctx, credential)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		http.Error(w, "invalid or missing credential", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := h.manager.Admit(identity, ws)
	go conn.writePump()
	go conn.readPump()
}

// HandleStats reports router statistics as JSON.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.manager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode stats")
	}
}

// RegisterRoutes registers the websocket routes on mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

func (h *WebSocketHandler) handleClientMessage(conn *Connection, data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		h.sendError(conn, "bad_request", "malformed event", "")
		return
	}

	ctx, cancel := connContext(conn)
	defer cancel()

	switch event.Type {
	case EventBoardJoin:
		h.handleBoardJoin(ctx, conn, &event)
	case EventBoardLeave:
		h.handleBoardLeave(conn, &event)
	case EventImageMove:
		h.handleImageMove(ctx, conn, &event)
	case EventCursorMove:
		h.handleCursorMove(conn, event.Data)
	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("ignoring unknown client event")
	}
}

func (h *WebSocketHandler) handleBoardJoin(ctx context.Context, conn *Connection, event *Event) {
	var payload BoardJoinPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil || payload.BoardID == uuid.Nil {
		h.sendError(conn, "bad_request", "board id is required", event.ID)
		return
	}

	board, err := h.boards.GetBoard(ctx, payload.BoardID)
	if err != nil {
		h.sendDomainError(conn, event.ID, err)
		return
	}
	if err := access.Check(conn.Identity, board, access.OpView); err != nil {
		h.sendDomainError(conn, event.ID, err)
		return
	}

	h.manager.Join(conn, BoardRoom(payload.BoardID))
}

func (h *WebSocketHandler) handleBoardLeave(conn *Connection, event *Event) {
	var payload BoardJoinPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil || payload.BoardID == uuid.Nil {
		h.sendError(conn, "bad_request", "board id is required", event.ID)
		return
	}
	h.manager.Leave(conn, BoardRoom(payload.BoardID))
}

func (h *WebSocketHandler) handleImageMove(ctx context.Context, conn *Connection, event *Event) {
	var payload ImageMovePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil || payload.ImageID == uuid.Nil {
		h.sendError(conn, "bad_request", "image id is required", event.ID)
		return
	}

	pos, err := h.mover.ApplyMove(ctx, conn.Identity, conn.ID, payload.ImageID, payload.Position)
	if err != nil {
		// Rejections go back to the requester only; other clients never
		// see a move that was not accepted.
		h.sendDomainError(conn, event.ID, err)
		return
	}

	// The canonical broadcast excludes the requester, so acceptance is
	// acknowledged directly with the request ID the client is waiting on.
	ack, err := NewEvent(EventMoveAccepted, MoveAcceptedPayload{
		RequestID: event.ID,
		ImageID:   payload.ImageID,
		Position:  *pos,
	})
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build move:accepted event")
		return
	}
	conn.SendEvent(ack)
}

func (h *WebSocketHandler) handleCursorMove(conn *Connection, data json.RawMessage) {
	var payload CursorMovePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.BoardID == uuid.Nil {
		return
	}

	room := BoardRoom(payload.BoardID)
	if !h.manager.registry.InRoom(conn.ID, room) {
		return
	}

	event, err := NewEvent(EventCursorMoved, CursorMovedPayload{
		BoardID:  payload.BoardID,
		UserID:   conn.Identity.UserID,
		Username: conn.Identity.Username,
		X:        payload.X,
		Y:        payload.Y,
	})
	if err != nil {
		return
	}
	h.manager.BroadcastToRoom(room, event, conn.ID)
}

func (h *WebSocketHandler) sendDomainError(conn *Connection, requestID string, err error) {
	switch {
	case errors.Is(err, models.ErrForbidden):
		h.sendError(conn, "forbidden", "insufficient permissions", requestID)
	case errors.Is(err, models.ErrNotFound):
		h.sendError(conn, "not_found", "resource not found", requestID)
	case errors.Is(err, models.ErrValidation):
		h.sendError(conn, "validation", err.Error(), requestID)
	default:
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("internal error handling client event")
		h.sendError(conn, "internal", "internal error", requestID)
	}
}

func (h *WebSocketHandler) sendError(conn *Connection, code, message, requestID string) {
	event, err := NewEvent(EventError, ErrorPayload{Code: code, Message: message, RequestID: requestID})
	if err != nil {
		return
	}
	conn.SendEvent(event)
}

// connContext derives a context cancelled when the connection shuts down, so
// an in-flight board load or move never outlives its connection.
func connContext(conn *Connection) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
