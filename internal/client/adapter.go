package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

// State is the adapter's connection state for the board it views.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Adapter connects one board view to the gateway: it dials the websocket,
// joins the board room, seeds the mirror from the REST snapshot (the router
// holds no history) and keeps the mirror synchronized while relaying
// optimistic moves.
type Adapter struct {
	apiURL string
	wsURL  string
	token  string
	dialer *websocket.Dialer
	httpc  *http.Client
	mirror *Mirror

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	boardID uuid.UUID

	writeMu sync.Mutex

	// OnEvent, if set, observes every incoming event after the adapter has
	// processed it. Called from the read loop.
	OnEvent func(*realtime.Event)
}

// NewAdapter creates an adapter for one authenticated user.
func NewAdapter(apiURL, wsURL, token string) *Adapter {
	return &Adapter{
		apiURL: apiURL,
		wsURL:  wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
		httpc:  http.DefaultClient,
		mirror: NewMirror(),
	}
}

// Mirror exposes the local position state.
func (a *Adapter) Mirror() *Mirror {
	return a.mirror
}

// State reports the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Join dials the gateway, enters the board room and loads the board
// snapshot. It is an error to join while already connected.
func (a *Adapter) Join(ctx context.Context, boardID uuid.UUID) error {
	a.mu.Lock()
	if a.state != StateDisconnected {
		a.mu.Unlock()
		return fmt.Errorf("already connected (state %s)", a.state)
	}
	a.state = StateConnecting
	a.boardID = boardID
	a.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.token)

	conn, resp, err := a.dialer.DialContext(ctx, a.wsURL, header)
	if err != nil {
		a.setState(StateDisconnected)
		if resp != nil {
			return fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial gateway: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	if err := a.send(realtime.EventBoardJoin, realtime.BoardJoinPayload{BoardID: boardID}); err != nil {
		a.teardown()
		return fmt.Errorf("join board: %w", err)
	}

	if err := a.loadSnapshot(ctx, boardID); err != nil {
		a.teardown()
		return err
	}

	a.setState(StateJoined)
	go a.readLoop(conn)
	return nil
}

// Leave exits the board room and disconnects. Safe to call in any state.
func (a *Adapter) Leave() {
	a.mu.Lock()
	conn := a.conn
	boardID := a.boardID
	joined := a.state == StateJoined
	a.mu.Unlock()

	if conn != nil && joined {
		// Best effort; the server also cleans up on close.
		if err := a.send(realtime.EventBoardLeave, realtime.BoardJoinPayload{BoardID: boardID}); err != nil {
			log.Debug().Err(err).Msg("board:leave not sent")
		}
	}
	a.teardown()
}

// MoveImage applies a drag locally and sends it to the server. The local
// change sticks unless the server rejects this specific request, in which
// case the read loop rolls the touched fields back.
func (a *Adapter) MoveImage(imageID uuid.UUID, patch models.PositionPatch) error {
	a.mu.Lock()
	boardID := a.boardID
	joined := a.state == StateJoined
	a.mu.Unlock()
	if !joined {
		return fmt.Errorf("not joined to a board")
	}
	if patch.IsEmpty() {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	event, err := realtime.NewEvent(realtime.EventImageMove, realtime.ImageMovePayload{
		BoardID:  boardID,
		ImageID:  imageID,
		Position: patch,
	})
	if err != nil {
		return fmt.Errorf("encode move: %w", err)
	}

	if !a.mirror.Apply(event.ID, imageID, patch) {
		return fmt.Errorf("unknown image %s", imageID)
	}

	if err := a.sendEvent(event); err != nil {
		a.mirror.Rollback(event.ID)
		return fmt.Errorf("send move: %w", err)
	}
	return nil
}

// loadSnapshot fetches the board's full image list over REST.
func (a *Adapter) loadSnapshot(ctx context.Context, boardID uuid.UUID) error {
	url := a.apiURL + "/api/boards/" + boardID.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("fetch board snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch board snapshot: status %d", resp.StatusCode)
	}

	var detail struct {
		Board  *models.Board   `json:"board"`
		Images []*models.Image `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return fmt.Errorf("decode board snapshot: %w", err)
	}
	a.mirror.Seed(detail.Images)
	return nil
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		var event realtime.Event
		if err := conn.ReadJSON(&event); err != nil {
			a.teardown()
			return
		}
		a.handleEvent(&event)
	}
}

func (a *Adapter) handleEvent(event *realtime.Event) {
	switch event.Type {
	case realtime.EventMoveAccepted:
		var payload realtime.MoveAcceptedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Debug().Err(err).Msg("bad move:accepted payload")
			break
		}
		a.mirror.Confirm(payload.RequestID)
		a.mirror.ApplyRemote(payload.ImageID, payload.Position)

	case realtime.EventImageMoved:
		var payload realtime.ImageMovedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Debug().Err(err).Msg("bad image:moved payload")
			break
		}
		a.mirror.ApplyRemote(payload.ImageID, payload.Position)

	case realtime.EventImageAdd:
		var payload realtime.ImageAddPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.Image == nil {
			break
		}
		a.mirror.Seed([]*models.Image{payload.Image})

	case realtime.EventImageDelete:
		var payload realtime.ImageDeletePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			break
		}
		a.mirror.Remove(payload.ImageID)

	case realtime.EventBoardDelete:
		var payload realtime.BoardDeletePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			break
		}
		a.mu.Lock()
		mine := payload.BoardID == a.boardID
		a.mu.Unlock()
		if mine {
			a.teardown()
		}

	case realtime.EventError:
		var payload realtime.ErrorPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			break
		}
		if payload.RequestID != "" {
			a.mirror.Rollback(payload.RequestID)
		}
		log.Warn().Str("code", payload.Code).Str("message", payload.Message).Msg("server rejected request")
	}

	if a.OnEvent != nil {
		a.OnEvent(event)
	}
}

func (a *Adapter) send(eventType realtime.EventType, payload any) error {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return a.sendEvent(event)
}

func (a *Adapter) sendEvent(event *realtime.Event) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("connection closed")
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteJSON(event)
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Adapter) teardown() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.state = StateDisconnected
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
