package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/models"
)

// Connection is one live, authenticated channel to a client. A user with
// several tabs open holds several Connections.
type Connection struct {
	ID       string
	Identity *models.Identity

	// Conn is nil for connections constructed in tests; only the pumps
	// touch it.
	Conn *websocket.Conn

	// Send is the outbound queue drained by writePump. It is never closed;
	// shutdown is signalled through done so concurrent broadcasters cannot
	// panic on a closed channel.
	Send chan []byte

	manager     *Manager
	ConnectedAt time.Time

	lastPing  atomic.Int64 // unix nanos of the last successful heartbeat
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id string, identity *models.Identity, conn *websocket.Conn, m *Manager) *Connection {
	c := &Connection{
		ID:          id,
		Identity:    identity,
		Conn:        conn,
		Send:        make(chan []byte, m.config.SendBuffer),
		manager:     m,
		ConnectedAt: m.clock.Now(),
		done:        make(chan struct{}),
	}
	c.touch()
	return c
}

// touch records a heartbeat.
func (c *Connection) touch() {
	c.lastPing.Store(c.manager.clock.Now().UnixNano())
}

// LastPing returns the time of the last successful heartbeat.
func (c *Connection) LastPing() time.Time {
	return time.Unix(0, c.lastPing.Load())
}

// close signals the pumps to stop. Idempotent.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// Done is closed when the connection is shutting down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SendEvent queues an event for this connection only. Used for error replies
// and other single-recipient messages; room traffic goes through the router.
func (c *Connection) SendEvent(event *Event) {
	data, err := marshalEvent(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event")
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("send buffer full, dropping direct event")
	}
}

// writePump drains Send onto the wire and keeps the heartbeat going.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("ping failed")
				return
			}
		}
	}
}

// readPump reads client events off the wire and hands them to the manager's
// message handler. When it returns the connection is deregistered, which
// fires a leave notification for every room it occupied.
func (c *Connection) readPump() {
	defer func() {
		c.manager.Disconnect(c)
		c.close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.touch()
		c.manager.dispatchClientMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
