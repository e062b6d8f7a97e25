// Package hub fans replay status updates out to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
)

// Frame is one message queued for a subscriber. Final frames are followed by
// a normal close.
type Frame struct {
	Data  []byte
	Final bool
}

// Connection represents a single WebSocket subscriber.
type Connection struct {
	ID              string
	ReplaySessionID string
	Conn            *websocket.Conn
	Send            chan Frame
	mu              sync.Mutex
}

// Hub manages all subscriber connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// sessions maps replay_session_id to set of connection IDs
	sessions map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	// broadcast carries session fan-out and per-connection frames in one
	// queue so a subscriber sees them in the order they were queued.
	broadcast chan *sessionMessage
	done      chan struct{}

	mu sync.RWMutex
}

type sessionMessage struct {
	ReplaySessionID string
	Frame           Frame
	// conn, when set, limits delivery to one connection.
	conn *Connection
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *sessionMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				close(conn.Send)
				delete(h.connections, id)
			}
			h.sessions = make(map[string]map[string]bool)
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.sessions[conn.ReplaySessionID] == nil {
				h.sessions[conn.ReplaySessionID] = make(map[string]bool)
			}
			h.sessions[conn.ReplaySessionID][conn.ID] = true
			h.mu.Unlock()
			log.Debugf("subscriber registered: %s (replay session: %s)", conn.ID, conn.ReplaySessionID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if h.sessions[conn.ReplaySessionID] != nil {
					delete(h.sessions[conn.ReplaySessionID], conn.ID)
					if len(h.sessions[conn.ReplaySessionID]) == 0 {
						delete(h.sessions, conn.ReplaySessionID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Debugf("subscriber unregistered: %s", conn.ID)

		case msg := <-h.broadcast:
			if msg.conn != nil {
				h.deliverDirect(msg.conn, msg.Frame)
				continue
			}
			h.mu.RLock()
			for connID := range h.sessions[msg.ReplaySessionID] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.Frame:
				default:
					// Buffer full, drop the subscriber
					log.Warnf("subscriber %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) deliverDirect(conn *Connection, frame Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	select {
	case conn.Send <- frame:
	default:
		log.Warnf("subscriber %s: %v", conn.ID, ErrBufferFull)
	}
}

// NewConnection creates a connection subscribed to one replay session.
func (h *Hub) NewConnection(ws *websocket.Conn, replaySessionID string) *Connection {
	return &Connection{
		ID:              uuid.New().String(),
		ReplaySessionID: replaySessionID,
		Conn:            ws,
		Send:            make(chan Frame, 16),
	}
}

// Register registers a connection with the hub. It returns false once the
// hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues a frame for every subscriber of a replay session. It never
// blocks the caller; frames are dropped when the hub is saturated.
func (h *Hub) Publish(replaySessionID string, frame Frame) {
	select {
	case h.broadcast <- &sessionMessage{ReplaySessionID: replaySessionID, Frame: frame}:
	default:
		log.Warnf("hub saturated, dropping update for replay session %s", replaySessionID)
	}
}

// PublishReplayStatus pushes a status envelope to the session's subscribers.
func (h *Hub) PublishReplayStatus(status api.ReplayStatus) {
	frame, err := StatusFrame("push_"+uuid.New().String()[:8], status)
	if err != nil {
		log.Errorf("failed to encode replay status frame: %v", err)
		return
	}
	h.Publish(status.ReplaySessionID, frame)
}

// StatusFrame wraps a status in a success envelope frame.
func StatusFrame(requestID string, status api.ReplayStatus) (Frame, error) {
	env, err := api.Success(requestID, status)
	if err != nil {
		return Frame{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data, Final: domain.ReplayStatus(status.Status).Terminal()}, nil
}

// ErrorFrame wraps an error body in a final error envelope frame.
func ErrorFrame(requestID string, body api.ErrorBody) (Frame, error) {
	data, err := json.Marshal(api.Failure(requestID, body))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data, Final: true}, nil
}

// SendToConnection queues a frame on one registered connection, behind any
// session updates already queued. Frames for connections that are already
// gone are dropped.
func (h *Hub) SendToConnection(conn *Connection, frame Frame) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- &sessionMessage{ReplaySessionID: conn.ReplaySessionID, Frame: frame, conn: conn}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasSubscribers checks if a replay session has any active subscribers.
func (h *Hub) HasSubscribers(replaySessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	connIDs, ok := h.sessions[replaySessionID]
	return ok && len(connIDs) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrHubStopped is returned once the hub's Run loop has exited.
var ErrHubStopped = errors.New("hub stopped")

// ErrBufferFull is reported when a subscriber's send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
