package v1

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/flightdeck/internal/hub"
)

const maxClientMessageSize = 4096

// StreamReplay upgrades to a WebSocket that carries one ReplayStatus envelope
// per transition, starting with the current status. The server closes the
// stream after the terminal status.
func (h *Handler) StreamReplay(c echo.Context) error {
	sessionID := c.Param("replay_session_id")
	if _, err := h.service.GetReplay(c.Request().Context(), sessionID); err != nil {
		return fail(c, err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warnf("failed to upgrade replay stream: %v", err)
		return nil
	}
	ws.SetReadLimit(maxClientMessageSize)

	conn := h.hub.NewConnection(ws, sessionID)
	if !h.hub.Register(conn) {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = ws.Close()
		return nil
	}

	// Read the status after registering so no transition falls in between.
	reqID := requestID(c)
	status, err := h.service.GetReplay(c.Request().Context(), sessionID)
	var frame hub.Frame
	if err != nil {
		frame, err = hub.ErrorFrame(reqID, errorBody(err))
	} else {
		frame, err = hub.StatusFrame(reqID, *status)
	}
	if err == nil {
		err = h.hub.SendToConnection(conn, frame)
	}
	if err != nil {
		log.Warnf("failed to send initial replay status for %s: %v", sessionID, err)
	}

	go h.writePump(conn)
	go h.readPump(conn)
	return nil
}

// readPump drains client frames so control messages are processed.
func (h *Handler) readPump(conn *hub.Connection) {
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(h.config.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.WSReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warnf("replay stream read error: %v", err)
			}
			return
		}
	}
}

// writePump forwards hub frames to the socket and keeps it alive with pings.
func (h *Handler) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(h.config.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, open := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(h.config.WSWriteTimeout))
			if !open {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				log.Warnf("failed to write replay stream frame: %v", err)
				return
			}
			if frame.Final {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished"))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
