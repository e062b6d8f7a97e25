package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// StreamURL returns the websocket URL of a session's status stream.
func (c *Client) StreamURL(sessionID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + api.BasePath + "/replays/" + url.PathEscape(sessionID) + "/stream"
}

// Subscribe follows a session over the push stream instead of polling. Each
// frame is an envelope holding a replay status. It returns on the first
// terminal status, on a domain violation, or when the stream breaks; a
// broken stream yields a TransportError and callers may fall back to Poll.
func (c *Client) Subscribe(ctx context.Context, sessionID string, onUpdate func(Observation)) (*api.ReplayStatus, error) {
	u := c.StreamURL(sessionID)
	header := http.Header{}
	if c.authToken != "" {
		header.Set("Authorization", "Bearer "+c.authToken)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close()
		}
		return nil, &TransportError{Method: http.MethodGet, URL: u, Err: err}
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var last *api.ReplayStatus
	for attempt := 1; ; attempt++ {
		_, frame, err := conn.ReadMessage()
		if ctx.Err() != nil {
			return last, ctx.Err()
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = errors.New("stream closed before a terminal status")
			}
			return last, &TransportError{Method: http.MethodGet, URL: u, Err: err}
		}

		var raw json.RawMessage
		if err := Unwrap(http.StatusOK, frame, &raw); err != nil {
			if onUpdate != nil {
				onUpdate(Observation{Status: last, Attempt: attempt, Err: err})
			}
			if IsRetryable(err) {
				continue
			}
			return last, err
		}
		status, err := decodeReplayStatus(raw)
		if err != nil {
			return last, err
		}
		phase, err := Classify(status)
		if err != nil {
			if onUpdate != nil {
				onUpdate(Observation{Status: last, Attempt: attempt, Err: err})
			}
			return status, err
		}
		if regresses(last, status) {
			continue
		}
		last = status
		if onUpdate != nil {
			onUpdate(Observation{Status: status, Phase: phase, Attempt: attempt})
		}
		if phase.Terminal() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return status, nil
		}
	}
}

// regresses reports a frame that would move a running session back to
// pending. Such a frame was read before the transition it follows.
func regresses(last, next *api.ReplayStatus) bool {
	return last != nil && last.Status == api.ReplayStatusRunning && next.Status == api.ReplayStatusPending
}
