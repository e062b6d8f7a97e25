package client

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// CreateReplay submits a fork-and-replay request. It is never retried: a
// lost response could otherwise start a second session.
func (c *Client) CreateReplay(ctx context.Context, req api.ReplayRequest) (*api.CreateReplayResponse, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/replays", req, &raw); err != nil {
		return nil, err
	}
	if err := requireKeys(raw, "replay_session_id", "status"); err != nil {
		return nil, err
	}
	var resp api.CreateReplayResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Reason: "unexpected replay shape", Err: err}
	}
	if resp.ReplaySessionID == "" {
		return nil, &ProtocolError{Reason: "replay_session_id is empty"}
	}
	return &resp, nil
}

// GetReplayStatus fetches the current state of a replay session.
func (c *Client) GetReplayStatus(ctx context.Context, sessionID string) (*api.ReplayStatus, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/replays/"+url.PathEscape(sessionID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeReplayStatus(raw)
}

// CancelReplay asks the server to stop a pending or running session.
func (c *Client) CancelReplay(ctx context.Context, sessionID string) (*api.CancelReplayResponse, error) {
	var resp api.CancelReplayResponse
	if err := c.post(ctx, "/replays/"+url.PathEscape(sessionID)+"/cancel", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplayAndWait creates a replay and polls it to a terminal state. A failed
// creation is returned as is; polling errors follow Poller.Poll.
func (c *Client) ReplayAndWait(ctx context.Context, req api.ReplayRequest, poller *Poller, onUpdate func(Observation)) (*api.ReplayStatus, error) {
	created, err := c.CreateReplay(ctx, req)
	if err != nil {
		return nil, err
	}
	if poller == nil {
		poller = NewPoller(c)
	}
	return poller.Poll(ctx, created.ReplaySessionID, onUpdate)
}

func decodeReplayStatus(raw json.RawMessage) (*api.ReplayStatus, error) {
	if err := requireKeys(raw, "replay_session_id", "status"); err != nil {
		return nil, err
	}
	var status api.ReplayStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, &ProtocolError{Reason: "unexpected replay status shape", Err: err}
	}
	if status.ReasonCodes == nil {
		status.ReasonCodes = []string{}
	}
	return &status, nil
}
