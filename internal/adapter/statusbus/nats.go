// Package statusbus fans replay status transitions out to subscribers
// outside the process.
package statusbus

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/nats-io/nats.go"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes every replay status on <prefix>.<replay_session_id>.
type Publisher struct {
	conn   Conn
	prefix string
}

func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Connect dials NATS and returns a publisher on it. The caller drains the
// returned connection on shutdown.
func Connect(url, prefix string) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("flightdeckd"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewPublisher(nc, prefix), nc, nil
}

// Subject returns the subject a session's statuses are published on.
func (p *Publisher) Subject(sessionID string) string {
	return p.prefix + "." + sessionID
}

// PublishReplayStatus sends status as an envelope, the same frame the
// WebSocket stream carries. Failures are logged and never block replay work.
func (p *Publisher) PublishReplayStatus(status api.ReplayStatus) {
	frame, err := hub.StatusFrame("nats_"+uuid.New().String()[:8], status)
	if err != nil {
		log.Errorf("Failed to encode replay status %s: %v", status.ReplaySessionID, err)
		return
	}
	if err := p.conn.Publish(p.Subject(status.ReplaySessionID), frame.Data); err != nil {
		log.Warnf("Failed to publish replay status %s: %v", status.ReplaySessionID, err)
	}
}

// StatusPublisher is anything that takes replay status transitions.
type StatusPublisher interface {
	PublishReplayStatus(status api.ReplayStatus)
}

// Fanout forwards each status to every publisher in order.
type Fanout []StatusPublisher

func (f Fanout) PublishReplayStatus(status api.ReplayStatus) {
	for _, p := range f {
		p.PublishReplayStatus(status)
	}
}
