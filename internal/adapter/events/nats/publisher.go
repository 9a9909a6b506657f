// Package nats publishes user lifecycle events to a NATS server.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	domain "user-settings-api/internal/domain/user"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
	IsConnected() bool
}

// Publisher writes each event as JSON to <prefix>.<type>.
type Publisher struct {
	conn   Conn
	prefix string
	log    *zap.Logger
}

// NewPublisher returns a Publisher using an established connection.
func NewPublisher(conn Conn, prefix string, log *zap.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: prefix, log: log}
}

// Subject returns the subject an event of the given type is published on.
func (p *Publisher) Subject(t domain.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish sends the event. NATS publishes are fire-and-forget, so ctx is only
// checked before the write.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(ev.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.log.Debug("published user event", zap.String("subject", subject), zap.Int64("user_id", ev.UserID))
	return nil
}

// Connect dials the server at url with reconnects enabled.
func Connect(url, name string, log *zap.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
}
