package infrastructure

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	natsevents "user-settings-api/internal/adapter/events/nats"
	"user-settings-api/internal/config"
)

// NewEventPublisher connects to NATS and returns a publisher for user events.
func NewEventPublisher(cfg *config.Config, l *zap.Logger) (*nats.Conn, *natsevents.Publisher, error) {
	nc, err := natsevents.Connect(cfg.Events.NATSURL, cfg.Logger.ServiceName, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.NATSURL, err)
	}

	l.Info("nats connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("subject_prefix", cfg.Events.SubjectPrefix),
	)

	return nc, natsevents.NewPublisher(nc, cfg.Events.SubjectPrefix, l), nil
}
