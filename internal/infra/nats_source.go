package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	DefaultNatsSubject = "focuslock.foreground"
	natsBufferSize     = 64
)

// NatsEventSource receives foreground events published by a device bridge
// on a NATS subject.
type NatsEventSource struct {
	url     string
	subject string
	logger  *zap.Logger
}

// NewNatsEventSource creates a NATS-backed event source.
func NewNatsEventSource(url, subject string, logger *zap.Logger) *NatsEventSource {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultNatsSubject
	}
	return &NatsEventSource{url: url, subject: subject, logger: logger}
}

// Name implements domain.EventSource.
func (s *NatsEventSource) Name() string { return "nats" }

// Events connects and subscribes. The connection is closed when ctx is done.
func (s *NatsEventSource) Events(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	nc, err := nats.Connect(s.url,
		nats.Name("focuslock"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn("disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	msgs := make(chan *nats.Msg, natsBufferSize)
	sub, err := nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.logger.Info("subscribed to foreground events",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("subject", s.subject))

	out := make(chan domain.ForegroundEvent)
	go func() {
		defer close(out)
		defer nc.Close()
		defer func() { _ = sub.Unsubscribe() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				ev, err := DecodeEvent(msg.Data, time.Now())
				if err != nil {
					s.logger.Warn("skipping malformed event",
						zap.String("subject", msg.Subject),
						zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ domain.EventSource = (*NatsEventSource)(nil)
