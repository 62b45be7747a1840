// Package daemon runs the focuslock service: it feeds platform events and
// timer fires to the watchdog on one dispatcher goroutine.
package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/scheduler"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// ServiceConfig holds service configuration.
type ServiceConfig struct {
	HeartbeatInterval time.Duration // How often to refresh the registry
	AppVersion        string
}

// DefaultServiceConfig returns default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		HeartbeatInterval: 30 * time.Second,
	}
}

// Service owns the dispatcher. Events from the source, timer fires from the
// loop and heartbeats are all handled in Run's select, so the watchdog
// never sees two callbacks at once.
type Service struct {
	config   ServiceConfig
	watchdog *usecase.Watchdog
	loop     *scheduler.Loop
	source   domain.EventSource
	registry domain.ServiceRegistry
	logger   *zap.Logger
}

// NewService creates a service. registry may be nil.
func NewService(
	config ServiceConfig,
	watchdog *usecase.Watchdog,
	loop *scheduler.Loop,
	source domain.EventSource,
	registry domain.ServiceRegistry,
	logger *zap.Logger,
) *Service {
	return &Service{
		config:   config,
		watchdog: watchdog,
		loop:     loop,
		source:   source,
		registry: registry,
		logger:   logger,
	}
}

// Run starts the service loop.
// This blocks until context is canceled.
func (s *Service) Run(ctx context.Context) error {
	events, err := s.source.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event source %s: %w", s.source.Name(), err)
	}

	if s.registry != nil {
		entry := domain.ServiceEntry{
			PID:        os.Getpid(),
			StartedAt:  time.Now().Unix(),
			Source:     s.source.Name(),
			AppVersion: s.config.AppVersion,
		}
		if err := s.registry.Register(entry); err != nil {
			s.logger.Error("failed to register service", zap.Error(err))
			return err
		}
	}
	defer s.shutdown()

	s.logger.Info("focuslock service started",
		zap.Int("pid", os.Getpid()),
		zap.String("source", s.source.Name()))

	s.watchdog.NotifyActive()

	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("focuslock service stopping")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				// Keep serving timers; a pending kick still fires.
				s.logger.Info("event source closed", zap.String("source", s.source.Name()))
				events = nil
				continue
			}
			s.watchdog.HandleEvent(ev)

		case fn := <-s.loop.C():
			fn()

		case <-heartbeatTicker.C:
			s.heartbeat()
		}
	}
}

func (s *Service) heartbeat() {
	if s.registry == nil {
		return
	}
	state := s.watchdog.State()
	if err := s.registry.UpdateHeartbeat(state.AppID); err != nil {
		s.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

// shutdown cancels the pending kick before the dispatcher goes away.
func (s *Service) shutdown() {
	s.watchdog.Stop()
	s.loop.Close()
	if s.registry != nil {
		if err := s.registry.Clear(); err != nil {
			s.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}
}
