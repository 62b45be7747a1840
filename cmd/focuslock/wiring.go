package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focuslock/internal/config"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
	"github.com/eliteGoblin/focusd/focuslock/internal/scheduler"
	"github.com/eliteGoblin/focusd/focuslock/internal/settings"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// prefsBackend is what both store implementations provide.
type prefsBackend interface {
	domain.PrefsStore
	domain.KickHistory
}

// openStore opens the configured prefs backend.
func openStore(cfg *config.Config, paths *infra.ExecModeConfig) (prefsBackend, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return infra.NewRedisPrefs(cfg.Store.RedisURL, cfg.Store.RedisPrefix)
	default:
		key, err := infra.LoadOrCreateKey(infra.NewFileKeyProvider(paths.DataDir))
		if err != nil {
			return nil, fmt.Errorf("failed to load prefs key: %w", err)
		}
		return infra.NewEncryptedPrefs(paths.DataDir, key)
	}
}

// buildSource selects the foreground event source.
func buildSource(cfg *config.Config, adb *infra.ADBClient, logger *zap.Logger) domain.EventSource {
	switch cfg.Source.Kind {
	case config.SourceNATS:
		return infra.NewNatsEventSource(cfg.Source.NatsURL, cfg.Source.NatsSubject, logger)
	case config.SourceStdin:
		return infra.NewLineEventSource(os.Stdin, logger)
	default:
		return infra.NewADBEventSource(adb, cfg.Source.PollInterval, logger)
	}
}

// buildHomeAction selects how a kick is carried out.
func buildHomeAction(cfg *config.Config, adb *infra.ADBClient, logger *zap.Logger) domain.HomeAction {
	switch cfg.Action.Kind {
	case config.ActionProcess:
		return infra.NewProcessHomeAction(infra.NewProcessManager(), cfg.Action.ProcessNames, logger)
	case config.ActionLog:
		return infra.NewLogHomeAction(logger)
	default:
		return infra.NewADBHomeAction(adb, logger)
	}
}

// buildNotifier returns an ntfy notifier when a topic is configured,
// otherwise a log notifier. Both are delivered off the dispatcher.
func buildNotifier(cfg *config.Config, logger *zap.Logger) *infra.AsyncNotifier {
	var next domain.Notifier = infra.NewLogNotifier(logger)
	if cfg.Notify.NtfyTopic != "" {
		next = infra.NewNtfyNotifier(cfg.Notify.NtfyServer, cfg.Notify.NtfyTopic)
	}
	return infra.NewAsyncNotifier(next, 0, logger)
}

// runService wires every component and blocks until ctx is done.
func runService(ctx context.Context, cfg *config.Config, paths *infra.ExecModeConfig, logger *zap.Logger) error {
	store, err := openStore(cfg, paths)
	if err != nil {
		return fmt.Errorf("failed to open prefs store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	promMetrics := metrics.NewProm("focuslock", reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, logger); err != nil {
				logger.Warn("metrics listener failed", zap.Error(err))
			}
		}()
	}

	notifier := buildNotifier(cfg, logger)
	defer notifier.Close()

	adb := infra.NewADBClient(infra.ADBConfig{
		Path:    cfg.ADB.Path,
		Serial:  cfg.ADB.Serial,
		Timeout: cfg.ADB.Timeout,
	})

	watchdogConfig := usecase.DefaultWatchdogConfig()
	watchdogConfig.SelfAppID = cfg.SelfAppID
	watchdogConfig.NotifyResetAfter = cfg.Notify.ResetAfter

	loop := scheduler.NewLoop(scheduler.DefaultQueueSize)
	watchdog := usecase.NewWatchdog(
		watchdogConfig,
		settings.New(store),
		loop,
		buildHomeAction(cfg, adb, logger),
		logger,
		usecase.WithNotifier(notifier),
		usecase.WithHistory(store),
		usecase.WithMetrics(promMetrics),
		usecase.WithCatalog(policy.NewCatalog()),
	)

	registry := infra.NewFileRegistry(paths.DataDir, infra.NewProcessManager())

	serviceConfig := daemon.DefaultServiceConfig()
	serviceConfig.HeartbeatInterval = cfg.HeartbeatInterval
	serviceConfig.AppVersion = Version

	service := daemon.NewService(
		serviceConfig,
		watchdog,
		loop,
		buildSource(cfg, adb, logger),
		registry,
		logger,
	)
	return service.Run(ctx)
}

// createLogger builds the service logger: JSON with ISO8601 time, written
// to logPath and, in the foreground, stderr.
func createLogger(level zapcore.Level, logPath string, foreground bool) *zap.Logger {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{logPath}
	zc.ErrorOutputPaths = []string{logPath}
	if foreground {
		zc.OutputPaths = append(zc.OutputPaths, "stderr")
		zc.ErrorOutputPaths = append(zc.ErrorOutputPaths, "stderr")
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
