// Package metrics exposes watchdog counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Kick results used as label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics defines counters for the watchdog.
type Metrics interface {
	IncEvents(eventType string)
	IncTimersArmed()
	IncTimersCancelled()
	IncKicks(result string)
	SetTracking(tracking bool)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncEvents(string)    {}
func (Noop) IncTimersArmed()     {}
func (Noop) IncTimersCancelled() {}
func (Noop) IncKicks(string)     {}
func (Noop) SetTracking(bool)    {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	events          *prometheus.CounterVec
	timersArmed     prometheus.Counter
	timersCancelled prometheus.Counter
	kicks           *prometheus.CounterVec
	tracking        prometheus.Gauge
}

// NewProm creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Foreground events received by type",
		}, []string{"type"}),
		timersArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_armed_total",
			Help:      "Kick timers armed",
		}),
		timersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_cancelled_total",
			Help:      "Kick timers cancelled before firing",
		}),
		kicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kicks_total",
			Help:      "Kick attempts by result",
		}, []string{"result"}),
		tracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracking",
			Help:      "1 while a blocked app is being tracked",
		}),
	}
	reg.MustRegister(p.events, p.timersArmed, p.timersCancelled, p.kicks, p.tracking)
	return p
}

func (p *Prom) IncEvents(eventType string) {
	p.events.WithLabelValues(eventType).Inc()
}

func (p *Prom) IncTimersArmed() {
	p.timersArmed.Inc()
}

func (p *Prom) IncTimersCancelled() {
	p.timersCancelled.Inc()
}

func (p *Prom) IncKicks(result string) {
	p.kicks.WithLabelValues(result).Inc()
}

func (p *Prom) SetTracking(tracking bool) {
	if tracking {
		p.tracking.Set(1)
		return
	}
	p.tracking.Set(0)
}

// Handler returns an HTTP handler for /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ensure both implementations satisfy Metrics.
var (
	_ Metrics = Noop{}
	_ Metrics = (*Prom)(nil)
)
