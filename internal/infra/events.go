package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// DecodeEvent parses one event payload. A JSON object is decoded as a
// domain.ForegroundEvent; anything else is taken as a bare app identifier.
// Missing type defaults to window-state-changed and missing time to now.
func DecodeEvent(data []byte, now time.Time) (domain.ForegroundEvent, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return domain.ForegroundEvent{}, fmt.Errorf("empty event")
	}

	var ev domain.ForegroundEvent
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
			return domain.ForegroundEvent{}, fmt.Errorf("failed to decode event: %w", err)
		}
	} else {
		ev.AppID = trimmed
	}

	if ev.Type == "" {
		ev.Type = domain.EventWindowStateChanged
	}
	if ev.At.IsZero() {
		ev.At = now
	}
	return ev, nil
}

// LineEventSource reads newline-delimited events from a reader (stdin by
// default). The channel closes at EOF.
type LineEventSource struct {
	r      io.Reader
	now    func() time.Time
	logger *zap.Logger
}

// NewLineEventSource creates a source reading from r.
func NewLineEventSource(r io.Reader, logger *zap.Logger) *LineEventSource {
	return &LineEventSource{r: r, now: time.Now, logger: logger}
}

// Name implements domain.EventSource.
func (s *LineEventSource) Name() string { return "stdin" }

// Events starts reading lines.
func (s *LineEventSource) Events(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	out := make(chan domain.ForegroundEvent)

	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ev, err := DecodeEvent([]byte(line), s.now())
			if err != nil {
				s.logger.Warn("skipping malformed event", zap.String("line", line), zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Error("event input failed", zap.Error(err))
		}
	}()

	return out, nil
}

var _ domain.EventSource = (*LineEventSource)(nil)
