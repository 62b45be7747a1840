package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	defaultNtfyServer    = "https://ntfy.sh"
	ntfyRequestTimeout   = 10 * time.Second
	defaultNotifyBacklog = 16
)

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by zap.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.logger.Info("notification",
		zap.String("title", note.Title),
		zap.String("message", note.Message))
	return nil
}

var _ domain.Notifier = (*LogNotifier)(nil)

// NtfyNotifier publishes notifications to an ntfy topic.
type NtfyNotifier struct {
	server string
	topic  string
	client *http.Client
}

type ntfyMessage struct {
	Topic   string   `json:"topic"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
}

// NewNtfyNotifier creates an ntfy publisher.
func NewNtfyNotifier(server, topic string) *NtfyNotifier {
	if server == "" {
		server = defaultNtfyServer
	}
	return &NtfyNotifier{
		server: strings.TrimRight(server, "/"),
		topic:  topic,
		client: &http.Client{Timeout: ntfyRequestTimeout},
	}
}

// Notify posts the notification as JSON to the server root.
func (n *NtfyNotifier) Notify(ctx context.Context, note domain.Notification) error {
	body, err := json.Marshal(ntfyMessage{
		Topic:   n.topic,
		Title:   note.Title,
		Message: note.Message,
		Tags:    []string{"lock"},
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.server+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

var _ domain.Notifier = (*NtfyNotifier)(nil)

// AsyncNotifier hands notifications to a background worker so callers on
// the dispatcher never block on the network. When the backlog is full the
// notification is dropped.
type AsyncNotifier struct {
	next   domain.Notifier
	queue  chan domain.Notification
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewAsyncNotifier starts a worker delivering to next.
func NewAsyncNotifier(next domain.Notifier, backlog int, logger *zap.Logger) *AsyncNotifier {
	if backlog <= 0 {
		backlog = defaultNotifyBacklog
	}
	n := &AsyncNotifier{
		next:   next,
		queue:  make(chan domain.Notification, backlog),
		done:   make(chan struct{}),
		logger: logger,
	}
	go n.run()
	return n
}

// Notify enqueues the notification and returns immediately.
func (n *AsyncNotifier) Notify(_ context.Context, note domain.Notification) error {
	select {
	case <-n.done:
		return fmt.Errorf("notifier closed")
	default:
	}
	select {
	case n.queue <- note:
		return nil
	default:
		n.logger.Warn("notification dropped, backlog full", zap.String("title", note.Title))
		return nil
	}
}

func (n *AsyncNotifier) run() {
	for {
		select {
		case <-n.done:
			return
		case note := <-n.queue:
			ctx, cancel := context.WithTimeout(context.Background(), ntfyRequestTimeout)
			if err := n.next.Notify(ctx, note); err != nil {
				n.logger.Warn("failed to deliver notification",
					zap.String("title", note.Title),
					zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops the worker. Queued notifications are discarded.
func (n *AsyncNotifier) Close() {
	n.once.Do(func() { close(n.done) })
}

var _ domain.Notifier = (*AsyncNotifier)(nil)
