// internal/ntfy/subscriber.go

package ntfy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chessBlocker/internal/intent"
	"chessBlocker/internal/models"
	"chessBlocker/internal/orchestrator"
)

const maxLineBytes = 1 << 20

// Handler processes one message. Errors are logged by the subscriber and
// never stop it.
type Handler func(ctx context.Context, n models.Notification) error

type SubscriberConfig struct {
	Server         string
	Topic          string
	Token          string
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Subscriber keeps a JSON stream open against one topic and hands every
// message to the handler, one at a time.
type Subscriber struct {
	client         *Client
	topic          string
	reconnectDelay time.Duration
	handle         Handler
	logger         *slog.Logger

	mu     sync.Mutex
	lastID string
}

func NewSubscriber(cfg SubscriberConfig, handle Handler) *Subscriber {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Subscriber{
		client:         NewClient(cfg.Server, cfg.Token, 0, nil),
		topic:          cfg.Topic,
		reconnectDelay: cfg.ReconnectDelay,
		handle:         handle,
		logger:         cfg.Logger.With("topic", cfg.Topic),
	}
}

// Run reads the stream until ctx is cancelled, reconnecting after a fixed
// delay on any error or premature end of stream.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			s.logger.Info("subscriber stopped")
			return nil
		}
		s.logger.Warn("subscription interrupted, reconnecting", "err", err, "delay", s.reconnectDelay)

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("subscriber stopped")
			return nil
		case <-timer.C:
		}
	}
}

// LastID is the id of the last message seen, used to resume with since=.
func (s *Subscriber) LastID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

func (s *Subscriber) streamPath() string {
	path := "/" + url.PathEscape(s.topic) + "/json"
	if id := s.LastID(); id != "" {
		path += "?since=" + url.QueryEscape(id)
	}
	return path
}

func (s *Subscriber) stream(ctx context.Context) error {
	resp, err := s.client.do(ctx, http.MethodGet, s.streamPath(), nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	s.logger.Info("subscribed")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var n models.Notification
		if err := json.Unmarshal(line, &n); err != nil {
			s.logger.Warn("skipping malformed line", "err", err)
			continue
		}
		if n.Event != "" && n.Event != models.EventMessage {
			s.logger.Debug("skipping event", "event", n.Event)
			continue
		}

		if n.ID != "" {
			s.mu.Lock()
			s.lastID = n.ID
			s.mu.Unlock()
		}
		if err := s.handle(ctx, n); err != nil {
			s.logger.Error("message handling failed", "id", n.ID, "err", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("stream closed by server")
}

// RunFunc starts an orchestrated run.
type RunFunc func(ctx context.Context, intent models.Intent) (*orchestrator.RunResult, error)

// Dispatcher parses each message and runs recognized intents inline, so
// messages are processed strictly one after another.
func Dispatcher(run RunFunc, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, n models.Notification) error {
		decided := intent.ParseNotification(n)
		if decided == models.IntentUnrecognized {
			logger.Info("notification ignored", "id", n.ID, "message", n.Message)
			return nil
		}

		logger.Info("notification accepted", "id", n.ID, "action", decided.String())
		result, err := run(ctx, decided)
		if err != nil {
			return fmt.Errorf("%s: %w", decided.Progressive(), err)
		}
		logger.Info("notification handled", "id", n.ID, "run_id", result.RunID)
		return nil
	}
}
