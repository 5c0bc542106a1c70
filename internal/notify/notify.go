// Package notify delivers profile monitor alerts to every configured sink.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chessBlocker/internal/models"
)

// Sink delivers one alert to one destination.
type Sink interface {
	Name() string
	Alert(ctx context.Context, alert models.Alert) error
}

// Alerter fans an alert out to its sinks. A failing sink does not keep the
// others from being tried.
type Alerter struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewAlerter(logger *slog.Logger, sinks ...Sink) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{sinks: sinks, logger: logger}
}

func (a *Alerter) Sinks() []string {
	names := make([]string, len(a.sinks))
	for i, s := range a.sinks {
		names[i] = s.Name()
	}
	return names
}

func (a *Alerter) Alert(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, sink := range a.sinks {
		if err := sink.Alert(ctx, alert); err != nil {
			a.logger.Error("alert delivery failed", "sink", sink.Name(), "kind", alert.Kind, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Alert(ctx context.Context, alert models.Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, alert.Title, "kind", alert.Kind, "message", alert.Message, "game_id", alert.GameID)
	return nil
}
