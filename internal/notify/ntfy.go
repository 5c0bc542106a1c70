package notify

import (
	"context"

	"chessBlocker/internal/models"
	"chessBlocker/internal/ntfy"
)

// Publisher is satisfied by *ntfy.Client.
type Publisher interface {
	Publish(ctx context.Context, msg ntfy.Message) error
}

// NtfySink publishes alerts to a dedicated topic.
type NtfySink struct {
	Client Publisher
	Topic  string
}

func (NtfySink) Name() string { return "ntfy" }

func (s NtfySink) Alert(ctx context.Context, alert models.Alert) error {
	return s.Client.Publish(ctx, ntfy.Message{
		Topic:    s.Topic,
		Title:    alert.Title,
		Message:  alert.Message,
		Priority: priority(alert.Kind),
		Tags:     []string{"chess", string(alert.Kind)},
	})
}

// priority maps alert kinds onto ntfy priorities (3 is default, 4 is high).
func priority(kind models.AlertKind) int {
	if kind == models.AlertLongGame {
		return 3
	}
	return 4
}
