package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chessBlocker/internal/models"
	"chessBlocker/internal/ntfy"
)

type fakeSink struct {
	name   string
	err    error
	alerts []models.Alert
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Alert(ctx context.Context, alert models.Alert) error {
	f.alerts = append(f.alerts, alert)
	return f.err
}

var gamesAlert = models.Alert{
	Kind:    models.AlertGamesPerDay,
	Title:   "Daily game limit reached",
	Message: "kid played 5 games today (limit 5)",
}

func TestAlerterFansOut(t *testing.T) {
	failing := &fakeSink{name: "broken", err: errors.New("unreachable")}
	ok := &fakeSink{name: "ok"}
	alerter := NewAlerter(slog.New(slog.NewTextHandler(io.Discard, nil)), failing, ok)

	err := alerter.Alert(context.Background(), gamesAlert)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected the failing sink to be reported, got %v", err)
	}
	if len(ok.alerts) != 1 || len(failing.alerts) != 1 {
		t.Errorf("every sink should be tried: ok=%d broken=%d", len(ok.alerts), len(failing.alerts))
	}
	if got := alerter.Sinks(); len(got) != 2 || got[0] != "broken" || got[1] != "ok" {
		t.Errorf("unexpected sink names %v", got)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	if err := sink.Alert(context.Background(), gamesAlert); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "kind=games_per_day") {
		t.Errorf("unexpected log line %q", out)
	}
}

type fakePublisher struct {
	msgs []ntfy.Message
}

func (f *fakePublisher) Publish(ctx context.Context, msg ntfy.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestNtfySink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NtfySink{Client: pub, Topic: "kid-alerts"}

	sink.Alert(context.Background(), gamesAlert)
	sink.Alert(context.Background(), models.Alert{Kind: models.AlertLongGame, Title: "Long game", GameID: "abc"})

	if len(pub.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.msgs))
	}
	first := pub.msgs[0]
	if first.Topic != "kid-alerts" || first.Title != gamesAlert.Title || first.Message != gamesAlert.Message {
		t.Errorf("unexpected message %+v", first)
	}
	if first.Priority != 4 || pub.msgs[1].Priority != 3 {
		t.Errorf("unexpected priorities %d, %d", first.Priority, pub.msgs[1].Priority)
	}
	if len(first.Tags) != 2 || first.Tags[1] != "games_per_day" {
		t.Errorf("unexpected tags %v", first.Tags)
	}
}

func TestTelegramSink(t *testing.T) {
	var (
		mu     sync.Mutex
		chatID string
		text   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Guard","username":"guard_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			chatID = r.PostForm.Get("chat_id")
			text = r.PostForm.Get("text")
			mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sink, err := NewTelegramSink(TelegramConfig{
		Token:    "123:abc",
		ChatID:   42,
		Endpoint: srv.URL + "/bot%s/%s",
	})
	if err != nil {
		t.Fatalf("NewTelegramSink: %v", err)
	}
	if err := sink.Alert(context.Background(), gamesAlert); err != nil {
		t.Fatalf("Alert: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" {
		t.Errorf("unexpected chat id %q", chatID)
	}
	if text != gamesAlert.Title+"\n"+gamesAlert.Message {
		t.Errorf("unexpected text %q", text)
	}
}

func TestTelegramSinkRequiresConfig(t *testing.T) {
	if _, err := NewTelegramSink(TelegramConfig{Token: "x"}); err == nil {
		t.Error("expected an error without chat id")
	}
}
