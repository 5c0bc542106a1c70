package orchestrator

import (
	"testing"
	"time"

	"chessBlocker/internal/models"
)

func TestStatusStoreEmpty(t *testing.T) {
	store := NewStatusStore()
	if _, ok := store.Get(); ok {
		t.Error("expected no status before the first run")
	}
}

func TestStatusStoreOverwrites(t *testing.T) {
	store := NewStatusStore()
	store.Set(models.ActionStatus{RunID: "a", State: models.StateRunning})
	store.Set(models.ActionStatus{RunID: "a", State: models.StateSuccess})

	status, ok := store.Get()
	if !ok {
		t.Fatal("expected a status")
	}
	if status.State != models.StateSuccess {
		t.Errorf("expected last writer to win, got %s", status.State)
	}
}

func TestStatusStoreSubscribe(t *testing.T) {
	store := NewStatusStore()
	updates, cancel := store.Subscribe()

	store.Set(models.ActionStatus{RunID: "1", State: models.StateRunning})
	store.Set(models.ActionStatus{RunID: "1", State: models.StateError})

	select {
	case got := <-updates:
		if got.State != models.StateError {
			t.Errorf("slow subscriber should see the newest status, got %s", got.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	cancel()
	if _, open := <-updates; open {
		t.Error("expected channel closed after cancel")
	}

	// no panic publishing after the subscriber left
	store.Set(models.ActionStatus{RunID: "2"})
}
