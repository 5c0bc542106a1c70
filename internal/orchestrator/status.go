// internal/orchestrator/status.go

package orchestrator

import (
	"sync"

	"chessBlocker/internal/models"
)

// StatusStore holds the last orchestrated run. It keeps no history: every
// Set overwrites the slot and is pushed to current subscribers.
type StatusStore struct {
	mu      sync.RWMutex
	current *models.ActionStatus
	subs    map[chan models.ActionStatus]struct{}
}

func NewStatusStore() *StatusStore {
	return &StatusStore{
		subs: make(map[chan models.ActionStatus]struct{}),
	}
}

// Get returns the last status and whether any run has happened yet.
func (s *StatusStore) Get() (models.ActionStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.ActionStatus{}, false
	}
	return *s.current, true
}

func (s *StatusStore) Set(status models.ActionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &status
	for ch := range s.subs {
		// slow subscribers only ever need the newest value
		select {
		case ch <- status:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving every subsequent status and a
// cancel func that must be called to release it.
func (s *StatusStore) Subscribe() (<-chan models.ActionStatus, func()) {
	ch := make(chan models.ActionStatus, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
