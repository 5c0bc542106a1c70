package models

import "time"

type ActionState string

const (
	StateRunning ActionState = "running"
	StateSuccess ActionState = "success"
	StateError   ActionState = "error"
)

// ActionStatus is the last orchestrated run as reported by /api/status.
type ActionStatus struct {
	RunID      string      `json:"runId"`
	ActionType Intent      `json:"actionType"`
	State      ActionState `json:"state"`
	Message    string      `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
}
