package models

// Notification is a single ntfy message, as delivered by the JSON stream
// or posted to the webhook.
type Notification struct {
	ID       string   `json:"id,omitempty"`
	Time     int64    `json:"time,omitempty"`
	Event    string   `json:"event,omitempty"`
	Topic    string   `json:"topic,omitempty"`
	Message  string   `json:"message"`
	Title    string   `json:"title,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

const (
	EventMessage   = "message"
	EventKeepalive = "keepalive"
	EventOpen      = "open"
)
