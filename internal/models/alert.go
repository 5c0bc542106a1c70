package models

type AlertKind string

const (
	AlertGamesPerDay   AlertKind = "games_per_day"
	AlertMinutesPerDay AlertKind = "minutes_per_day"
	AlertLongGame      AlertKind = "long_game"
)

// Alert is raised by the profile monitor when a play limit is crossed.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	GameID  string    `json:"gameId,omitempty"`
}
