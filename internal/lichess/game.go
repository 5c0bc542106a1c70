package lichess

import (
	"strings"
	"time"
)

// Game is the subset of an exported game the monitor needs.
type Game struct {
	ID         string  `json:"id"`
	Rated      bool    `json:"rated"`
	Speed      string  `json:"speed"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"`
	LastMoveAt int64   `json:"lastMoveAt"`
	Players    Players `json:"players"`
	Moves      string  `json:"moves"`
	Clock      *Clock  `json:"clock,omitempty"`
}

type Players struct {
	White Player `json:"white"`
	Black Player `json:"black"`
}

type Player struct {
	User *User `json:"user,omitempty"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clock values are in seconds.
type Clock struct {
	Initial   int `json:"initial"`
	Increment int `json:"increment"`
}

func (g Game) Created() time.Time {
	return time.UnixMilli(g.CreatedAt)
}

// MoveCount is the number of plies in the game.
func (g Game) MoveCount() int {
	return len(strings.Fields(g.Moves))
}

// PlayerMoves counts the moves made by username. White makes the odd plies.
// It returns 0 when username did not play the game.
func (g Game) PlayerMoves(username string) int {
	plies := g.MoveCount()
	switch {
	case g.Players.White.is(username):
		return (plies + 1) / 2
	case g.Players.Black.is(username):
		return plies / 2
	default:
		return 0
	}
}

func (p Player) is(username string) bool {
	if p.User == nil {
		return false
	}
	return strings.EqualFold(p.User.ID, username) || strings.EqualFold(p.User.Name, username)
}

// EstimatePlayTime estimates how long username spent on the game:
// moves*perMove + moves*increment, capped at the clock's base time.
// Games without a clock are not capped.
func EstimatePlayTime(g Game, username string, perMove time.Duration) time.Duration {
	moves := time.Duration(g.PlayerMoves(username))
	if g.Clock == nil {
		return moves * perMove
	}

	estimate := moves*perMove + moves*time.Duration(g.Clock.Increment)*time.Second
	base := time.Duration(g.Clock.Initial) * time.Second
	return min(estimate, base)
}
