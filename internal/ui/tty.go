// internal/ui/tty.go

package ui

import (
	"log/slog"
	"os"

	"github.com/moby/term"
)

const (
	minBarWidth     = 20
	maxBarWidth     = 60
	defaultBarWidth = 40
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	_, isTerm := term.GetFdInfo(f)
	return isTerm
}

// BarWidth sizes the progress bar to the terminal, within limits.
func BarWidth(f *os.File) int {
	fd, isTerm := term.GetFdInfo(f)
	if !isTerm {
		return defaultBarWidth
	}
	ws, err := term.GetWinsize(fd)
	if err != nil || ws.Width == 0 {
		return defaultBarWidth
	}
	width := int(ws.Width) - 30
	switch {
	case width < minBarWidth:
		return minBarWidth
	case width > maxBarWidth:
		return maxBarWidth
	}
	return width
}

// NewCountdown picks the interactive progress bar when both stdin and
// stdout are terminals, and periodic log lines otherwise.
func NewCountdown(stdin, stdout *os.File, logger *slog.Logger) Countdown {
	if IsTerminal(stdin) && IsTerminal(stdout) {
		return &TeaCountdown{
			Input:  stdin,
			Output: stdout,
			Width:  BarWidth(stdout),
		}
	}
	return &LogCountdown{Logger: logger, Width: defaultBarWidth}
}
