// internal/ui/countdown.go

package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Countdown waits for total, rendering progress, and returns ctx.Err()
// (or context.Canceled when the user aborts) if it does not run to the end.
type Countdown interface {
	Run(ctx context.Context, total time.Duration, label string) error
}

// TeaCountdown draws a live progress bar. Ctrl+C, q or Esc abort it.
type TeaCountdown struct {
	Input    io.Reader
	Output   io.Writer
	Width    int
	Interval time.Duration
}

func (c *TeaCountdown) Run(ctx context.Context, total time.Duration, label string) error {
	model := newCountdownModel(label, total, c.Width, c.Interval, time.Now())

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.Input != nil {
		opts = append(opts, tea.WithInput(c.Input))
	}
	if c.Output != nil {
		opts = append(opts, tea.WithOutput(c.Output))
	}

	final, err := tea.NewProgram(model, opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("countdown: %w", err)
	}
	if m, ok := final.(countdownModel); ok && m.cancelled {
		return context.Canceled
	}
	return nil
}

type tickMsg time.Time

type countdownModel struct {
	label     string
	total     time.Duration
	start     time.Time
	now       time.Time
	interval  time.Duration
	bar       progress.Model
	done      bool
	cancelled bool
}

func newCountdownModel(label string, total time.Duration, width int, interval time.Duration, start time.Time) countdownModel {
	if width <= 0 {
		width = defaultBarWidth
	}
	if interval <= 0 {
		interval = time.Second
	}
	return countdownModel{
		label:    label,
		total:    total,
		start:    start,
		now:      start,
		interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(width), progress.WithoutPercentage()),
	}
}

func (m countdownModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m countdownModel) Init() tea.Cmd {
	return m.tick()
}

func (m countdownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		if m.now.Sub(m.start) >= m.total {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

func (m countdownModel) View() string {
	switch {
	case m.cancelled:
		return WarningStyle.Render("Cancelled.") + "\n"
	case m.done:
		return ""
	}

	elapsed, remaining, percent := split(m.now.Sub(m.start), m.total)
	return fmt.Sprintf("%s %s\n%s %3.0f%%  %s elapsed\n%s\n",
		TitleStyle.Render(m.label),
		SuccessStyle.Render(FormatDuration(remaining)),
		m.bar.ViewAs(percent),
		percent*100,
		FormatDuration(elapsed),
		DescriptionStyle.Render("ctrl+c to cancel"),
	)
}

// LogCountdown is used when there is no terminal: it logs progress every
// Interval (one minute by default).
type LogCountdown struct {
	Logger   *slog.Logger
	Interval time.Duration
	Width    int
}

func (c *LogCountdown) Run(ctx context.Context, total time.Duration, label string) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := c.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	if interval > total {
		interval = total
	}
	width := c.Width
	if width <= 0 {
		width = defaultBarWidth
	}
	bar := progress.New(progress.WithWidth(width), progress.WithoutPercentage())

	start := time.Now()
	deadline := time.NewTimer(total)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info(label, "remaining", FormatDuration(total))
	for {
		select {
		case <-ctx.Done():
			logger.Warn("countdown cancelled", "elapsed", FormatDuration(time.Since(start)))
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			elapsed, remaining, percent := split(time.Since(start), total)
			logger.Info(label,
				"remaining", FormatDuration(remaining),
				"elapsed", FormatDuration(elapsed),
				"progress", fmt.Sprintf("[%s] %3.0f%%", bar.ViewAs(percent), percent*100),
			)
		}
	}
}

func split(elapsed, total time.Duration) (time.Duration, time.Duration, float64) {
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	if total <= 0 {
		return 0, 0, 1
	}
	return elapsed, total - elapsed, float64(elapsed) / float64(total)
}

// FormatDuration renders mm:ss, or h:mm:ss from one hour up.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
