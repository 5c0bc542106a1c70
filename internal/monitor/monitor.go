package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chessBlocker/internal/lichess"
	"chessBlocker/internal/models"
)

// GameSource lists a user's games created since a point in time.
type GameSource interface {
	GamesSince(ctx context.Context, username string, since time.Time) ([]lichess.Game, error)
}

// Alerter delivers limit alerts.
type Alerter interface {
	Alert(ctx context.Context, alert models.Alert) error
}

// Limits are daily thresholds. A zero value disables that limit.
type Limits struct {
	MaxGamesPerDay int
	MaxPlayTime    time.Duration
	LongGame       time.Duration
}

type Options struct {
	Username string
	Interval time.Duration
	PerMove  time.Duration
	Limits   Limits
	Games    GameSource
	Alerter  Alerter
	Logger   *slog.Logger
	Now      func() time.Time
}

// Snapshot is the monitor's view of the current day.
type Snapshot struct {
	Day        time.Time     `json:"day"`
	GameCount  int           `json:"gameCount"`
	PlayTime   time.Duration `json:"playTime"`
	LastGameID string        `json:"lastGameId"`
	CheckedAt  time.Time     `json:"checkedAt"`
}

// ProfileMonitor polls a Lichess account and raises an alert the first time
// each daily limit is crossed. An alert re-arms once its value drops back
// under the threshold, which in practice happens at the midnight reset.
type ProfileMonitor struct {
	opts Options

	mu           sync.Mutex
	snapshot     Snapshot
	gamesAlerted bool
	timeAlerted  bool
	longAlerted  map[string]struct{}
	resetTimer   *time.Timer
	stopped      bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(opts Options) *ProfileMonitor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.PerMove <= 0 {
		opts.PerMove = 5 * time.Second
	}
	opts.Logger = opts.Logger.With("username", opts.Username)

	return &ProfileMonitor{
		opts:        opts,
		snapshot:    Snapshot{Day: startOfDay(opts.Now())},
		longAlerted: make(map[string]struct{}),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the polling loop and the midnight reset timer.
func (m *ProfileMonitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.scheduleReset()
		go m.run(ctx)
	})
}

// Stop ends the polling loop and waits for it to exit.
func (m *ProfileMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		if m.resetTimer != nil {
			m.resetTimer.Stop()
		}
		m.mu.Unlock()
		close(m.stopCh)
	})

	started := true
	m.startOnce.Do(func() { started = false })
	if started {
		<-m.doneCh
	}
}

// Done is closed when the polling loop exits.
func (m *ProfileMonitor) Done() <-chan struct{} {
	return m.doneCh
}

func (m *ProfileMonitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *ProfileMonitor) run(ctx context.Context) {
	defer close(m.doneCh)

	m.poll(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.poll(ctx)
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

func (m *ProfileMonitor) poll(ctx context.Context) {
	if err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
		m.opts.Logger.Warn("profile check failed", "err", err)
	}
}

// RunOnce fetches today's games, updates the snapshot and sends any alerts
// that became due.
func (m *ProfileMonitor) RunOnce(ctx context.Context) error {
	now := m.opts.Now()
	day := startOfDay(now)

	games, err := m.opts.Games.GamesSince(ctx, m.opts.Username, day)
	if err != nil {
		return err
	}

	var (
		playTime time.Duration
		long     []lichess.Game
	)
	for _, g := range games {
		estimate := lichess.EstimatePlayTime(g, m.opts.Username, m.opts.PerMove)
		playTime += estimate
		if m.opts.Limits.LongGame > 0 && estimate >= m.opts.Limits.LongGame {
			long = append(long, g)
		}
	}

	m.mu.Lock()
	if !day.Equal(m.snapshot.Day) {
		m.resetLocked(day)
	}

	previous := m.snapshot
	m.snapshot = Snapshot{
		Day:        day,
		GameCount:  len(games),
		PlayTime:   playTime,
		LastGameID: previous.LastGameID,
		CheckedAt:  now,
	}
	if len(games) > 0 {
		m.snapshot.LastGameID = games[0].ID
	}
	alerts := m.evaluateLocked(long)
	current := m.snapshot
	m.mu.Unlock()

	if current.LastGameID != previous.LastGameID {
		m.opts.Logger.Info("new games played", "games_today", current.GameCount,
			"play_time", current.PlayTime.Round(time.Second), "last_game", current.LastGameID)
	}

	var errs []error
	for _, alert := range alerts {
		m.opts.Logger.Warn("limit reached", "kind", alert.Kind, "message", alert.Message)
		if m.opts.Alerter == nil {
			continue
		}
		if err := m.opts.Alerter.Alert(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("send %s alert: %w", alert.Kind, err))
		}
	}
	return errors.Join(errs...)
}

func (m *ProfileMonitor) evaluateLocked(long []lichess.Game) []models.Alert {
	var alerts []models.Alert
	limits := m.opts.Limits
	s := m.snapshot

	if limits.MaxGamesPerDay > 0 {
		if s.GameCount >= limits.MaxGamesPerDay {
			if !m.gamesAlerted {
				m.gamesAlerted = true
				alerts = append(alerts, models.Alert{
					Kind:    models.AlertGamesPerDay,
					Title:   "Daily game limit reached",
					Message: fmt.Sprintf("%s played %d games today (limit %d)", m.opts.Username, s.GameCount, limits.MaxGamesPerDay),
				})
			}
		} else {
			m.gamesAlerted = false
		}
	}

	if limits.MaxPlayTime > 0 {
		if s.PlayTime >= limits.MaxPlayTime {
			if !m.timeAlerted {
				m.timeAlerted = true
				alerts = append(alerts, models.Alert{
					Kind:  models.AlertMinutesPerDay,
					Title: "Daily play time limit reached",
					Message: fmt.Sprintf("%s played about %d minutes today (limit %d)",
						m.opts.Username, int(s.PlayTime.Minutes()), int(limits.MaxPlayTime.Minutes())),
				})
			}
		} else {
			m.timeAlerted = false
		}
	}

	for _, g := range long {
		if _, seen := m.longAlerted[g.ID]; seen {
			continue
		}
		m.longAlerted[g.ID] = struct{}{}
		estimate := lichess.EstimatePlayTime(g, m.opts.Username, m.opts.PerMove)
		alerts = append(alerts, models.Alert{
			Kind:    models.AlertLongGame,
			Title:   "Long game",
			Message: fmt.Sprintf("%s spent about %d minutes on game %s", m.opts.Username, int(estimate.Minutes()), g.ID),
			GameID:  g.ID,
		})
	}
	return alerts
}

func (m *ProfileMonitor) resetLocked(day time.Time) {
	m.snapshot = Snapshot{Day: day}
	m.gamesAlerted = false
	m.timeAlerted = false
	m.longAlerted = make(map[string]struct{})
}

func (m *ProfileMonitor) resetDay() {
	m.mu.Lock()
	m.resetLocked(startOfDay(m.opts.Now()))
	m.mu.Unlock()
	m.opts.Logger.Info("daily counters reset")
}

// scheduleReset arms a timer for the next local midnight that resets the
// counters and re-arms itself.
func (m *ProfileMonitor) scheduleReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.resetTimer = time.AfterFunc(untilMidnight(m.opts.Now()), func() {
		m.resetDay()
		m.scheduleReset()
	})
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// untilMidnight is the wait until the next local midnight.
func untilMidnight(now time.Time) time.Duration {
	next := startOfDay(now).AddDate(0, 0, 1)
	return next.Sub(now)
}
