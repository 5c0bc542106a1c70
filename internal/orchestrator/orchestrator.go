// internal/orchestrator/orchestrator.go

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"
	"chessBlocker/internal/shellcmd"
	"chessBlocker/internal/ssh"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle             State = "idle"
	StateDelaying         State = "delaying"
	StateConnecting       State = "connecting"
	StateUploading        State = "uploading"
	StateKillingProcesses State = "killing_processes"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// RemoteSession is the part of an SSH session a run needs.
type RemoteSession interface {
	Execute(ctx context.Context, command string) (models.ExecutionResult, error)
	ReadFile(ctx context.Context, remotePath string) (*ssh.RemoteFile, error)
	Close() error
}

// DialFunc opens one session per run.
type DialFunc func(ctx context.Context, target models.RemoteTarget) (RemoteSession, error)

// SSHDialer connects with the real SSH client.
func SSHDialer(logger *slog.Logger) DialFunc {
	return func(ctx context.Context, target models.RemoteTarget) (RemoteSession, error) {
		session, err := ssh.Connect(ctx, target, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Countdown renders the pre-delay and returns early with ctx.Err() when
// the run is cancelled.
type Countdown interface {
	Run(ctx context.Context, total time.Duration, label string) error
}

type KillOutcome string

const (
	KillKilled  KillOutcome = "killed"
	KillNoMatch KillOutcome = "no_match"
	KillWarning KillOutcome = "warning"
)

type KillResult struct {
	Process  string      `json:"process"`
	ExitCode int         `json:"exitCode"`
	Outcome  KillOutcome `json:"outcome"`
	Error    string      `json:"error,omitempty"`
}

// RunResult describes a completed run.
type RunResult struct {
	RunID   string        `json:"runId"`
	Intent  models.Intent `json:"action"`
	Message string        `json:"message"`
	Output  string        `json:"output,omitempty"`
	Kills   []KillResult  `json:"kills,omitempty"`
}

type Options struct {
	Target        models.RemoteTarget
	RemotePath    string
	BackupPath    string
	KillProcesses []string
	Delay         time.Duration
	Policies      PolicySource
	Dial          DialFunc
	Countdown     Countdown
	Status        *StatusStore
	Logger        *slog.Logger
}

// Orchestrator installs a hosts policy on the target and kills the
// configured processes. At most one run is in flight at a time.
type Orchestrator struct {
	opts Options

	runMu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Status == nil {
		opts.Status = NewStatusStore()
	}
	if opts.Dial == nil {
		opts.Dial = SSHDialer(opts.Logger)
	}
	return &Orchestrator{opts: opts, state: StateIdle}
}

// Status exposes the last-action store shared with the HTTP layer.
func (o *Orchestrator) Status() *StatusStore {
	return o.opts.Status
}

func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	if o.runMu.TryLock() {
		o.runMu.Unlock()
		return false
	}
	return true
}

func (o *Orchestrator) setState(state State) {
	o.stateMu.Lock()
	o.state = state
	o.stateMu.Unlock()
}

// Run performs one orchestrated run. A second call while a run is in
// flight fails immediately with a Busy error.
func (o *Orchestrator) Run(ctx context.Context, intent models.Intent) (*RunResult, error) {
	policy, err := o.acquire(intent)
	if err != nil {
		return nil, err
	}
	defer o.runMu.Unlock()
	return o.execute(ctx, intent, policy)
}

// Start takes the run lock and performs the run in a new goroutine. Busy and
// BadRequest errors are returned before anything starts. done, when not nil,
// receives the outcome after the lock is released.
func (o *Orchestrator) Start(ctx context.Context, intent models.Intent, done func(*RunResult, error)) error {
	policy, err := o.acquire(intent)
	if err != nil {
		return err
	}
	go func() {
		result, err := o.execute(ctx, intent, policy)
		o.runMu.Unlock()
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

// acquire resolves the policy for intent and takes the run lock. The caller
// unlocks runMu on success.
func (o *Orchestrator) acquire(intent models.Intent) (models.HostsPolicy, error) {
	policy, ok := models.PolicyFor(intent)
	if !ok {
		return "", apperror.New(apperror.BadRequest, fmt.Sprintf("cannot run %s intent", intent), nil)
	}
	if !o.runMu.TryLock() {
		return "", apperror.New(apperror.Busy, "another action is already in progress", nil)
	}
	return policy, nil
}

func (o *Orchestrator) execute(ctx context.Context, intent models.Intent, policy models.HostsPolicy) (*RunResult, error) {
	runID := uuid.NewString()
	logger := o.opts.Logger.With("run_id", runID, "action", intent.String())
	o.publish(runID, intent, models.StateRunning, fmt.Sprintf("%s chess sites", capitalize(intent.Progressive())))

	result, err := o.run(ctx, logger, runID, intent, policy)
	if err != nil {
		o.setState(StateFailed)
		if ctx.Err() != nil && !apperror.Is(err, apperror.Cancelled) && errors.Is(err, ctx.Err()) {
			err = apperror.New(apperror.Cancelled, "action cancelled", err)
		}
		logger.Error("action failed", "state", o.State(), "err", err)
		o.publish(runID, intent, models.StateError, err.Error())
		return nil, err
	}

	o.setState(StateDone)
	logger.Info("action completed", "kills", len(result.Kills))
	o.publish(runID, intent, models.StateSuccess, result.Message)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, runID string, intent models.Intent, policy models.HostsPolicy) (*RunResult, error) {
	if o.opts.Delay > 0 {
		o.setState(StateDelaying)
		logger.Info("delaying action", "delay", o.opts.Delay)
		if err := o.wait(ctx, intent); err != nil {
			return nil, apperror.New(apperror.Cancelled, "delay cancelled", err)
		}
	}

	content, err := o.opts.Policies.ReadPolicy(policy)
	if err != nil {
		return nil, err
	}

	o.setState(StateConnecting)
	logger.Info("connecting", "addr", o.opts.Target.Addr())
	session, err := o.opts.Dial(ctx, o.opts.Target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close session", "err", err)
		}
	}()

	o.setState(StateUploading)
	upload := shellcmd.Privileged(o.opts.Target.Password,
		shellcmd.FileReplace(o.opts.RemotePath, o.opts.BackupPath, trimPolicy(content)))
	res, err := session.Execute(ctx, upload)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		var cause error
		if out := strings.TrimSpace(res.Output); out != "" {
			cause = errors.New(out)
		}
		return nil, apperror.New(apperror.UploadFailed,
			fmt.Sprintf("hosts file upload exited with code %d", res.ExitCode), cause)
	}
	logger.Info("hosts file installed", "policy", policy, "path", o.opts.RemotePath)

	o.setState(StateKillingProcesses)
	kills := make([]KillResult, 0, len(o.opts.KillProcesses))
	for _, name := range o.opts.KillProcesses {
		kills = append(kills, o.kill(ctx, logger, session, name))
	}

	return &RunResult{
		RunID:   runID,
		Intent:  intent,
		Message: fmt.Sprintf("Chess sites %s", pastTense(intent)),
		Output:  strings.TrimSpace(res.Output),
		Kills:   kills,
	}, nil
}

// kill never fails the run: every outcome other than 0 or 1 is a warning.
func (o *Orchestrator) kill(ctx context.Context, logger *slog.Logger, session RemoteSession, name string) KillResult {
	result := KillResult{Process: name}

	res, err := session.Execute(ctx, shellcmd.Privileged(o.opts.Target.Password, shellcmd.Kill([]string{name})))
	if err != nil {
		result.ExitCode = -1
		result.Outcome = KillWarning
		result.Error = err.Error()
		logger.Warn("kill failed", "process", name, "err", err)
		return result
	}

	result.ExitCode = res.ExitCode
	switch res.ExitCode {
	case 0:
		result.Outcome = KillKilled
		logger.Info("processes killed", "process", name)
	case 1:
		result.Outcome = KillNoMatch
		logger.Info("no matching process", "process", name)
	default:
		result.Outcome = KillWarning
		result.Error = strings.TrimSpace(res.Output)
		logger.Warn("kill exited with unexpected code", "process", name, "exit_code", res.ExitCode, "output", result.Error)
	}
	return result
}

func (o *Orchestrator) wait(ctx context.Context, intent models.Intent) error {
	label := fmt.Sprintf("%s chess sites in", capitalize(intent.Progressive()))
	if o.opts.Countdown != nil {
		return o.opts.Countdown.Run(ctx, o.opts.Delay, label)
	}

	timer := time.NewTimer(o.opts.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) publish(runID string, intent models.Intent, state models.ActionState, message string) {
	o.opts.Status.Set(models.ActionStatus{
		RunID:      runID,
		ActionType: intent,
		State:      state,
		Message:    message,
		Timestamp:  time.Now(),
	})
}

// Inspection reports which policy the remote hosts file currently matches.
type Inspection struct {
	Path    string             `json:"path"`
	Policy  models.HostsPolicy `json:"policy"`
	Size    int64              `json:"size"`
	ModTime time.Time          `json:"modTime"`
}

// Inspect reads the remote hosts file and classifies it. It shares the run
// lock, so it fails with a Busy error while a run is in flight.
func (o *Orchestrator) Inspect(ctx context.Context) (*Inspection, error) {
	if !o.runMu.TryLock() {
		return nil, apperror.New(apperror.Busy, "another action is already in progress", nil)
	}
	defer o.runMu.Unlock()

	session, err := o.opts.Dial(ctx, o.opts.Target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.opts.Logger.Warn("failed to close session", "err", err)
		}
	}()

	file, err := session.ReadFile(ctx, o.opts.RemotePath)
	if err != nil {
		return nil, err
	}

	policy, err := ClassifyHosts(file.Content, o.opts.Policies)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Path:    file.Path,
		Policy:  policy,
		Size:    file.Size,
		ModTime: file.ModTime,
	}, nil
}

func pastTense(intent models.Intent) string {
	if intent == models.IntentBlock {
		return "blocked"
	}
	return "allowed"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
