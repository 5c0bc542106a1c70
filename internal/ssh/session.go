// internal/ssh/session.go

package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"

	"golang.org/x/crypto/ssh"
)

const defaultConnectTimeout = 10 * time.Second

// Session owns one authenticated connection to the target. Commands run
// serially, each on its own channel. Close must be called exactly once per
// successful Connect.
type Session struct {
	client    *ssh.Client
	target    models.RemoteTarget
	logger    *slog.Logger
	stopChan  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect dials the target and authenticates. There is no retry: any auth,
// network or timeout failure is returned as a ConnectionError.
func Connect(ctx context.Context, target models.RemoteTarget, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !target.HasCredential() {
		return nil, apperror.New(apperror.ConfigurationError,
			fmt.Sprintf("no credential configured for %s@%s", target.Username, target.Host), nil)
	}

	auth, err := authMethods(target)
	if err != nil {
		return nil, apperror.New(apperror.ConfigurationError, "failed to prepare authentication", err)
	}

	callback, err := hostKeyCallback(target)
	if err != nil {
		return nil, err
	}

	timeout := target.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	config := &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         timeout,
	}

	addr := target.Addr()
	client, err := dial(ctx, addr, config, timeout)
	if err != nil {
		return nil, classifyDialError(addr, err)
	}

	s := &Session{
		client:   client,
		target:   target,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	if target.KeepaliveInterval > 0 {
		go s.keepAliveLoop(target.KeepaliveInterval, target.KeepaliveRetries)
	}

	logger.Debug("ssh session established", "addr", addr, "user", target.Username)
	return s, nil
}

// dial performs TCP connect plus SSH handshake, both bounded by timeout and ctx.
func dial(ctx context.Context, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// the handshake ignores ctx, closing the socket unblocks it
	stop := context.AfterFunc(dialCtx, func() { conn.Close() })
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		stop()
		conn.Close()
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, fmt.Errorf("handshake with %s: %w", addr, dialCtx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// Execute runs one command. A non-zero exit status is returned as data;
// only channel-level faults produce an ExecutionError.
func (s *Session) Execute(ctx context.Context, command string) (models.ExecutionResult, error) {
	var result models.ExecutionResult

	session, err := s.client.NewSession()
	if err != nil {
		return result, apperror.New(apperror.ExecutionError, "failed to open session channel", err)
	}
	defer session.Close()

	var output lockedBuffer
	session.Stdout = &output
	session.Stderr = &output

	if err := session.Start(command); err != nil {
		return result, apperror.New(apperror.ExecutionError, "failed to start remote command", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		<-done
		result.Output = output.String()
		return result, apperror.New(apperror.ExecutionError, "remote command interrupted", ctx.Err())
	}

	result.Output = output.String()
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, apperror.New(apperror.ExecutionError, "remote channel failed", err)
	}
	return result, nil
}

// Client exposes the underlying connection for SFTP and SCP.
func (s *Session) Client() *ssh.Client {
	return s.client
}

// Target returns the machine this session is connected to.
func (s *Session) Target() models.RemoteTarget {
	return s.target
}

// Close releases the connection. Further calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = fmt.Errorf("client close error: %w", err)
		}
		s.logger.Debug("ssh session closed", "addr", s.target.Addr())
	})
	return s.closeErr
}

// keepAliveLoop sends keepalive requests and drops the connection after
// retries consecutive failures.
func (s *Session) keepAliveLoop(interval time.Duration, retries int) {
	if retries <= 0 {
		retries = 1
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ticker.C:
			if _, _, err := s.client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				failures++
				s.logger.Warn("ssh keepalive failed", "addr", s.target.Addr(), "failures", failures, "err", err)
				if failures >= retries {
					s.client.Close()
					return
				}
				continue
			}
			failures = 0
		case <-s.stopChan:
			return
		}
	}
}

// lockedBuffer lets stdout and stderr copy into one buffer concurrently.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
