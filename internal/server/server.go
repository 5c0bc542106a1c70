// internal/server/server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chessBlocker/internal/models"
	"chessBlocker/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// Runner is the orchestrator as seen from HTTP.
type Runner interface {
	Run(ctx context.Context, intent models.Intent) (*orchestrator.RunResult, error)
	Start(ctx context.Context, intent models.Intent, done func(*orchestrator.RunResult, error)) error
	Inspect(ctx context.Context) (*orchestrator.Inspection, error)
	Status() *orchestrator.StatusStore
}

type Config struct {
	Addr          string
	APIToken      string
	WebhookSecret string
	Logger        *slog.Logger
}

// Server serves one gin router. Runs started from a request outlive it and
// are bound to the context passed to ListenAndServe instead.
type Server struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
	router *gin.Engine
	http   *http.Server

	baseMu  sync.RWMutex
	baseCtx context.Context
	runs    sync.WaitGroup
}

func newServer(cfg Config, runner Runner) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		cfg:     cfg,
		runner:  runner,
		logger:  cfg.Logger,
		router:  router,
		baseCtx: context.Background(),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	router.GET("/health", s.health)
	return s
}

// NewControl builds the local control surface: page, manual trigger,
// status and remote inspection.
func NewControl(cfg Config, runner Runner) *Server {
	s := newServer(cfg, runner)
	s.registerControlRoutes()
	return s
}

// NewWebhook builds the notification intake endpoint.
func NewWebhook(cfg Config, runner Runner) *Server {
	s := newServer(cfg, runner)
	s.registerWebhookRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
// On shutdown in-flight runs see ctx cancelled and are waited for.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.baseMu.Lock()
	s.baseCtx = ctx
	s.baseMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", "addr", s.cfg.Addr)

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down", "addr", s.cfg.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		s.Wait()
		return err
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server %s: %w", s.cfg.Addr, err)
	}
}

// Wait blocks until all background runs have finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) runContext() context.Context {
	s.baseMu.RLock()
	defer s.baseMu.RUnlock()
	return s.baseCtx
}

// runAsync starts a run that the HTTP response does not wait for. The run
// lock is already held when it returns nil.
func (s *Server) runAsync(intent models.Intent, source string) error {
	s.runs.Add(1)
	err := s.runner.Start(s.runContext(), intent, func(result *orchestrator.RunResult, err error) {
		defer s.runs.Done()
		if err != nil {
			s.logger.Error("background action failed", "source", source, "action", intent.String(), "err", err)
			return
		}
		s.logger.Info("background action completed", "source", source, "action", intent.String(), "run_id", result.RunID)
	})
	if err != nil {
		s.runs.Done()
	}
	return err
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
