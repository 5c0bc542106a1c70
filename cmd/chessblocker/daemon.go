package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"chessBlocker/internal/lichess"
	"chessBlocker/internal/monitor"
	"chessBlocker/internal/notify"
	"chessBlocker/internal/ntfy"
	"chessBlocker/internal/orchestrator"
	"chessBlocker/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var withIntake bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control page and the ntfy webhook",
		Long: "serve starts the local control page and API and the ntfy webhook endpoint.\n" +
			"With --all it also subscribes to ntfy.topic and monitors the Lichess profile when configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runDaemon(func(a *app, o *orchestrator.Orchestrator) []task {
				tasks := []task{controlTask(a, o), webhookTask(a, o)}
				if !withIntake {
					return tasks
				}
				if a.cfg.Ntfy.Topic != "" {
					tasks = append(tasks, subscribeTask(a, o))
				}
				if a.cfg.Lichess.Username != "" {
					tasks = append(tasks, monitorTask(a))
				}
				return tasks
			})
		},
	}
	cmd.Flags().BoolVar(&withIntake, "all", false, "also run the ntfy subscriber and the Lichess monitor")
	return cmd
}

func webhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook",
		Short: "Run only the ntfy webhook endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runDaemon(func(a *app, o *orchestrator.Orchestrator) []task {
				return []task{webhookTask(a, o)}
			})
		},
	}
}

func subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to the ntfy topic and act on block/allow messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runDaemon(func(a *app, o *orchestrator.Orchestrator) []task {
				return []task{subscribeTask(a, o)}
			})
		},
	}
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Watch the Lichess profile and alert when daily limits are reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.ValidateLichess(); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return runTasks(ctx, monitorTask(a))
		},
	}
}

// task runs until ctx is cancelled.
type task func(ctx context.Context) error

// runDaemon loads configuration, builds one orchestrator shared by every
// task and runs the tasks until a signal arrives or one of them fails.
func runDaemon(build func(a *app, o *orchestrator.Orchestrator) []task) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateRemote(); err != nil {
		return err
	}
	target, err := promptCredential(a.cfg.Target())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	o := a.newOrchestrator(target, nil)
	return runTasks(ctx, build(a, o)...)
}

// runTasks cancels the remaining tasks as soon as one returns an error and
// waits for all of them.
func runTasks(ctx context.Context, tasks ...task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			if err := t(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancel()
			}
		}(t)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func controlTask(a *app, o *orchestrator.Orchestrator) task {
	srv := server.NewControl(server.Config{
		Addr:     a.cfg.Server.Addr,
		APIToken: a.cfg.Server.APIToken,
		Logger:   a.logger.With("server", "control"),
	}, o)
	return srv.ListenAndServe
}

func webhookTask(a *app, o *orchestrator.Orchestrator) task {
	srv := server.NewWebhook(server.Config{
		Addr:          a.cfg.Webhook.Addr,
		WebhookSecret: a.cfg.Webhook.Secret,
		Logger:        a.logger.With("server", "webhook"),
	}, o)
	return srv.ListenAndServe
}

func subscribeTask(a *app, o *orchestrator.Orchestrator) task {
	return func(ctx context.Context) error {
		if err := a.cfg.ValidateNtfy(); err != nil {
			return err
		}
		logger := a.logger.With("component", "subscriber")
		sub := ntfy.NewSubscriber(ntfy.SubscriberConfig{
			Server:         a.cfg.Ntfy.Server,
			Topic:          a.cfg.Ntfy.Topic,
			Token:          a.cfg.Ntfy.Token,
			ReconnectDelay: a.cfg.ReconnectDelay(),
			Logger:         logger,
		}, ntfy.Dispatcher(o.Run, logger))
		return sub.Run(ctx)
	}
}

func monitorTask(a *app) task {
	return func(ctx context.Context) error {
		logger := a.logger.With("component", "monitor")
		alerter, err := newAlerter(a)
		if err != nil {
			return err
		}
		logger.Info("alert sinks", "sinks", alerter.Sinks())

		lc := a.cfg.Lichess
		m := monitor.New(monitor.Options{
			Username: lc.Username,
			Interval: a.cfg.PollInterval(),
			PerMove:  time.Duration(lc.SecondsPerMove) * time.Second,
			Limits: monitor.Limits{
				MaxGamesPerDay: lc.MaxGamesPerDay,
				MaxPlayTime:    time.Duration(lc.MaxMinutesPerDay) * time.Minute,
				LongGame:       time.Duration(lc.LongGameMinutes) * time.Minute,
			},
			Games:   lichess.NewClient(lc.BaseURL, lc.Token, logger),
			Alerter: alerter,
			Logger:  logger,
		})
		m.Start(ctx)
		<-ctx.Done()
		m.Stop()
		return nil
	}
}

func newAlerter(a *app) (*notify.Alerter, error) {
	sinks := []notify.Sink{notify.LogSink{Logger: a.logger}}

	if topic := a.cfg.Ntfy.AlertTopic; topic != "" {
		client := ntfy.NewClient(a.cfg.Ntfy.Server, a.cfg.Ntfy.Token, 3, a.logger)
		sinks = append(sinks, notify.NtfySink{Client: client, Topic: topic})
	}

	if tg := a.cfg.Telegram; tg.Token != "" && tg.ChatID != 0 {
		sink, err := notify.NewTelegramSink(notify.TelegramConfig{
			Token:  tg.Token,
			ChatID: tg.ChatID,
			Logger: a.logger,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return notify.NewAlerter(a.logger, sinks...), nil
}
