package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"chessBlocker/internal/config"
	"chessBlocker/internal/models"
	"chessBlocker/internal/orchestrator"
	"chessBlocker/internal/ui"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Failure("%v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chessblocker [block|allow]",
		Short: "Block or allow chess sites on a remote machine",
		Long: "chessblocker replaces the hosts file of a machine on the LAN over SSH and kills\n" +
			"the configured browser processes. Without an argument it runs the configured default action.",
		Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     []string{"block", "allow"},
		SilenceErrors: true,
		RunE:          runAction,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.config/chessblocker/config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(subscribeCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(inspectCmd())
	root.AddCommand(pullBackupCmd())
	root.AddCommand(trustHostCmd())
	root.AddCommand(encryptCmd())
	root.AddCommand(initCmd())
	return root
}

// app holds what every command needs once the configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

func (a *app) Close() {
	a.closer.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newOrchestrator builds the orchestrator for target. countdown may be nil
// for non-interactive runs.
func (a *app) newOrchestrator(target models.RemoteTarget, countdown orchestrator.Countdown) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Target:        target,
		RemotePath:    a.cfg.Hosts.RemotePath,
		BackupPath:    a.cfg.Hosts.BackupPath,
		KillProcesses: a.cfg.KillProcesses,
		Delay:         a.cfg.Delay(),
		Policies: orchestrator.PolicyFiles{
			models.PolicyBlocked: a.cfg.PolicyFile(models.PolicyBlocked),
			models.PolicyAllowed: a.cfg.PolicyFile(models.PolicyAllowed),
		},
		Countdown: countdown,
		Logger:    a.logger,
	})
}

func runAction(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	intent := a.cfg.DefaultIntent()
	if len(args) == 1 {
		if intent, err = models.ParseAction(args[0]); err != nil {
			return err
		}
	}

	if err := a.cfg.ValidateRemote(); err != nil {
		return err
	}
	target, err := promptCredential(a.cfg.Target())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	o := a.newOrchestrator(target, ui.NewCountdown(os.Stdin, os.Stdout, a.logger))
	result, err := o.Run(ctx, intent)
	if err != nil {
		return err
	}

	fmt.Println(ui.Success("%s", result.Message))
	if len(result.Kills) > 0 {
		fmt.Println(killTable(result.Kills))
	}
	return nil
}

func killTable(kills []orchestrator.KillResult) string {
	rows := make([][]string, len(kills))
	warn := make(map[int]bool)
	for i, kill := range kills {
		detail := strings.TrimSpace(kill.Error)
		rows[i] = []string{kill.Process, strings.ReplaceAll(string(kill.Outcome), "_", " "), strconv.Itoa(kill.ExitCode), detail}
		warn[i] = kill.Outcome == orchestrator.KillWarning
	}
	return ui.Table([]string{"Process", "Result", "Exit", "Detail"}, rows, warn)
}
