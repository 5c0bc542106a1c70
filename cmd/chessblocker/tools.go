package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/config"
	"chessBlocker/internal/crypto"
	"chessBlocker/internal/ssh"
	"chessBlocker/internal/ui"

	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show which hosts policy is installed on the remote machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
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

			inspection, err := a.newOrchestrator(target, nil).Inspect(ctx)
			if err != nil {
				return err
			}
			fmt.Println(ui.Panel("Remote hosts file",
				ui.Field("Host", target.Addr()),
				ui.Field("Path", inspection.Path),
				ui.Field("Policy", string(inspection.Policy)),
				ui.Field("Size", fmt.Sprintf("%d bytes", inspection.Size)),
				ui.Field("Modified", inspection.ModTime.Local().Format("2006-01-02 15:04:05")),
			))
			return nil
		},
	}
}

func pullBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull-backup [dest]",
		Short: "Copy the remote hosts backup to a local file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
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

			dest := filepath.Base(a.cfg.Hosts.BackupPath)
			if len(args) == 1 {
				dest = args[0]
			}

			ctx, stop := signalContext()
			defer stop()

			session, err := ssh.Connect(ctx, target, a.logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.CopyFromRemote(ctx, a.cfg.Hosts.BackupPath, dest); err != nil {
				return err
			}
			fmt.Println(ui.Success("Copied %s:%s to %s", target.Host, a.cfg.Hosts.BackupPath, dest))
			return nil
		},
	}
}

func trustHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust-host",
		Short: "Record the remote machine's host key in known_hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Remote.Host == "" {
				return apperror.New(apperror.ConfigurationError, "remote.host is required", nil)
			}

			ctx, stop := signalContext()
			defer stop()

			target := a.cfg.Target()
			fingerprint, err := ssh.TrustHost(ctx, target)
			if err != nil {
				return err
			}
			fmt.Println(ui.Success("Trusted %s", target.Addr()))
			fmt.Println(ui.Field("Key", fingerprint))
			fmt.Println(ui.Field("File", target.KnownHostsPath))
			return nil
		},
	}
}

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a secret for the configuration file",
		Long: "encrypt reads a secret from the terminal and prints it in enc: form.\n" +
			"The key is taken from " + config.SecretKeyEnv + " or prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if !ui.IsTerminal(os.Stdin) {
				return apperror.New(apperror.ConfigurationError, "encrypt needs an interactive terminal", nil)
			}

			key := os.Getenv(config.SecretKeyEnv)
			if key == "" {
				var err error
				if key, err = readSecret("Secret key: "); err != nil {
					return err
				}
			}
			if key == "" {
				return apperror.New(apperror.ConfigurationError, "secret key must not be empty", nil)
			}

			secret, err := readSecret("Value to encrypt: ")
			if err != nil {
				return err
			}
			sealed, err := crypto.NewCipher(key).Seal(secret)
			if err != nil {
				return err
			}
			fmt.Println(sealed)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			path := configPath
			if path == "" {
				var err error
				if path, err = config.GetDefaultConfigPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return apperror.New(apperror.ConfigurationError,
					fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Println(ui.Success("Wrote %s", path))
			fmt.Println(ui.Field("Next", "set remote.host and remote.username, add the two hosts files, run trust-host"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
