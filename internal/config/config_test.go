package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/crypto"
	"chessBlocker/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hosts.RemotePath != "/etc/hosts" || cfg.Hosts.BackupPath != "/etc/hosts.backup" {
		t.Errorf("unexpected hosts defaults: %+v", cfg.Hosts)
	}
	if cfg.DefaultIntent() != models.IntentBlock {
		t.Errorf("default action should be block")
	}
	if cfg.Delay() != 0 {
		t.Errorf("default delay should be zero, got %s", cfg.Delay())
	}
	if cfg.Path() != path {
		t.Errorf("expected path %s, got %s", path, cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
remote:
  host: 192.168.1.50
  username: kid
  password: hunter2
  connect_timeout_seconds: 4
hosts:
  blocked_file: policies/blocked
kill_processes: [firefox]
delay_minutes: 2
default_action: allow
ntfy:
  server: https://ntfy.example.com/
  topic: chess
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	target := cfg.Target()
	if target.Addr() != "192.168.1.50:22" {
		t.Errorf("unexpected addr %s", target.Addr())
	}
	if target.ConnectTimeout != 4*time.Second {
		t.Errorf("unexpected timeout %s", target.ConnectTimeout)
	}
	if target.KeepaliveRetries != 3 {
		t.Errorf("keepalive retries should default to 3, got %d", target.KeepaliveRetries)
	}
	if target.KnownHostsPath != filepath.Join(filepath.Dir(path), DefaultKnownHostsFile) {
		t.Errorf("unexpected known hosts path %s", target.KnownHostsPath)
	}
	if got := cfg.PolicyFile(models.PolicyBlocked); got != filepath.Join(filepath.Dir(path), "policies/blocked") {
		t.Errorf("relative policy path not resolved: %s", got)
	}
	if cfg.DefaultIntent() != models.IntentAllow {
		t.Errorf("expected allow default")
	}
	if cfg.Delay() != 2*time.Minute {
		t.Errorf("unexpected delay %s", cfg.Delay())
	}
	if cfg.Ntfy.Server != "https://ntfy.example.com" {
		t.Errorf("trailing slash should be trimmed: %s", cfg.Ntfy.Server)
	}
	if len(cfg.KillProcesses) != 1 || cfg.KillProcesses[0] != "firefox" {
		t.Errorf("unexpected kill list %v", cfg.KillProcesses)
	}
	if err := cfg.ValidateRemote(); err != nil {
		t.Errorf("ValidateRemote: %v", err)
	}
	if err := cfg.ValidateNtfy(); err != nil {
		t.Errorf("ValidateNtfy: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "remote:\n  host: file-host\n")
	t.Setenv("CHESSBLOCKER_HOST", "env-host")
	t.Setenv("CHESSBLOCKER_PORT", "2222")
	t.Setenv("CHESSBLOCKER_KILL_PROCESSES", "chrome, firefox ,")
	t.Setenv("CHESSBLOCKER_TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.Host != "env-host" || cfg.Remote.Port != 2222 {
		t.Errorf("env override not applied: %+v", cfg.Remote)
	}
	if len(cfg.KillProcesses) != 2 || cfg.KillProcesses[0] != "chrome" || cfg.KillProcesses[1] != "firefox" {
		t.Errorf("unexpected kill list %v", cfg.KillProcesses)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Errorf("unexpected chat id %d", cfg.Telegram.ChatID)
	}
}

func TestLoadBadEnvNumber(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("CHESSBLOCKER_DELAY_MINUTES", "soon")
	_, err := Load(path)
	if !apperror.Is(err, apperror.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadEncryptedPassword(t *testing.T) {
	sealed, err := crypto.NewCipher("passphrase").Seal("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, "remote:\n  password: "+sealed+"\n")

	t.Setenv(SecretKeyEnv, "passphrase")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.Password != "s3cret" {
		t.Errorf("password not decrypted: %q", cfg.Remote.Password)
	}

	t.Setenv(SecretKeyEnv, "")
	if _, err := Load(path); !apperror.Is(err, apperror.ConfigurationError) {
		t.Errorf("expected ConfigurationError without key, got %v", err)
	}
}

func TestLoadInvalidDefaultAction(t *testing.T) {
	path := writeConfig(t, "default_action: maybe\n")
	if _, err := Load(path); !apperror.Is(err, apperror.ConfigurationError) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateRemote(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateRemote(); err == nil {
		t.Error("missing host should fail validation")
	}
	cfg.Remote.Host = "h"
	cfg.Remote.Username = "u"
	cfg.Hosts.BackupPath = cfg.Hosts.RemotePath
	if err := cfg.ValidateRemote(); err == nil {
		t.Error("identical backup path should fail validation")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Remote.Host = "10.1.1.1"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != DefaultFilePerms {
		t.Errorf("unexpected permissions %v", info.Mode().Perm())
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Remote.Host != "10.1.1.1" {
		t.Errorf("host not persisted: %s", loaded.Remote.Host)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Error("debug not parsed")
	}
	if ParseLevel("nonsense").String() != "INFO" {
		t.Error("unknown level should be info")
	}
}
