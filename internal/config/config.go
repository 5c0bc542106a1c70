// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/crypto"
	"chessBlocker/internal/models"
	"chessBlocker/internal/utils"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFileName = "config.yaml"
	DefaultConfigDir      = ".config/chessblocker"
	DefaultKnownHostsFile = "known_hosts"
	DefaultFilePerms      = 0600

	// SecretKeyEnv holds the passphrase used to open "enc:" values.
	SecretKeyEnv = "CHESSBLOCKER_SECRET_KEY"
	envPrefix    = "CHESSBLOCKER_"
)

// Config is the whole chessBlocker configuration file.
type Config struct {
	Remote        RemoteConfig   `yaml:"remote"`
	Hosts         HostsConfig    `yaml:"hosts"`
	KillProcesses []string       `yaml:"kill_processes"`
	DelayMinutes  int            `yaml:"delay_minutes"`
	DefaultAction string         `yaml:"default_action"`
	Server        ServerConfig   `yaml:"server"`
	Webhook       WebhookConfig  `yaml:"webhook"`
	Ntfy          NtfyConfig     `yaml:"ntfy"`
	Lichess       LichessConfig  `yaml:"lichess"`
	Telegram      TelegramConfig `yaml:"telegram"`
	Log           LogConfig      `yaml:"log"`

	path string
}

type RemoteConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	Username                 string `yaml:"username"`
	Password                 string `yaml:"password"`
	PrivateKeyPath           string `yaml:"private_key_path"`
	KnownHostsPath           string `yaml:"known_hosts_path"`
	InsecureIgnoreHostKey    bool   `yaml:"insecure_ignore_host_key"`
	ConnectTimeoutSeconds    int    `yaml:"connect_timeout_seconds"`
	KeepaliveIntervalSeconds int    `yaml:"keepalive_interval_seconds"`
	KeepaliveRetries         int    `yaml:"keepalive_retries"`
}

type HostsConfig struct {
	RemotePath  string `yaml:"remote_path"`
	BackupPath  string `yaml:"backup_path"`
	BlockedFile string `yaml:"blocked_file"`
	AllowedFile string `yaml:"allowed_file"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	APIToken string `yaml:"api_token"`
}

type WebhookConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

type NtfyConfig struct {
	Server                string `yaml:"server"`
	Topic                 string `yaml:"topic"`
	Token                 string `yaml:"token"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
	AlertTopic            string `yaml:"alert_topic"`
}

type LichessConfig struct {
	BaseURL             string `yaml:"base_url"`
	Username            string `yaml:"username"`
	Token               string `yaml:"token"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxGamesPerDay      int    `yaml:"max_games_per_day"`
	MaxMinutesPerDay    int    `yaml:"max_minutes_per_day"`
	LongGameMinutes     int    `yaml:"long_game_minutes"`
	SecondsPerMove      int    `yaml:"seconds_per_move"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config populated with defaults for everything
// except the target machine and the accounts.
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Port:                     22,
			ConnectTimeoutSeconds:    10,
			KeepaliveIntervalSeconds: 15,
			KeepaliveRetries:         3,
		},
		Hosts: HostsConfig{
			RemotePath:  "/etc/hosts",
			BackupPath:  "/etc/hosts.backup",
			BlockedFile: "hosts/hosts.blocked",
			AllowedFile: "hosts/hosts.allowed",
		},
		KillProcesses: []string{"firefox", "brave"},
		DefaultAction: "block",
		Server:        ServerConfig{Addr: ":3000"},
		Webhook:       WebhookConfig{Addr: ":3001"},
		Ntfy: NtfyConfig{
			Server:                "https://ntfy.sh",
			ReconnectDelaySeconds: 5,
		},
		Lichess: LichessConfig{
			BaseURL:             "https://lichess.org",
			PollIntervalSeconds: 300,
			MaxGamesPerDay:      5,
			MaxMinutesPerDay:    60,
			LongGameMinutes:     30,
			SecondsPerMove:      5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// GetDefaultConfigPath returns ~/.config/chessblocker/config.yaml.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFileName), nil
}

// Load reads the YAML file at path (a missing file means defaults), applies
// CHESSBLOCKER_* environment overrides and opens encrypted secrets.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return nil, apperror.New(apperror.ConfigurationError, "failed to locate config", err)
		}
		path = defaultPath
	}
	cfg.path = path

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// same as an empty file
	case err != nil:
		return nil, apperror.New(apperror.ConfigurationError, "failed to read config file", err)
	default:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, apperror.New(apperror.ConfigurationError, "failed to parse config file", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, apperror.New(apperror.ConfigurationError, "invalid environment override", err)
	}
	cfg.applyDefaults()

	var cipher *crypto.Cipher
	if key := os.Getenv(SecretKeyEnv); key != "" {
		cipher = crypto.NewCipher(key)
	}
	if err := cfg.openSecrets(cipher); err != nil {
		return nil, apperror.New(apperror.ConfigurationError, "failed to decrypt secrets", err)
	}

	if _, err := models.ParseAction(cfg.DefaultAction); err != nil {
		return nil, apperror.New(apperror.ConfigurationError, "invalid default_action", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML with owner-only permissions.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, DefaultFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Dir is the base for relative paths inside the configuration.
func (c *Config) Dir() string {
	if c.path == "" {
		return ""
	}
	return filepath.Dir(c.path)
}

// Target builds the immutable RemoteTarget.
func (c *Config) Target() models.RemoteTarget {
	return models.RemoteTarget{
		Host:                  c.Remote.Host,
		Port:                  c.Remote.Port,
		Username:              c.Remote.Username,
		Password:              c.Remote.Password,
		PrivateKeyPath:        utils.ResolveLocalPath(c.Remote.PrivateKeyPath, c.Dir()),
		KnownHostsPath:        c.KnownHostsPath(),
		InsecureIgnoreHostKey: c.Remote.InsecureIgnoreHostKey,
		ConnectTimeout:        time.Duration(c.Remote.ConnectTimeoutSeconds) * time.Second,
		KeepaliveInterval:     time.Duration(c.Remote.KeepaliveIntervalSeconds) * time.Second,
		KeepaliveRetries:      c.Remote.KeepaliveRetries,
	}
}

// KnownHostsPath defaults to a known_hosts file next to the configuration.
func (c *Config) KnownHostsPath() string {
	if c.Remote.KnownHostsPath != "" {
		return utils.ResolveLocalPath(c.Remote.KnownHostsPath, c.Dir())
	}
	return filepath.Join(c.Dir(), DefaultKnownHostsFile)
}

// PolicyFile returns the local hosts-file variant for a policy.
func (c *Config) PolicyFile(policy models.HostsPolicy) string {
	switch policy {
	case models.PolicyBlocked:
		return utils.ResolveLocalPath(c.Hosts.BlockedFile, c.Dir())
	case models.PolicyAllowed:
		return utils.ResolveLocalPath(c.Hosts.AllowedFile, c.Dir())
	default:
		return ""
	}
}

// DefaultIntent is the action used when the CLI gets no argument.
func (c *Config) DefaultIntent() models.Intent {
	intent, err := models.ParseAction(c.DefaultAction)
	if err != nil {
		return models.IntentBlock
	}
	return intent
}

func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMinutes) * time.Minute
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Lichess.PollIntervalSeconds) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Ntfy.ReconnectDelaySeconds) * time.Second
}

// ValidateRemote checks what an orchestrated run needs. A missing credential
// is not an error here: the CLI may still prompt for it.
func (c *Config) ValidateRemote() error {
	switch {
	case c.Remote.Host == "":
		return apperror.New(apperror.ConfigurationError, "remote.host is required", nil)
	case c.Remote.Username == "":
		return apperror.New(apperror.ConfigurationError, "remote.username is required", nil)
	case c.Hosts.RemotePath == "" || c.Hosts.BackupPath == "":
		return apperror.New(apperror.ConfigurationError, "hosts.remote_path and hosts.backup_path are required", nil)
	case c.Hosts.RemotePath == c.Hosts.BackupPath:
		return apperror.New(apperror.ConfigurationError, "hosts.backup_path must differ from hosts.remote_path", nil)
	}
	return nil
}

func (c *Config) ValidateNtfy() error {
	if c.Ntfy.Server == "" || c.Ntfy.Topic == "" {
		return apperror.New(apperror.ConfigurationError, "ntfy.server and ntfy.topic are required", nil)
	}
	return nil
}

func (c *Config) ValidateLichess() error {
	if c.Lichess.Username == "" {
		return apperror.New(apperror.ConfigurationError, "lichess.username is required", nil)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Remote.Port <= 0 {
		c.Remote.Port = d.Remote.Port
	}
	if c.Remote.ConnectTimeoutSeconds <= 0 {
		c.Remote.ConnectTimeoutSeconds = d.Remote.ConnectTimeoutSeconds
	}
	if c.Remote.KeepaliveRetries <= 0 {
		c.Remote.KeepaliveRetries = d.Remote.KeepaliveRetries
	}
	if c.DelayMinutes < 0 {
		c.DelayMinutes = 0
	}
	if c.DefaultAction == "" {
		c.DefaultAction = d.DefaultAction
	}
	if c.Ntfy.ReconnectDelaySeconds <= 0 {
		c.Ntfy.ReconnectDelaySeconds = d.Ntfy.ReconnectDelaySeconds
	}
	if c.Lichess.BaseURL == "" {
		c.Lichess.BaseURL = d.Lichess.BaseURL
	}
	if c.Lichess.PollIntervalSeconds <= 0 {
		c.Lichess.PollIntervalSeconds = d.Lichess.PollIntervalSeconds
	}
	if c.Lichess.SecondsPerMove <= 0 {
		c.Lichess.SecondsPerMove = d.Lichess.SecondsPerMove
	}
	c.Hosts.RemotePath = utils.NormalizeRemotePath(c.Hosts.RemotePath)
	c.Hosts.BackupPath = utils.NormalizeRemotePath(c.Hosts.BackupPath)
	c.Ntfy.Server = strings.TrimRight(c.Ntfy.Server, "/")
	c.Lichess.BaseURL = strings.TrimRight(c.Lichess.BaseURL, "/")
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("HOST", &c.Remote.Host)
	str("USERNAME", &c.Remote.Username)
	str("PASSWORD", &c.Remote.Password)
	str("PRIVATE_KEY", &c.Remote.PrivateKeyPath)
	str("DEFAULT_ACTION", &c.DefaultAction)
	str("API_TOKEN", &c.Server.APIToken)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)
	str("NTFY_SERVER", &c.Ntfy.Server)
	str("NTFY_TOPIC", &c.Ntfy.Topic)
	str("NTFY_TOKEN", &c.Ntfy.Token)
	str("NTFY_ALERT_TOPIC", &c.Ntfy.AlertTopic)
	str("LICHESS_USERNAME", &c.Lichess.Username)
	str("LICHESS_TOKEN", &c.Lichess.Token)
	str("TELEGRAM_TOKEN", &c.Telegram.Token)
	str("LOG_LEVEL", &c.Log.Level)

	if err := num("PORT", &c.Remote.Port); err != nil {
		return err
	}
	if err := num("DELAY_MINUTES", &c.DelayMinutes); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(envPrefix + "KILL_PROCESSES"); ok {
		c.KillProcesses = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "TELEGRAM_CHAT_ID"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sTELEGRAM_CHAT_ID: %w", envPrefix, err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

func (c *Config) openSecrets(cipher *crypto.Cipher) error {
	secrets := map[string]*string{
		"remote.password":  &c.Remote.Password,
		"server.api_token": &c.Server.APIToken,
		"webhook.secret":   &c.Webhook.Secret,
		"ntfy.token":       &c.Ntfy.Token,
		"lichess.token":    &c.Lichess.Token,
		"telegram.token":   &c.Telegram.Token,
	}
	for name, value := range secrets {
		plain, err := cipher.Open(*value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*value = plain
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
