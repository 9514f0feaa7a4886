package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"webterm/internal/theme"
)

// CurrentConfigVersion is the only config_version this build understands.
const CurrentConfigVersion = 1

type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	DataDir       string         `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel      string         `mapstructure:"log_level" yaml:"log_level"`
	Server        ServerConfig   `mapstructure:"server" yaml:"server"`
	Client        ClientConfig   `mapstructure:"client" yaml:"client"`
	Telegram      TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

type ServerConfig struct {
	Addr                  string   `mapstructure:"addr" yaml:"addr"`
	PasswordHash          string   `mapstructure:"password_hash" yaml:"password_hash"`
	Shell                 string   `mapstructure:"shell" yaml:"shell"`
	CommandTimeoutSeconds int      `mapstructure:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	BlockedCommands       []string `mapstructure:"blocked_commands" yaml:"blocked_commands"`
	SystemInfoPerMinute   int      `mapstructure:"system_info_per_minute" yaml:"system_info_per_minute"`
	AuditLogLimit         int      `mapstructure:"audit_log_limit" yaml:"audit_log_limit"`

	// TrustedProxy makes X-Forwarded-For the client address. Leave it off
	// unless a reverse proxy you control sets that header.
	TrustedProxy bool `mapstructure:"trusted_proxy" yaml:"trusted_proxy"`
}

type ClientConfig struct {
	URL                 string  `mapstructure:"url" yaml:"url"`
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	SlowCommandSeconds  float64 `mapstructure:"slow_command_seconds" yaml:"slow_command_seconds"`
	Chart               bool    `mapstructure:"chart" yaml:"chart"`
	Theme               string  `mapstructure:"theme" yaml:"theme"`
}

type TelegramConfig struct {
	BotToken     string  `mapstructure:"bot_token" yaml:"bot_token"`
	AllowedUsers []int64 `mapstructure:"allowed_users" yaml:"allowed_users"`
}

// defaultBlockedCommands are refused anywhere inside a submitted command.
var defaultBlockedCommands = []string{"rm -rf /", "mkfs", "dd if=", "format", ":(){:|:&};:"}

// configPathOverride allows tests to redirect config to a temp directory
var configPathOverride string

// getConfigDir returns the directory holding config, database, PID and log
// files (~/.webterm/).
func getConfigDir() string {
	if configPathOverride != "" {
		return filepath.Dir(configPathOverride)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".webterm")
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		DataDir:       getConfigDir(),
		LogLevel:      "info",
		Server: ServerConfig{
			Addr:                  "0.0.0.0:8000",
			CommandTimeoutSeconds: 30,
			BlockedCommands:       append([]string(nil), defaultBlockedCommands...),
			SystemInfoPerMinute:   30,
			AuditLogLimit:         1000,
		},
		Client: ClientConfig{
			URL:                 "ws://localhost:8000/ws",
			PollIntervalSeconds: 5,
			SlowCommandSeconds:  2,
			Chart:               true,
			Theme:               "dark",
		},
	}
}

// loadConfig reads configuration from path, or the default location when
// path is empty. A missing file yields the defaults; WEBTERM_* variables
// override both.
func loadConfig(path string) (Config, error) {
	if path == "" {
		path = getConfigPath()
	}
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WEBTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.password_hash", cfg.Server.PasswordHash)
	v.SetDefault("server.shell", cfg.Server.Shell)
	v.SetDefault("server.command_timeout_seconds", cfg.Server.CommandTimeoutSeconds)
	v.SetDefault("server.blocked_commands", cfg.Server.BlockedCommands)
	v.SetDefault("server.system_info_per_minute", cfg.Server.SystemInfoPerMinute)
	v.SetDefault("server.audit_log_limit", cfg.Server.AuditLogLimit)
	v.SetDefault("server.trusted_proxy", cfg.Server.TrustedProxy)
	v.SetDefault("client.url", cfg.Client.URL)
	v.SetDefault("client.poll_interval_seconds", cfg.Client.PollIntervalSeconds)
	v.SetDefault("client.slow_command_seconds", cfg.Client.SlowCommandSeconds)
	v.SetDefault("client.chart", cfg.Client.Chart)
	v.SetDefault("client.theme", cfg.Client.Theme)
	v.SetDefault("telegram.bot_token", cfg.Telegram.BotToken)
	v.SetDefault("telegram.allowed_users", cfg.Telegram.AllowedUsers)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if got := v.GetInt("config_version"); got != CurrentConfigVersion {
		return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv("WEBTERM_SERVER_ADDR") == "" {
		host, _, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			host = "0.0.0.0"
		}
		cfg.Server.Addr = net.JoinHostPort(host, port)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.CommandTimeoutSeconds <= 0 {
		return fmt.Errorf("server.command_timeout_seconds must be positive, got %d", c.Server.CommandTimeoutSeconds)
	}
	if c.Server.SystemInfoPerMinute <= 0 {
		return fmt.Errorf("server.system_info_per_minute must be positive, got %d", c.Server.SystemInfoPerMinute)
	}
	if c.Client.PollIntervalSeconds <= 0 {
		return fmt.Errorf("client.poll_interval_seconds must be positive, got %d", c.Client.PollIntervalSeconds)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if _, ok := theme.Lookup(c.Client.Theme); !ok {
		return fmt.Errorf("client.theme %q is not one of %s", c.Client.Theme, strings.Join(theme.Names(), ", "))
	}
	return nil
}

func (c Config) commandTimeout() time.Duration {
	return time.Duration(c.Server.CommandTimeoutSeconds) * time.Second
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.Client.PollIntervalSeconds) * time.Second
}

func (c Config) slowCommand() time.Duration {
	return time.Duration(c.Client.SlowCommandSeconds * float64(time.Second))
}

func (c Config) dataPath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// writeDefaultConfig writes the default configuration to path. It refuses
// to overwrite an existing file unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
