package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied by Normalize. Retries and RetryDelay mirror the
// connection budget of the original deployment; Interval/Tick drive the
// reconciliation loop.
const (
	DefaultRetries        = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultInterval       = time.Hour
	DefaultTick           = time.Minute
	DefaultSSHPort        = 22
	DefaultCommandTimeout = 30 * time.Second
	DefaultListen         = ":8080"
)

// Host describes one monitored host. Immutable after load.
type Host struct {
	Index      int    `toml:"-" mapstructure:"-"`
	Hostname   string `toml:"hostname" mapstructure:"hostname"`
	Port       int    `toml:"port" mapstructure:"port"`
	Username   string `toml:"username" mapstructure:"username"`
	Password   string `toml:"password" mapstructure:"password"`
	ScriptPath string `toml:"script_path" mapstructure:"script_path"`
}

// Addr returns the host:port dial address.
func (h Host) Addr() string {
	return fmt.Sprintf("%s:%d", h.Hostname, h.Port)
}

// MonitorConfig holds the reconciliation loop settings.
type MonitorConfig struct {
	Retries        int           `toml:"retries" mapstructure:"retries"`
	RetryDelay     time.Duration `toml:"retry_delay" mapstructure:"retry_delay"`
	Interval       time.Duration `toml:"interval" mapstructure:"interval"`
	Tick           time.Duration `toml:"tick" mapstructure:"tick"`
	CommandTimeout time.Duration `toml:"command_timeout" mapstructure:"command_timeout"`
}

// ServerConfig holds the status HTTP server settings.
type ServerConfig struct {
	Listen        string `toml:"listen" mapstructure:"listen"`
	BasePath      string `toml:"base_path" mapstructure:"base_path"`
	MetricsListen string `toml:"metrics_listen" mapstructure:"metrics_listen"`
}

// LogConfig configures optional rotating file output for the daemon log.
// Rotation parameters follow lumberjack semantics.
type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Config is the top-level TOML structure.
type Config struct {
	Monitor    MonitorConfig `toml:"monitor" mapstructure:"monitor"`
	Server     ServerConfig  `toml:"server" mapstructure:"server"`
	Log        LogConfig     `toml:"log" mapstructure:"log"`
	HistoryDSN string        `toml:"history_dsn" mapstructure:"history_dsn"`
	Hosts      []Host        `toml:"hosts" mapstructure:"hosts"`
}

// Load reads a TOML config file, merges hosts discovered from the
// environment, and applies defaults. Path may be empty, in which case only
// the environment supplies hosts.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		v := viper.New()
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
	}
	for i := range cfg.Hosts {
		cfg.Hosts[i].Index = i + 1
	}
	cfg.Hosts = append(cfg.Hosts, HostsFromEnv(len(cfg.Hosts))...)
	cfg.Normalize()
	return &cfg, nil
}

// HostsFromEnv discovers hosts via the HOSTNAME_1, USERNAME_1, PASSWORD_1,
// SCRIPT_PATH_1, ... convention, stopping at the first missing HOSTNAME_N.
// offset shifts the assigned Index past hosts already loaded from file.
func HostsFromEnv(offset int) []Host {
	var hosts []Host
	for i := 1; ; i++ {
		hostname := os.Getenv(fmt.Sprintf("HOSTNAME_%d", i))
		if hostname == "" {
			break
		}
		hosts = append(hosts, Host{
			Index:      offset + i,
			Hostname:   hostname,
			Username:   os.Getenv(fmt.Sprintf("USERNAME_%d", i)),
			Password:   os.Getenv(fmt.Sprintf("PASSWORD_%d", i)),
			ScriptPath: os.Getenv(fmt.Sprintf("SCRIPT_PATH_%d", i)),
		})
	}
	return hosts
}

// Normalize fills zero-valued settings with defaults.
func (c *Config) Normalize() {
	if c.Monitor.Retries <= 0 {
		c.Monitor.Retries = DefaultRetries
	}
	if c.Monitor.RetryDelay <= 0 {
		c.Monitor.RetryDelay = DefaultRetryDelay
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = DefaultInterval
	}
	if c.Monitor.Tick <= 0 {
		c.Monitor.Tick = DefaultTick
	}
	if c.Monitor.CommandTimeout <= 0 {
		c.Monitor.CommandTimeout = DefaultCommandTimeout
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	for i := range c.Hosts {
		if c.Hosts[i].Port <= 0 {
			c.Hosts[i].Port = DefaultSSHPort
		}
	}
}

// Validate rejects host entries that cannot be probed.
func (c *Config) Validate() error {
	for _, h := range c.Hosts {
		if h.Hostname == "" {
			return fmt.Errorf("host %d: hostname required", h.Index)
		}
		if h.Username == "" {
			return fmt.Errorf("host %d (%s): username required", h.Index, h.Hostname)
		}
		if h.ScriptPath == "" {
			return fmt.Errorf("host %d (%s): script_path required", h.Index, h.Hostname)
		}
		if !filepath.IsAbs(h.ScriptPath) {
			return fmt.Errorf("host %d (%s): script_path must be absolute", h.Index, h.Hostname)
		}
	}
	return nil
}
