// Package config describes the daemon and menu configuration files and
// their defaults. Values are read through viper; this package owns the
// key names, the defaults and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/logging"
	"go.klb.dev/clipstash/internal/selection"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

const (
	ProjectName = "clipstash"

	DaemonConfigName = "clipstashd"
	MenuConfigName   = "clipstash-menu"

	DefaultHost       = "127.0.0.1"
	DefaultPort       = 45045
	DefaultMaxHistory = 50
)

// Monitor is the [monitor] table.
type Monitor struct {
	LoadCurrent     bool          `mapstructure:"load_current"`
	EnableClipboard bool          `mapstructure:"enable_clipboard"`
	EnablePrimary   bool          `mapstructure:"enable_primary"`
	FilterMinSize   int           `mapstructure:"filter_min_size"`
	Backend         string        `mapstructure:"backend"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	IgnoreWindow    time.Duration `mapstructure:"ignore_window"`
}

// GRPC is the [grpc] table.
type GRPC struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Socket      string        `mapstructure:"socket"`
	HTTP        bool          `mapstructure:"http"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns host:port.
func (g GRPC) Addr() string { return net.JoinHostPort(g.Host, strconv.Itoa(g.Port)) }

// Daemon is the daemon configuration file.
type Daemon struct {
	Daemonize       bool    `mapstructure:"daemonize"`
	PIDFile         string  `mapstructure:"pid_file"`
	MaxHistory      int     `mapstructure:"max_history"`
	HistoryFilePath string  `mapstructure:"history_file_path"`
	HistoryDriver   string  `mapstructure:"history_driver"`
	LogLevel        string  `mapstructure:"log_level"`
	LogFormat       string  `mapstructure:"log_format"`
	LogFile         string  `mapstructure:"log_file"`
	Monitor         Monitor `mapstructure:"monitor"`
	GRPC            GRPC    `mapstructure:"grpc"`
}

// DefaultDaemonConfigPath is $XDG_CONFIG_HOME/clipstash/clipstashd.toml.
func DefaultDaemonConfigPath() string {
	return filepath.Join(xdg.ConfigHome, ProjectName, DaemonConfigName+".toml")
}

// ConfigDirs lists the directories searched for configuration files, in
// priority order.
func ConfigDirs() []string {
	return []string{filepath.Join(xdg.ConfigHome, ProjectName), "/etc/" + ProjectName}
}

// DefaultPIDFile is in $XDG_RUNTIME_DIR, or the temp dir when unset.
func DefaultPIDFile() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, DaemonConfigName+".pid")
}

// DefaultHistoryPath is $XDG_CACHE_HOME/clipstash/history.
func DefaultHistoryPath() string {
	return filepath.Join(xdg.CacheHome, ProjectName, "history")
}

// DefaultLogFile is where a daemonized process sends its log.
func DefaultLogFile() string {
	return filepath.Join(xdg.StateHome, ProjectName, DaemonConfigName+".log")
}

// SetDaemonDefaults registers every daemon key with its default.
func SetDaemonDefaults(v *viper.Viper) {
	v.SetDefault("daemonize", true)
	v.SetDefault("pid_file", DefaultPIDFile())
	v.SetDefault("max_history", DefaultMaxHistory)
	v.SetDefault("history_file_path", DefaultHistoryPath())
	v.SetDefault("history_driver", string(history.DriverFile))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", string(logging.FormatAuto))
	v.SetDefault("log_file", DefaultLogFile())

	v.SetDefault("monitor.load_current", true)
	v.SetDefault("monitor.enable_clipboard", true)
	v.SetDefault("monitor.enable_primary", true)
	v.SetDefault("monitor.filter_min_size", 0)
	v.SetDefault("monitor.backend", string(selection.ModeAuto))
	v.SetDefault("monitor.poll_interval", selection.DefaultPollInterval)
	v.SetDefault("monitor.ignore_window", time.Second)

	v.SetDefault("grpc.host", DefaultHost)
	v.SetDefault("grpc.port", DefaultPort)
	v.SetDefault("grpc.socket", ipc.DefaultSocketPath())
	v.SetDefault("grpc.http", true)
	v.SetDefault("grpc.idle_timeout", 5*time.Minute)
}

// LoadDaemon decodes and validates the daemon configuration held by v.
func LoadDaemon(v *viper.Viper) (*Daemon, error) {
	var d Daemon
	if err := v.Unmarshal(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if d.MaxHistory == 0 {
		d.MaxHistory = DefaultMaxHistory
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks value ranges and enumerations.
func (d *Daemon) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	if d.MaxHistory < 1 {
		return invalid("max_history must be positive, got %d", d.MaxHistory)
	}
	if d.HistoryFilePath == "" {
		return invalid("history_file_path is empty")
	}
	if _, err := history.ParseDriver(d.HistoryDriver); err != nil {
		return invalid("history_driver: %v", err)
	}
	if _, err := logging.LookupLevel(d.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if _, err := logging.LookupFormat(d.LogFormat); err != nil {
		return invalid("log_format: %v", err)
	}
	if d.Monitor.FilterMinSize < 0 {
		return invalid("monitor.filter_min_size must not be negative")
	}
	if _, err := selection.ParseMode(d.Monitor.Backend); err != nil {
		return invalid("monitor.backend: %v", err)
	}
	if d.Monitor.PollInterval <= 0 {
		return invalid("monitor.poll_interval must be positive, got %s", d.Monitor.PollInterval)
	}
	if d.Monitor.IgnoreWindow < 0 {
		return invalid("monitor.ignore_window must not be negative")
	}
	ip := net.ParseIP(d.GRPC.Host)
	if ip == nil {
		return invalid("grpc.host %q is not an IP address", d.GRPC.Host)
	}
	if !ip.IsLoopback() {
		return invalid("grpc.host %s is not a loopback address", d.GRPC.Host)
	}
	if d.GRPC.Port < 0 || d.GRPC.Port > 65535 {
		return invalid("grpc.port %d out of range", d.GRPC.Port)
	}
	if d.GRPC.IdleTimeout < 0 {
		return invalid("grpc.idle_timeout must not be negative")
	}
	return nil
}
