//go:build unix

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/logging"
	"go.klb.dev/clipstash/internal/pidfile"
	"go.klb.dev/clipstash/internal/supervisor"
)

// childEnv marks the re-executed background process.
const childEnv = "CLIPSTASH_DAEMON_CHILD"

func newDaemonCmd() *cobra.Command {
	v := viper.New()
	config.SetDaemonDefaults(v)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the clipboard history daemon",
		Long: `Starts the clipstash daemon. It records both selections, keeps the
history on disk and serves the control API on the loopback address, on the
IPC socket and, unless disabled, as HTTP/JSON on the same port.

By default the daemon detaches into the background and logs to log_file.
--no-background keeps it in the foreground with human-readable logs.

Config file search order:
  $XDG_CONFIG_HOME/clipstash/clipstashd.toml
  /etc/clipstash/clipstashd.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPSTASH_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v, config.DaemonConfigName) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd, v) },
	}

	f := cmd.Flags()
	f.Int("max-history", config.DefaultMaxHistory, "number of clips to keep")
	f.String("history-file", config.DefaultHistoryPath(), "history file path")
	f.String("history-driver", "file", "history store: file|sqlite")
	f.String("pid-file", config.DefaultPIDFile(), "PID file path")
	f.String("log-file", config.DefaultLogFile(), "log file used in the background")
	f.String("backend", "auto", "selection backend: auto|native|x11|wayland|none")
	f.String("grpc-host", config.DefaultHost, "loopback address to listen on")
	f.Int("grpc-port", config.DefaultPort, "TCP port to listen on")
	f.String("socket", "", "IPC socket path (default $XDG_RUNTIME_DIR/clipstash.sock)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.LoadDaemon(v)
	if err != nil {
		return err
	}

	child := os.Getenv(childEnv) == "1"
	foreground := v.GetBool("no-background") || !cfg.Daemonize || child
	if !foreground {
		return detach(cfg)
	}

	interactive := v.GetBool("no-background") || (!child && logging.IsTTY(os.Stderr))
	level := cfg.LogLevel
	if v.GetBool("no-background") && !cmd.Flags().Changed("log-level") && !v.InConfig("log_level") {
		level = ""
	}
	resolveLogging(interactive, cfg.LogFormat, level)

	pid, err := pidfile.Acquire(cfg.PIDFile)
	if err != nil {
		slog.Error("cannot start daemon", "err", err)
		return err
	}
	defer pid.Release()

	d := supervisor.New(cfg, supervisor.WithVersion(Version))
	if err := d.Run(cmd.Context()); err != nil {
		slog.Error("daemon failed", "err", err)
		return err
	}
	return nil
}

// detach re-executes the binary in a new session with stdio detached and
// stderr appended to the log file, then returns in the parent.
func detach(cfg *config.Daemon) error {
	if pid, err := pidfile.Read(cfg.PIDFile); err == nil && processAlive(pid) {
		return fmt.Errorf("%w (pid %d)", pidfile.ErrRunning, pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	defer logFile.Close()
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	defer devNull.Close()

	c := exec.Command(exe, os.Args[1:]...)
	c.Env = append(os.Environ(), childEnv+"=1")
	c.Stdin = devNull
	c.Stdout = devNull
	c.Stderr = logFile
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := c.Start(); err != nil {
		return fmt.Errorf("daemonize: %w", err)
	}
	fmt.Printf("clipstash daemon started (pid %d, log %s)\n", c.Process.Pid, cfg.LogFile)
	return c.Process.Release()
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
