package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/logging"
)

// flagKeys maps flag names onto config keys where the two differ.
var flagKeys = map[string]string{
	"max-history":    "max_history",
	"history-file":   "history_file_path",
	"history-driver": "history_driver",
	"pid-file":       "pid_file",
	"log-file":       "log_file",
	"log-level":      "log_level",
	"log-format":     "log_format",
	"backend":        "monitor.backend",
	"grpc-host":      "grpc.host",
	"grpc-port":      "grpc.port",
	"socket":         "grpc.socket",
}

// bindViper wires a command's flags into v after reading the named config
// file from the standard search path and enabling CLIPSTASH_* env vars.
//
// Precedence (lowest → highest): defaults → config file → CLIPSTASH_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper, name string) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if err := config.Read(v, configFlag, name); err != nil {
		return err
	}
	return bindFlags(cmd, v)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", flag, err)
			}
		}
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run in the foreground: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: trace|debug|info|warn|error (default: info, debug in the foreground)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging configures slog for commands that are not the daemon.
// Client commands log warnings only unless asked for more.
func setupLogging(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = "warn"
	}
	format := "auto"
	if f := cmd.Flags().Lookup("log-format"); f != nil {
		format = f.Value.String()
	}
	logging.Setup(os.Stderr, logging.ParseFormat(format), logging.ParseLevel(level))
}
