// clipstash: clipboard history daemon and client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipstash/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipstash",
		Short: "Clipboard history daemon",
		Long: `clipstash records every distinct snippet copied to the clipboard or the
primary selection, keeps a bounded history on disk and lets you bring old
entries back.

Run "clipstash daemon" once per session. "clipstash menu" picks an entry
through rofi, dmenu, skim, a custom finder or the built-in picker, and the
other subcommands drive the daemon from scripts.

Config files (first found wins):
  $XDG_CONFIG_HOME/clipstash/clipstashd.toml       daemon
  $XDG_CONFIG_HOME/clipstash/clipstash-menu.toml   menu
  /etc/clipstash/
  path supplied via --config

Keys can also be set with CLIPSTASH_<KEY> env vars, e.g.
CLIPSTASH_MONITOR_ENABLE_PRIMARY=false.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newMenuCmd(),
		newListCmd(),
		newGetCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newMarkCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newClearCmd(),
		newLengthCmd(),
		newMonitorCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipstash %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" && interactive {
		level = logging.ParseLevel("debug")
	}
	logging.Setup(os.Stderr, format, level)
}
