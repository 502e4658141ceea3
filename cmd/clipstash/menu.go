package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/finder"
)

func newMenuCmd() *cobra.Command {
	v := viper.New()
	config.SetMenuDefaults(v)

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Pick a clip from the history with a finder",
		Long: `Lists the history in a finder (rofi, dmenu, skim, a custom program or the
built-in picker) and publishes the chosen clip to the clipboard, or to the
selection given by --kind. With --remove the chosen clip is deleted instead.

Config file: $XDG_CONFIG_HOME/clipstash/clipstash-menu.toml. A missing or
unreadable file falls back to the defaults.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			configFlag, _ := cmd.Flags().GetString("config")
			if err := config.Read(v, configFlag, config.MenuConfigName); err != nil {
				slog.Warn("menu config unreadable, using defaults", "err", err)
			}
			return bindFlags(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return runMenu(cmd, v) },
	}

	addClientFlags(cmd)
	addConfigFlag(cmd)
	addKindFlag(cmd, "clipboard")
	f := cmd.Flags()
	f.String("finder", "", "finder: rofi|dmenu|skim|custom|builtin (default from config)")
	f.Bool("remove", false, "delete the chosen clip instead of publishing it")
	f.String("log-level", "", "log level for client diagnostics (default: warn)")
	return cmd
}

func runMenu(cmd *cobra.Command, v *viper.Viper) error {
	m, err := config.LoadMenu(v)
	if err != nil {
		return err
	}
	kind, err := finderKind(cmd, m)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("addr") {
		v.Set("addr", net.JoinHostPort(m.ServerHost, strconv.Itoa(m.ServerPort)))
	}
	sel, err := kindFlag(cmd)
	if err != nil {
		return err
	}

	c, err := dial(cmd, v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	clips, err := c.List(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(clips) == 0 {
		slog.Info("history is empty")
		return nil
	}

	fnd, err := finder.New(m, kind)
	if err != nil {
		return err
	}
	idx, err := fnd.Select(cmd.Context(), finder.Lines(clips, m.Tuning(kind).LineLength))
	if errors.Is(err, finder.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	chosen := clips[idx]

	ctx, cancel = context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()
	switch {
	case v.GetBool("remove"):
		if _, err := c.Delete(ctx, chosen.ID); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
	case cmd.Flags().Changed("kind"):
		if err := c.Mark(ctx, chosen.ID, sel); err != nil {
			return fmt.Errorf("mark: %w", err)
		}
	default:
		if err := c.Update(ctx, chosen.ID); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}
	slog.Debug("menu selection applied", "id", chosen.ID, "finder", kind)
	return nil
}

func finderKind(cmd *cobra.Command, m *config.Menu) (config.Finder, error) {
	name := m.Finder
	if s, _ := cmd.Flags().GetString("finder"); cmd.Flags().Changed("finder") {
		name = s
	}
	return config.ParseFinder(name)
}
