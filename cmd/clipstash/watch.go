package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/follow"
	"go.klb.dev/clipstash/internal/rpc"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "watch",
		Short: "Print clips as they are recorded",
		Long: `Streams every clip the daemon records until interrupted. The stream is
re-established automatically when the daemon restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error { return runWatch(cmd, v) },
	}, v)
	cmd.Flags().Bool("json", false, "print one JSON object per clip")
	cmd.Flags().Int("width", 80, "preview width")
	return cmd
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	c, err := dial(cmd, v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jsonOut := v.GetBool("json")
	width := v.GetInt("width")
	enc := json.NewEncoder(os.Stdout)
	f := follow.New(c.Client, func(ev *rpc.WatchEvent) {
		if jsonOut {
			_ = enc.Encode(listEntry{
				ID:        ev.Clip.ID,
				Kind:      ev.Clip.Kind,
				Timestamp: ev.Clip.Timestamp,
				Size:      len(ev.Clip.Data),
				Text:      ev.Clip.Text(),
			})
			return
		}
		fmt.Printf("%d\t%s\t%s\n", ev.Clip.ID, ev.Clip.Kind, ev.Clip.Preview(width))
	})
	if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
