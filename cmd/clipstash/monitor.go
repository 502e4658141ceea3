package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clipstash/internal/clip"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Enable, disable or inspect selection monitoring",
	}
	cmd.AddCommand(
		newMonitorToggleCmd("enable", "Start recording a selection", (*conn).EnableMonitor),
		newMonitorToggleCmd("disable", "Stop recording a selection", (*conn).DisableMonitor),
		newMonitorToggleCmd("state", "Show whether selections are recorded", (*conn).MonitorState),
	)
	return cmd
}

type monitorCall func(c *conn, ctx context.Context, kind clip.Kind, opts ...grpc.CallOption) (bool, error)

// newMonitorToggleCmd applies call to --kind, or to both selections when
// --kind is not given.
func newMonitorToggleCmd(use, short string, call monitorCall) *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := clip.Kinds
			if cmd.Flags().Changed("kind") {
				k, err := kindFlag(cmd)
				if err != nil {
					return err
				}
				kinds = []clip.Kind{k}
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				for _, k := range kinds {
					on, err := call(c, ctx, k)
					if err != nil {
						return fmt.Errorf("monitor %s %s: %w", use, k, err)
					}
					fmt.Printf("%s\t%s\n", k, onOff(on))
				}
				return nil
			})
		},
	}, v)
	addKindFlag(cmd, "")
	return cmd
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
