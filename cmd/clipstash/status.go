package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/clip"
)

// statusReport is the --json shape of "status".
type statusReport struct {
	Transport string            `json:"transport"`
	Clips     int               `json:"clips"`
	Monitor   map[string]bool   `json:"monitor"`
	Current   map[string]uint64 `json:"current,omitempty"`
}

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Displays the history length, the monitor state of each selection and the
clip each selection currently holds.

If the daemon's IPC socket is present the request goes over it. Pass --addr
to target the TCP listener directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				report, err := collectStatus(ctx, c)
				if err != nil {
					return err
				}
				if v.GetBool("json") {
					enc, _ := json.MarshalIndent(report, "", "  ")
					fmt.Println(string(enc))
					return nil
				}
				printStatus(report)
				return nil
			})
		},
	}, v)
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func collectStatus(ctx context.Context, c *conn) (*statusReport, error) {
	n, err := c.Length(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	r := &statusReport{
		Transport: c.transport,
		Clips:     n,
		Monitor:   map[string]bool{},
		Current:   map[string]uint64{},
	}
	for _, k := range clip.Kinds {
		on, err := c.MonitorState(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		r.Monitor[k.String()] = on
		if cur, err := c.Current(ctx, k); err == nil {
			r.Current[k.String()] = cur.ID
		}
	}
	return r, nil
}

func printStatus(r *statusReport) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Transport:\t%s\n", r.Transport)
	fmt.Fprintf(w, "Clips:\t%d\n", r.Clips)
	for _, k := range clip.Kinds {
		cur := "-"
		if id, ok := r.Current[k.String()]; ok {
			cur = fmt.Sprintf("clip %d", id)
		}
		fmt.Fprintf(w, "%s:\t%s\tcurrent: %s\n", k, onOff(r.Monitor[k.String()]), cur)
	}
	_ = w.Flush()
}
