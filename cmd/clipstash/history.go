package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"go.klb.dev/clipstash/internal/clip"
)

// listEntry is the json/yaml shape of one clip in "list".
type listEntry struct {
	ID        uint64    `json:"id" yaml:"id"`
	Kind      clip.Kind `json:"kind" yaml:"kind"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      int       `json:"size" yaml:"size"`
	Text      string    `json:"text" yaml:"text"`
}

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "list",
		Short: "List the history, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				clips, err := c.List(ctx)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				if n := v.GetInt("limit"); n > 0 && len(clips) > n {
					clips = clips[:n]
				}
				return printClips(v.GetString("format"), v.GetInt("width"), clips)
			})
		},
	}, v)
	f := cmd.Flags()
	f.String("format", "table", "output format: table|json|yaml")
	f.Int("limit", 0, "show at most this many clips (0 = all)")
	f.Int("width", 80, "preview width in table output")
	return cmd
}

func printClips(format string, width int, clips []clip.Clip) error {
	switch format {
	case "json", "yaml":
		entries := make([]listEntry, len(clips))
		for i, c := range clips {
			entries[i] = listEntry{ID: c.ID, Kind: c.Kind, Timestamp: c.Timestamp, Size: len(c.Data), Text: c.Text()}
		}
		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		if len(clips) == 0 {
			fmt.Println("History is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "ID\tKIND\tSIZE\tCOPIED\tPREVIEW\n")
		for _, c := range clips {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", c.ID, c.Kind, len(c.Data), fmtAge(c.Timestamp), c.Preview(width))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func newGetCmd() *cobra.Command {
	v := viper.New()

	return clientCmd(&cobra.Command{
		Use:   "get <id>",
		Short: "Write a clip's content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				cl, err := c.Get(ctx, id)
				if err != nil {
					return fmt.Errorf("get: %w", err)
				}
				_, err = os.Stdout.Write(cl.Data)
				return err
			})
		},
	}, v)
}

func newMarkCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "mark <id>",
		Short: "Publish a clip to a selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				if err := c.Mark(ctx, id, kind); err != nil {
					return fmt.Errorf("mark: %w", err)
				}
				return nil
			})
		},
	}, v)
	addKindFlag(cmd, "clipboard")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	v := viper.New()

	return clientCmd(&cobra.Command{
		Use:   "update <id>",
		Short: "Publish a clip to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				if err := c.Update(ctx, id); err != nil {
					return fmt.Errorf("update: %w", err)
				}
				return nil
			})
		},
	}, v)
}

func newRemoveCmd() *cobra.Command {
	v := viper.New()

	return clientCmd(&cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove clips from the history",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, len(args))
			for i, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				for _, id := range ids {
					removed, err := c.Delete(ctx, id)
					if err != nil {
						return fmt.Errorf("remove %d: %w", id, err)
					}
					if !removed {
						slog.Warn("no such clip", "id", id)
					}
				}
				return nil
			})
		},
	}, v)
}

func newClearCmd() *cobra.Command {
	v := viper.New()

	return clientCmd(&cobra.Command{
		Use:   "clear",
		Short: "Remove every clip from the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				if err := c.Clear(ctx); err != nil {
					return fmt.Errorf("clear: %w", err)
				}
				return nil
			})
		},
	}, v)
}

func newLengthCmd() *cobra.Command {
	v := viper.New()

	return clientCmd(&cobra.Command{
		Use:   "length",
		Short: "Print the number of clips in the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				n, err := c.Length(ctx)
				if err != nil {
					return fmt.Errorf("length: %w", err)
				}
				fmt.Println(n)
				return nil
			})
		},
	}, v)
}
