package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "copy [text...]",
		Short: "Add text to the history and the selection (like pbcopy)",
		Long: `Inserts the arguments, or stdin when there are none, into the history and
publishes it to the selection named by --kind.`,
		RunE: func(cmd *cobra.Command, args []string) error { return runCopy(cmd, v, args) },
	}, v)
	addKindFlag(cmd, "clipboard")
	return cmd
}

func runCopy(cmd *cobra.Command, v *viper.Viper, args []string) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}
	var data []byte
	if len(args) > 0 {
		data = []byte(strings.Join(args, " "))
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
	if len(data) == 0 {
		return nil
	}

	return withConn(cmd, v, func(ctx context.Context, c *conn) error {
		id, inserted, err := c.Insert(ctx, kind, data)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		slog.Debug("copied", "id", id, "inserted", inserted, "kind", kind, "transport", c.transport)
		return nil
	})
}

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := clientCmd(&cobra.Command{
		Use:   "paste",
		Short: "Write the current clip to stdout (like pbpaste)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			return withConn(cmd, v, func(ctx context.Context, c *conn) error {
				cl, err := c.Current(ctx, kind)
				if err != nil {
					return fmt.Errorf("paste: %w", err)
				}
				_, err = os.Stdout.Write(cl.Data)
				return err
			})
		},
	}, v)
	addKindFlag(cmd, "clipboard")
	return cmd
}
