//go:build !unix

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the clipboard history daemon (unix only)",
		RunE: func(*cobra.Command, []string) error {
			return errors.New("the daemon needs a unix system")
		},
	}
}
