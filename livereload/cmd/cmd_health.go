package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"livereload.io/livereload"
)

func healthCmd(rootConfig *livereload.Config) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running server is watching files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootConfig, address)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			last, err := c.Health(ctx)
			if err != nil {
				return err
			}

			since := time.Since(last).Round(time.Second)
			if since < 0 {
				since = 0
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok, last cycle %s ago\n", since)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Server address, host:port or URL. Defaults to --host and --port.")

	return cmd
}
