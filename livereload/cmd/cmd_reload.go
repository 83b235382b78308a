package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"livereload.io/livereload"
	"livereload.io/livereload/client"
)

const requestTimeout = 10 * time.Second

func newClient(rootConfig *livereload.Config, address string) (*client.Client, error) {
	if address == "" {
		address = rootConfig.Address()
	}
	return client.New(address)
}

func reloadCmd(rootConfig *livereload.Config) *cobra.Command {
	var path, address string

	cmd := &cobra.Command{
		Use:     "reload",
		Short:   "Reload browsers connected to a running server.",
		Aliases: []string{"r"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootConfig, address)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			n, err := c.ForceReload(ctx, path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reloaded %d session(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Changed path reported to browsers. Defaults to the whole page.")
	cmd.Flags().StringVar(&address, "address", "", "Server address, host:port or URL. Defaults to --host and --port.")

	return cmd
}
