package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"livereload.io/livereload"
	"livereload.io/livereload/about"
)

type rootOptions struct {
	configPath string
	watches    []string
	execs      []string
	delay      livereload.Delay
}

func Cmd() *cobra.Command {
	rootConfig := &livereload.Config{}
	options := &rootOptions{}

	cmd := &cobra.Command{
		Use:     about.Name + " [root]",
		Short:   "Serve a directory or an application and reload browsers when watched files change.",
		Version: about.Version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := buildConfig(cmd, rootConfig, options, args)
			if err != nil {
				return err
			}

			server, err := livereload.New(config, nil)
			if err != nil {
				return err
			}

			if server.Registry().Len() == 0 && config.Proxy == "" {
				server.Watch(config.Root, nil, options.delay)
			}

			if options.configPath != "" {
				if err := watchConfigFile(server, options.configPath); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				interrupt := make(chan os.Signal, 1)
				signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(interrupt)
				select {
				case <-interrupt:
					cancel()
				case <-ctx.Done():
				}
			}()

			return server.Serve(ctx)
		},
	}

	cmd.PersistentFlags().StringVar(&rootConfig.Host, "host", livereload.DefaultHost, "Host to bind to.")
	cmd.PersistentFlags().IntVarP(&rootConfig.Port, "port", "p", livereload.DefaultPort, "Port serving content (and live endpoints unless --live-port is set).")
	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "YAML config file. Flags override its values.")
	cmd.Flags().IntVar(&rootConfig.LivePort, "live-port", 0, "Serve live endpoints on a separate port.")
	cmd.Flags().StringVar(&rootConfig.Root, "root", "", "Directory to serve. Same as the positional argument.")
	cmd.Flags().StringVar(&rootConfig.Proxy, "proxy", "", "Reverse proxy to this application URL instead of serving a directory.")
	cmd.Flags().StringArrayVarP(&options.watches, "watch", "w", nil, "Path, directory, glob or pkg:<import path> to watch. Repeatable.")
	cmd.Flags().StringArrayVarP(&options.execs, "exec", "x", nil, "<pattern>=<command> to run when pattern changes. Repeatable.")
	cmd.Flags().Var(&options.delay, "delay", "Reload delay for --watch and --exec entries (seconds, duration, or forever).")
	cmd.Flags().DurationVar(&rootConfig.Interval, "interval", time.Second, "Polling interval.")
	cmd.Flags().BoolVar(&rootConfig.Notify, "notify", false, "Wake up on file system notifications between polls.")
	cmd.Flags().BoolVar(&rootConfig.Open, "open", false, "Open the served URL in the system browser.")
	cmd.Flags().BoolVar(&rootConfig.NoColors, "no-colors", false, "Disable colored log output.")

	cmd.AddCommand(
		reloadCmd(rootConfig),
		healthCmd(rootConfig),
	)

	return cmd
}

// buildConfig loads the config file, if any, and applies flags that were set explicitly on top of it.
func buildConfig(cmd *cobra.Command, flags *livereload.Config, options *rootOptions, args []string) (*livereload.Config, error) {
	config := &livereload.Config{}
	if options.configPath != "" {
		loaded, err := livereload.LoadConfig(options.configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	changed := cmd.Flags().Changed
	if changed("host") || config.Host == "" {
		config.Host = flags.Host
	}
	if changed("port") || config.Port == 0 {
		config.Port = flags.Port
	}
	if changed("live-port") {
		config.LivePort = flags.LivePort
	}
	if changed("root") {
		config.Root = flags.Root
	}
	if len(args) > 0 {
		config.Root = args[0]
	}
	if changed("proxy") {
		config.Proxy = flags.Proxy
	}
	if changed("interval") || config.Interval == 0 {
		config.Interval = flags.Interval
	}
	if changed("notify") {
		config.Notify = flags.Notify
	}
	if changed("open") {
		config.Open = flags.Open
	}
	if changed("no-colors") {
		config.NoColors = flags.NoColors
	}

	for _, pattern := range options.watches {
		config.Watches = append(config.Watches, livereload.WatchDefinition{
			Pattern: pattern,
			Delay:   options.delay,
		})
	}
	for _, exec := range options.execs {
		definition, err := parseExec(exec, options.delay)
		if err != nil {
			return nil, err
		}
		config.Watches = append(config.Watches, definition)
	}

	return config, nil
}

// parseExec parses "<pattern>=<command>".
func parseExec(s string, delay livereload.Delay) (livereload.WatchDefinition, error) {
	i := strings.Index(s, "=")
	if i <= 0 || strings.TrimSpace(s[i+1:]) == "" {
		return livereload.WatchDefinition{}, errors.Errorf("invalid --exec [%s], expected <pattern>=<command>", s)
	}
	return livereload.WatchDefinition{
		Pattern: strings.TrimSpace(s[:i]),
		Delay:   delay,
		Shell:   &livereload.ShellDefinition{Command: strings.TrimSpace(s[i+1:])},
	}, nil
}

// watchConfigFile reports edits of the config file. Changes take effect only after restart.
func watchConfigFile(server *livereload.Server, path string) error {
	hash, err := configFileHash(path)
	if err != nil {
		return err
	}

	log := server.Config().Logger
	server.Watch(path, livereload.Func(func() error {
		current, err := configFileHash(path)
		if err != nil {
			return err
		}
		if current != hash {
			log.Infof("config [%s] changed, restart to apply", path)
			hash = current
		}
		return nil
	}), livereload.Forever)

	return nil
}

func configFileHash(path string) (uint64, error) {
	config, err := livereload.LoadConfig(path)
	if err != nil {
		return 0, err
	}
	return config.Hash()
}
