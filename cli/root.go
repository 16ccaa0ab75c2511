package cli

import (
	"blueprints-server/config"
	"blueprints-server/filters"
	"blueprints-server/services"
	"blueprints-server/stores"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the configuration shared by all commands.
type RootOptions struct {
	LogLevel string
	Config   *config.Config
}

// NewRootCommand creates the root command of the blueprints CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "blueprints",
		Short:         "Store and serve blueprints",
		Long:          "Blueprints server: named drawings made of ordered points, grouped by author.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.Config = cfg

			if !cmd.Flags().Changed("loglevel") {
				opts.LogLevel = cfg.LogLevel
			}
			return setupLogging(opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAddPointCommand(opts))

	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(logLevel string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// openService builds the service from the loaded configuration. The
// returned cleanup closes the store when it holds resources.
func openService(ctx context.Context, opts *RootOptions) (*services.BlueprintService, func(), error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	filter, err := filters.New(cfg.Filter.Name, cfg.Filter.UndersamplingStep)
	if err != nil {
		return nil, nil, err
	}

	store, err := stores.GetStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if closer, ok := store.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close storage")
			}
		}
	}
	return services.NewBlueprintService(store, filter), cleanup, nil
}
