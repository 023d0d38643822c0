package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/telehealth-gateway/internal/config"
	"github.com/example/telehealth-gateway/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the global flags shared by every command.
type cli struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	app := &cli{}

	root := &cobra.Command{
		Use:           "telehealthd",
		Short:         "Telehealth room access and presence service",
		Long:          `telehealthd decides who may join the video room of an appointment, as whom, and whether the provider is present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "path to a TOML or YAML config file")
	root.PersistentFlags().AddFlagSet(config.FlagSet())

	root.AddCommand(
		newServeCommand(app),
		newMigrateCommand(app),
		newSealSecretCommand(),
		newMintIdentityCommand(app),
		newJoinCommand(),
	)
	return root
}

// load resolves the configuration and a logger at the configured level.
func (app *cli) load(cmd *cobra.Command, logOutput io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags(), app.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level, logOutput), nil
}

// flagLogger builds a logger from --log-level alone, for commands that run
// without service configuration.
func flagLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	name, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.New(level, w), nil
}
