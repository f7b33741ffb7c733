package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/embedsync/internal/app"
)

type globalFlags struct {
	configPath string
	logLevel   string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "embedsync",
		Short:         "Embed fenced code blocks of a markdown file into language projects",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (.toml or .yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(
		newInspectCmd(&flags),
		newWatchCmd(&flags),
		newExecCmd(&flags),
	)
	return root
}

// startApp creates and starts an application. The returned function shuts
// it down.
func startApp(ctx context.Context, flags *globalFlags, logOutput io.Writer) (*app.Application, func(), error) {
	opts := app.Options{
		ConfigPath: flags.configPath,
		LogLevel:   flags.logLevel,
		LogOutput:  logOutput,
	}
	if flags.debug {
		opts.LogLevel = "debug"
	}

	application, err := app.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	application.Start(ctx)
	return application, application.Shutdown, nil
}
