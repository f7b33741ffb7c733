package main

import (
	"github.com/spf13/cobra"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE",
		Short: "Embed FILE and keep its blocks in sync with every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, shutdown, err := startApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown()

			path := args[0]
			if _, err := application.OpenFile(ctx, path, true); err != nil {
				return err
			}
			rep, err := application.Inspect(ctx, path)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)

			return application.Watch(ctx, path, func(err error) {
				if err != nil {
					return
				}
				if rep, err := application.Inspect(ctx, path); err == nil {
					printReport(cmd.OutOrStdout(), rep)
				}
			})
		},
	}
}
