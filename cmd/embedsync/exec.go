package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/embedsync/internal/analysis"
)

type execFlags struct {
	block   int
	command string
	args    []string
	write   bool
}

func newExecCmd(flags *globalFlags) *cobra.Command {
	var ef execFlags

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Run a language command on one block of FILE",
		Long: `Embeds FILE, waits for the command adapter of the selected block and
runs the command. The resulting block text is printed; with --write the
file is rewritten with every block's current text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(ef.command, ef.args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, shutdown, err := startApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown()

			path := args[0]
			d, err := application.OpenFile(ctx, path, true)
			if err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(ctx, application.Config().Commands.ViewTimeout.Std()*2)
			defer cancel()
			if err := application.WaitReady(waitCtx, path, ef.block); err != nil {
				return err
			}

			res, err := application.Exec(ctx, path, ef.block, command)
			if err != nil {
				return err
			}
			if res.IsError() {
				return fmt.Errorf("%s: %w", command.Name, res.Error)
			}
			if res.Message != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
			}

			block, _ := d.Host().Block(ef.block)
			fmt.Fprintln(cmd.OutOrStdout(), block.Buffer().Text())

			if ef.write && res.Status == analysis.StatusOK {
				out, err := application.Render(ctx, path)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, out, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&ef.block, "block", "b", 0, "zero-based index of the fenced block")
	cmd.Flags().StringVarP(&ef.command, "command", "n", "", "command name")
	cmd.Flags().StringArrayVarP(&ef.args, "arg", "a", nil, "command argument as key=value (repeatable)")
	cmd.Flags().BoolVarP(&ef.write, "write", "w", false, "write the updated blocks back to FILE")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func parseCommand(name string, pairs []string) (analysis.Command, error) {
	cmd := analysis.Command{Name: name}
	if len(pairs) == 0 {
		return cmd, nil
	}
	cmd.Args = make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return analysis.Command{}, fmt.Errorf("invalid --arg %q: want key=value", p)
		}
		cmd.Args[k] = v
	}
	return cmd, nil
}
