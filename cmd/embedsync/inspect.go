package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/embedsync/internal/app"
)

func newInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Embed the fenced blocks of FILE and print the resulting projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, shutdown, err := startApp(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown()

			if _, err := application.OpenFile(ctx, args[0], true); err != nil {
				return err
			}
			rep, err := application.Inspect(ctx, args[0])
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func printReport(w io.Writer, rep app.Report) {
	fmt.Fprintf(w, "%s (workspace %s)\n", rep.Path, rep.Workspace)
	for _, p := range rep.Projects {
		status := ""
		if p.Degraded {
			status = " degraded"
		}
		fmt.Fprintf(w, "project %s %s %q documents=%d references=[%s]%s\n",
			p.Kind, p.ID, p.Name, p.Documents, strings.Join(p.References, ", "), status)
	}
	for _, b := range rep.Blocks {
		if !b.Embedded {
			fmt.Fprintf(w, "block %d %q not embedded\n", b.Index, b.ContentType)
			continue
		}
		fmt.Fprintf(w, "block %d %s document=%s length=%d engine=%d converged=%t commands=%s",
			b.Index, b.Kind, b.Document, b.Length, b.EngineLength, b.Converged, b.State)
		if b.Err != nil {
			fmt.Fprintf(w, " (%v)", b.Err)
		}
		fmt.Fprintln(w)
	}
}
