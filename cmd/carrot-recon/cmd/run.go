package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxListedWarnings bounds the warnings printed after a run; all of them stay in
// the audit manifest.
const maxListedWarnings = 20

// runPipeline runs p in the background, streams its progress and prints the outcome.
func runPipeline(cmd *cobra.Command, p pipeline.Pipeline) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	events := pipeline.Start(ctx, p, pipeline.Options{
		Inputs:     inputs,
		OutputRoot: cfg.Output.Root,
		Audit:      cfg.Output.Audit,
		Logger:     logger,
		Registry:   reg,
	})
	done := pipeline.Wait(events, func(ev pipeline.Progress) {
		if ev.Level == logrus.InfoLevel && !cfg.LogJSON {
			fmt.Fprintf(out, "  %s\n", ev.Message)
		}
	})

	if !done.OK {
		fmt.Fprintf(out, "\n%s failed: %v\n", p.Name(), done.Err)
		fmt.Fprintf(out, "  %s\n", reconerr.Remediation(done.Err))
		return fmt.Errorf("%s failed: %w", p.Name(), done.Err)
	}
	printResult(out, done.Result)
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "\n=== %s ===\n", res.Pipeline)
	fmt.Fprintf(w, "Run:      %s\n", res.RunID)
	fmt.Fprintf(w, "Summary:  %s\n", res.Summary)
	fmt.Fprintf(w, "Files:    %d\n", len(res.Artifacts))
	for _, a := range res.Artifacts {
		fmt.Fprintf(w, "  %s (%d rows)\n", a.RelPath, a.Rows)
	}
	fmt.Fprintf(w, "Warnings: %d\n", len(res.Warnings))
	for i, warn := range res.Warnings {
		if i == maxListedWarnings {
			fmt.Fprintf(w, "  ... %d more\n", len(res.Warnings)-maxListedWarnings)
			break
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", warn.Kind, warn.Source, warn.Message)
	}
	fmt.Fprintln(w)
}
