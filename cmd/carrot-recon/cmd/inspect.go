package cmd

import (
	"context"
	"fmt"

	"github.com/carrotexpress/backoffice/pkg/inspect"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Check input files without running a pipeline",
	Long: `Detect each input file's role, decode it and check its required columns.

Shows, per file:
- Detected role (or IGNORED when the name matches no export)
- Encoding it decoded as
- Data row count
- Missing required columns with a remediation hint

Example:
  carrot-recon inspect --in ./exports`,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	reports, err := inspect.Files(context.Background(), inputs)
	if err != nil {
		return err
	}
	if err := inspect.Print(cmd.OutOrStdout(), reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Role != "" && !r.OK() {
			failed++
		}
	}
	logger.WithField("files", len(reports)).Debug("inspection finished")
	if failed > 0 {
		return fmt.Errorf("%d file(s) cannot be used", failed)
	}
	return nil
}
