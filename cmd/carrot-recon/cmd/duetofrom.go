package cmd

import (
	"time"

	"github.com/carrotexpress/backoffice/pkg/duetofrom"
	"github.com/spf13/cobra"
)

var transferDate string

// dueToFromCmd represents the due-to-from command.
var dueToFromCmd = &cobra.Command{
	Use:   "due-to-from",
	Short: "Match inter-entity ACH transfers and write the due-to/from entries",
	Long: `Read the Due To/From rows of the ERP general ledger export, pair each
entity's balance with its reciprocal across legal entities and write the
transfer journal entries, CNB batches and a detail workbook.

Example:
  carrot-recon due-to-from --in ./gl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, duetofrom.New())
	},
}

// transferJECmd represents the transfer-je command.
var transferJECmd = &cobra.Command{
	Use:   "transfer-je",
	Short: "Write journal entries for CNB and funds transfers",
	Long: `Turn the CNB transfer and funds transfer inputs into balanced
journal entries dated --date (default today).

Example:
  carrot-recon transfer-je --date 02/04/2025 --in ./transfers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var date time.Time
		if transferDate != "" {
			var err error
			if date, err = time.Parse("01/02/2006", transferDate); err != nil {
				return err
			}
		}
		return runPipeline(cmd, duetofrom.NewTransferJE(date))
	},
}

func init() {
	transferJECmd.Flags().StringVar(&transferDate, "date", "", "entry date (MM/DD/YYYY)")
}
