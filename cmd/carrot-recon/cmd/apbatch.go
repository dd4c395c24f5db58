package cmd

import (
	"github.com/carrotexpress/backoffice/pkg/apbatch"
	"github.com/carrotexpress/backoffice/pkg/aprecon"
	"github.com/spf13/cobra"
)

// apBatchCmd represents the ap-batch command.
var apBatchCmd = &cobra.Command{
	Use:   "ap-batch",
	Short: "Build the ACH upload workbooks from an AP payment run",
	Long: `Group the approved AP payment run by paying entity and payment date and
write one upload workbook per group into the ACHB folder.

When RECON_NACHA is enabled a NACHA credit file is written next to each
workbook using RECON_ODFI_ROUTING, RECON_COMPANY_ID and RECON_COMPANY_NAME.

Example:
  carrot-recon ap-batch --in ./AP_Payments_0115.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var originator *apbatch.Originator
		if cfg.NACHA.Enabled {
			originator = &apbatch.Originator{
				ODFIRouting: cfg.NACHA.ODFIRouting,
				CompanyID:   cfg.NACHA.CompanyID,
				CompanyName: cfg.NACHA.CompanyName,
			}
		}
		return runPipeline(cmd, apbatch.New(originator))
	},
}

// apReconCmd represents the ap-recon command.
var apReconCmd = &cobra.Command{
	Use:   "ap-recon",
	Short: "Reconcile AP payments against bank balances",
	Long: `Compare the AP report's payments per bank account with the bank balance
export and write the summary and discrepancy reports.

Example:
  carrot-recon ap-recon --in ./ap`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, aprecon.New())
	},
}
