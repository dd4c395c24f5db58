package cmd

import (
	"fmt"

	"github.com/carrotexpress/backoffice/pkg/delivery"
	"github.com/carrotexpress/backoffice/pkg/netsales"
	"github.com/carrotexpress/backoffice/pkg/payroll"
	"github.com/carrotexpress/backoffice/pkg/royalty"
	"github.com/spf13/cobra"
)

var platform string

// netSalesCmd represents the net-sales command.
var netSalesCmd = &cobra.Command{
	Use:   "net-sales",
	Short: "Reconcile POS net sales against the ERP",
	Long: `Compare POS orders and the daily sales summary with the ERP general
ledger per location and day, and write the net sales workbook.

Example:
  carrot-recon net-sales --in ./sales`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, netsales.New())
	},
}

// deliveryCmd represents the delivery command.
var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Write delivery platform journal entries",
	Long: `Build DoorDash, GrubHub and UberEats sales and deposit journal entries.
Without --platform every platform that has an export is processed.

Example:
  carrot-recon delivery --platform grubhub --in ./delivery`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := delivery.New(platform)
		if !ok {
			return fmt.Errorf("unknown platform %q (want doordash, grubhub, ubereats or all)", platform)
		}
		return runPipeline(cmd, p)
	},
}

// royaltyCmd represents the royalty command.
var royaltyCmd = &cobra.Command{
	Use:   "royalty",
	Short: "Compute royalties, check sales tax and write AR/AP invoices",
	Long: `Compute franchisor royalties and leadership fees from the P&L, cross-check
sales and resort tax against the POS and the ERP, and write the royalty
workbook plus the AR/AP invoice import.

Example:
  carrot-recon royalty --in ./month-end`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, royalty.New())
	},
}

// payrollCmd represents the payroll command.
var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Compute payroll and write the ADP batch files",
	Long: `Aggregate time entries against the payroll dictionary, add tips and
write one ADP import file per company code, the payroll summary, the
workers' comp report and the warnings workbook.

Example:
  carrot-recon payroll --in ./payroll`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, payroll.New())
	},
}

func init() {
	deliveryCmd.Flags().StringVar(&platform, "platform", "all", "doordash, grubhub, ubereats or all")
}
