// Package cmd provides CLI commands for carrot-recon.
package cmd

import (
	"fmt"
	"os"

	"github.com/carrotexpress/backoffice/pkg/config"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	debug    bool
	logJSON  bool
	outDir   string
	inputs   []string
	registry string
	noAudit  bool

	cfg    *config.Config
	logger *logrus.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "carrot-recon",
	Short: "Back-office reconciliation and journal entry toolkit",
	Long: `carrot-recon turns POS, delivery platform, bank and ERP exports into
reconciliation reports, journal entry imports, bank upload files and
payroll batches.

Every command reads the files given with --in (directories are expanded),
detects each file's role from its name and writes its outputs under --out.
Nothing is written when a run fails.

Example:
  carrot-recon inspect --in ./exports
  carrot-recon net-sales --in ./exports --out ./reports
  carrot-recon delivery --platform doordash --in ./exports`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		logger = pipeline.NewLogger(cfg.Debug, cfg.LogJSON, os.Stderr)
		logger.WithFields(logrus.Fields{
			"command": cmd.Name(),
			"out":     cfg.Output.Root,
			"audit":   cfg.Output.Audit,
		}).Debug("configuration loaded")

		return cfg.Validate([]string{"output", "root"})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "output root (default RECON_OUTPUT_ROOT or ./output)")
	rootCmd.PersistentFlags().StringSliceVar(&inputs, "in", []string{"."}, "input files or directories")
	rootCmd.PersistentFlags().StringVar(&registry, "registry", "", "location registry YAML (default is built in)")
	rootCmd.PersistentFlags().BoolVar(&noAudit, "no-audit", false, "do not write run_audit.db")

	// Add subcommands
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(dueToFromCmd)
	rootCmd.AddCommand(transferJECmd)
	rootCmd.AddCommand(apBatchCmd)
	rootCmd.AddCommand(apReconCmd)
	rootCmd.AddCommand(netSalesCmd)
	rootCmd.AddCommand(deliveryCmd)
	rootCmd.AddCommand(royaltyCmd)
	rootCmd.AddCommand(payrollCmd)
}

// applyFlags lets explicit flags override the environment.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	if outDir != "" {
		cfg.Output.Root = outDir
	}
	if registry != "" {
		cfg.Registry = registry
	}
	if noAudit {
		cfg.Output.Audit = false
	}
}

// loadRegistry returns the configured registry or the built-in one.
func loadRegistry() (*mapping.Registry, error) {
	if cfg.Registry == "" {
		return mapping.Default(), nil
	}
	data, err := os.ReadFile(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	reg, err := mapping.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", cfg.Registry, err)
	}
	return reg, nil
}
