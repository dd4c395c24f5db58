// Package pathutil provides centralized path management for emitted reports.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PathResolver manages the output layout of one invocation.
type PathResolver struct {
	outputRoot string
	auditName  string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// OutputRoot is the directory every report is written under (e.g., ./output)
	OutputRoot string
	// AuditName is the file name of the run manifest; empty disables it
	AuditName string
}

// DefaultAuditName is the run manifest file name.
const DefaultAuditName = "run_audit.db"

// New creates a new PathResolver with the given configuration.
// If OutputRoot is empty, it defaults to ./output
func New(config Config) *PathResolver {
	root := config.OutputRoot
	if root == "" {
		root = "output"
	}
	return &PathResolver{
		outputRoot: root,
		auditName:  config.AuditName,
	}
}

// GetOutputRoot returns the output root directory.
func (p *PathResolver) GetOutputRoot() string {
	return p.outputRoot
}

// GetAuditName returns the manifest file name, or "" when disabled.
func (p *PathResolver) GetAuditName() string {
	return p.auditName
}

// GetStagingDir returns the hidden directory a run writes into before commit.
// Example: output/.staging-1b4e28ba-2fa1-11d2-883f-0016d3cca427
func (p *PathResolver) GetStagingDir(runID string) string {
	return filepath.Join(p.outputRoot, ".staging-"+runID)
}

// ACHBDir returns the AP batch folder named for the day after now.
// Example: ACHB 01-16-2025
func ACHBDir(now time.Time) string {
	return "ACHB " + now.AddDate(0, 0, 1).Format("01-02-2006")
}

// ADPDir returns the ADP batch folder for a payroll run.
// Example: ADP_Cargue_20250131_153000
func ADPDir(ts time.Time) string {
	return "ADP_Cargue_" + Timestamp(ts)
}

// CNBFileName returns the n-th transfer batch file name (n starts at 1).
// Example: CNB-2_Transfer_02042025.csv
func CNBFileName(n int, date time.Time) string {
	return fmt.Sprintf("CNB-%d_Transfer_%s.csv", n, date.Format("01022006"))
}

// Dated returns "<prefix>_<MMDDYYYY><ext>".
// Example: Dated("AP_Recon_Summary", d, ".csv") -> AP_Recon_Summary_02042025.csv
func Dated(prefix string, date time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", prefix, date.Format("01022006"), ext)
}

// Timestamp renders a run time for file names.
func Timestamp(ts time.Time) string {
	return ts.Format("20060102_150405")
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}
