package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sessmaint/internal/maintain"
)

var (
	cleanupFormat            string
	cleanupMaxAgeHours       int64
	cleanupMaxInactiveHours  int64
	cleanupSizeThreshold     int
	cleanupAcceptancePercent float64
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a full maintenance pass over the session store",
	Long: `Cleanup snapshots the store, evicts sessions that exceeded the age
or inactivity ceiling, compacts oversized survivors when the saving is
significant, and atomically rewrites the file. A failed pass restores the
snapshot and leaves the original store intact.`,
	Run: runCleanupCmd,
}

// runCleanupCmd backs both the cleanup subcommand and a bare invocation of
// the root command, where cleanup is the default mode.
func runCleanupCmd(cmd *cobra.Command, args []string) {
	cfg, log, err := loadSetup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if cleanupMaxAgeHours > 0 {
		cfg.Policy.MaxSessionAgeHours = cleanupMaxAgeHours
	}
	if cleanupMaxInactiveHours > 0 {
		cfg.Policy.MaxInactiveAgeHours = cleanupMaxInactiveHours
	}
	if cleanupSizeThreshold > 0 {
		cfg.Optimizer.SessionSizeThresholdBytes = cleanupSizeThreshold
	}
	if cmd.Flags().Changed("acceptance-percent") {
		cfg.Optimizer.AcceptancePercent = cleanupAcceptancePercent
	}

	manager := maintain.New(maintain.OptionsFromConfig(cfg), log, nil)
	report, err := manager.Cleanup()
	if err != nil {
		if maintain.IsStoreMissing(err) {
			exitMissingStore(cfg)
			return
		}
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		os.Exit(1)
	}

	if err := printReport(report, cleanupFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupFormat, "format", "text", "report format (text, json, yaml)")
	cleanupCmd.Flags().Int64Var(&cleanupMaxAgeHours, "max-age-hours", 0, "absolute session age ceiling in hours (overrides config)")
	cleanupCmd.Flags().Int64Var(&cleanupMaxInactiveHours, "max-inactive-hours", 0, "inactivity ceiling in hours (overrides config)")
	cleanupCmd.Flags().IntVar(&cleanupSizeThreshold, "size-threshold", 0, "optimize sessions larger than this many bytes (overrides config)")
	cleanupCmd.Flags().Float64Var(&cleanupAcceptancePercent, "acceptance-percent", 10, "minimum size reduction percent to keep a compacted record")
}
