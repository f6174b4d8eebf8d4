package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sessmaint/internal/maintain"
)

var analyzeFormat string

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Inspect the session store without modifying it",
	Long: `Analyze loads the session store, prints aggregate statistics and
estimates what a cleanup pass would remove and save. It performs no write
and takes no backup.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := loadSetup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}

		manager := maintain.New(maintain.OptionsFromConfig(cfg), log, nil)
		report, err := manager.Analyze()
		if err != nil {
			if maintain.IsStoreMissing(err) {
				exitMissingStore(cfg)
				return
			}
			fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
			os.Exit(1)
		}

		if err := printReport(report, analyzeFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "report format (text, json, yaml)")
}
