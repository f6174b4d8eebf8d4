package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sessmaint/internal/maintain"
)

var migrateFormat string

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite every session record into the canonical schema",
	Long: `Migrate validates and coerces each record into the canonical shape,
discarding invalid optional fields. A record that cannot be migrated is kept
in its original form and counted. The pass is backup-guarded and evicts or
compacts nothing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, log, err := loadSetup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}

		manager := maintain.New(maintain.OptionsFromConfig(cfg), log, nil)
		report, err := manager.Migrate()
		if err != nil {
			if maintain.IsStoreMissing(err) {
				exitMissingStore(cfg)
				return
			}
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}

		if err := printReport(report, migrateFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFormat, "format", "text", "report format (text, json, yaml)")
}
