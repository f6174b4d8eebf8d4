package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sessmaint/internal/config"
	"github.com/aatumaykin/sessmaint/internal/logger"
	"github.com/aatumaykin/sessmaint/internal/stats"
)

var (
	flagConfigPath string
	flagStorePath  string
	flagLogLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sessmaint",
	Short: "Sessmaint - session store maintenance for chat bots",
	Long: `Sessmaint inspects, shrinks, expires and migrates the JSON session
store of a chat bot. It never rewrites the store without a snapshot on disk
and restores the snapshot when a pass fails.

Invoked without a subcommand, sessmaint runs a cleanup pass.`,
	Version: Version,
	Run:     runCleanupCmd,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "path to config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store", "", "path to the session store file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadSetup loads configuration (defaults when no file is given), applies
// flag overrides and builds the logger every subcommand shares.
func loadSetup() (*config.Config, *logger.Logger, error) {
	var cfg *config.Config
	var err error
	if flagConfigPath != "" {
		cfg, err = config.Load(flagConfigPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagStorePath != "" {
		cfg.Store.Path = flagStorePath
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", e)
		}
		return nil, nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// printReport renders a pass report in the requested format.
func printReport(report fmt.Stringer, format string) error {
	if format == "" || format == "text" {
		fmt.Println(report.String())
		return nil
	}
	data, err := stats.Marshal(report, format)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// exitMissingStore prints the friendly no-op message for an absent store.
func exitMissingStore(cfg *config.Config) {
	fmt.Printf("Session store %s does not exist, nothing to do.\n", cfg.Store.Path)
}
