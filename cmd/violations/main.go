// violations runs the traffic-violation pipeline over detection feeds and
// serves the resulting evidence.
//
// Usage:
//
//	violations run --db violations.db --config tuning.yaml cam-1=feeds/cam1.jsonl feeds/cam2.jsonl
//	violations serve --listen :8080 --units kph --timezone Asia/Kolkata
//	violations migrate status
//	violations export --range day --kind overspeeding -o today.csv
//	violations report --range week -o week.png
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/monitoring"
	"github.com/banshee-data/violation.report/internal/version"
)

var globalFlags struct {
	dbPath     string
	configPath string
	debug      bool
}

var rootCmd = &cobra.Command{
	Use:   "violations",
	Short: "Detect traffic violations in camera detection feeds",
	Long: "violations tracks vehicles and riders across frames, classifies traffic\n" +
		"violations and stores deduplicated evidence in a SQLite database.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		monitoring.SetDebug(globalFlags.debug)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.dbPath, "db", "violations.db", "Path to the SQLite evidence database")
	f.StringVar(&globalFlags.configPath, "config", "", "Tuning config file (.json, .yaml or .yml); defaults apply when empty")
	f.BoolVar(&globalFlags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
