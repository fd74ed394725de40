package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/db"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/security"
	"github.com/banshee-data/violation.report/internal/timeutil"
)

var exportFlags struct {
	filterFlags
	out string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored violations as CSV",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportFlags.out, "output", "o", "-", "Output file, - for stdout")
}

func runExport(cmd *cobra.Command, _ []string) error {
	list, err := queryEvidence(cmd, &exportFlags.filterFlags)
	if err != nil {
		return err
	}
	loc, err := exportFlags.location()
	if err != nil {
		return err
	}

	if exportFlags.out == "-" {
		return evidence.WriteCSV(cmd.OutOrStdout(), list, loc)
	}
	if err := security.ValidateExportPath(exportFlags.out); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := evidence.WriteCSV(&buf, list, loc); err != nil {
		return err
	}
	if err := (fsutil.OSFileSystem{}).WriteFileAtomic(exportFlags.out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d violations to %s\n", len(list), exportFlags.out)
	return nil
}

// queryEvidence opens the database and runs the filter built from ff.
func queryEvidence(cmd *cobra.Command, ff *filterFlags) ([]evidence.Artifact, error) {
	f, err := ff.filter(timeutil.RealClock{})
	if err != nil {
		return nil, err
	}
	database, err := openDB()
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return db.NewEvidenceStore(database).Query(cmd.Context(), f)
}
