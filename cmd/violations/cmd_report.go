package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/report"
	"github.com/banshee-data/violation.report/internal/security"
)

var reportFlags struct {
	filterFlags
	out   string
	title string
	width float64
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a PNG summary of stored violations",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportFlags.register(reportCmd)
	f := reportCmd.Flags()
	f.StringVarP(&reportFlags.out, "output", "o", "violations.png", "Output PNG file")
	f.StringVar(&reportFlags.title, "title", "", "Report title")
	f.Float64Var(&reportFlags.width, "width", 10, "Width in inches")
}

func runReport(cmd *cobra.Command, _ []string) error {
	if err := security.ValidateExportPath(reportFlags.out); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	u, err := reportFlags.displayUnits(cfg)
	if err != nil {
		return err
	}
	loc, err := reportFlags.location()
	if err != nil {
		return err
	}
	list, err := queryEvidence(cmd, &reportFlags.filterFlags)
	if err != nil {
		return err
	}

	opts := report.Options{
		Title:    reportFlags.title,
		Units:    u,
		Location: loc,
		Width:    vg.Length(reportFlags.width) * vg.Inch,
	}
	if err := report.Save(fsutil.OSFileSystem{}, reportFlags.out, list, opts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d violations)\n", reportFlags.out, len(list))
	return nil
}
