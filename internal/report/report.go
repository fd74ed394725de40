// Package report renders a static PNG summary of stored violations: counts
// per kind, counts per local hour and, when any were measured, the
// distribution of overspeeding speeds.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/violations"
)

// Options control the rendered report.
type Options struct {
	Title    string
	Units    string         // speed display units
	Location *time.Location // hourly buckets; nil is UTC
	Width    vg.Length
	PanelH   vg.Length // height of each panel
	Bins     int       // speed histogram bins
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Traffic violations"
	}
	if !units.IsValid(o.Units) {
		o.Units = units.KPH
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Width <= 0 {
		o.Width = 10 * vg.Inch
	}
	if o.PanelH <= 0 {
		o.PanelH = 4 * vg.Inch
	}
	if o.Bins <= 0 {
		o.Bins = 12
	}
	return o
}

var (
	barColor  = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	lineColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// Render writes a PNG summarising artifacts to w.
func Render(w io.Writer, artifacts []evidence.Artifact, opts Options) error {
	opts = opts.withDefaults()
	st := evidence.ComputeStats(artifacts, opts.Location)

	var panels []*plot.Plot
	kinds, err := kindPlot(st, opts)
	if err != nil {
		return err
	}
	panels = append(panels, kinds)
	hourly, err := hourlyPlot(st, opts)
	if err != nil {
		return err
	}
	panels = append(panels, hourly)

	var speeds plotter.Values
	for _, a := range artifacts {
		if a.Kind == violations.KindOverspeeding && a.SpeedMPS > 0 {
			speeds = append(speeds, units.ConvertSpeed(a.SpeedMPS, opts.Units))
		}
	}
	if len(speeds) > 0 {
		hist, err := speedPlot(speeds, opts)
		if err != nil {
			return err
		}
		panels = append(panels, hist)
	}

	rows := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		rows[i] = []*plot.Plot{p}
	}
	img := vgimg.New(opts.Width, opts.PanelH*vg.Length(len(panels)))
	dc := draw.New(img)
	pad := 4 * vg.Millimeter
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadX:      pad,
		PadY:      2 * pad,
		PadTop:    pad,
		PadBottom: pad,
		PadLeft:   pad,
		PadRight:  pad,
	}
	canvases := plot.Align(rows, tiles, dc)
	for i, p := range panels {
		p.Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Save renders the report and writes it atomically to path.
func Save(fsys fsutil.FileSystem, path string, artifacts []evidence.Artifact, opts Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, artifacts, opts); err != nil {
		return err
	}
	if err := fsys.WriteFileAtomic(path, buf.Bytes(), os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func kindPlot(st evidence.Stats, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %d total", opts.Title, st.Total)
	p.Y.Label.Text = "Count"
	p.Y.Min = 0

	vals := make(plotter.Values, len(violations.AllKinds))
	names := make([]string, len(violations.AllKinds))
	for i, k := range violations.AllKinds {
		vals[i] = float64(st.ByKind[k])
		names[i] = k.Label()
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(28))
	if err != nil {
		return nil, fmt.Errorf("failed to build kind chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)
	return p, nil
}

func hourlyPlot(st evidence.Stats, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Violations per hour (" + opts.Location.String() + ")"
	p.Y.Label.Text = "Count"
	p.Y.Min = 0
	p.X.Tick.Marker = plot.TimeTicks{
		Format: "Jan 2\n15:04",
		Time:   func(t float64) time.Time { return time.Unix(int64(t), 0).In(opts.Location) },
	}
	p.Add(plotter.NewGrid())
	if len(st.Hourly) == 0 {
		return p, nil
	}

	pts := make(plotter.XYs, len(st.Hourly))
	for i, h := range st.Hourly {
		pts[i] = plotter.XY{X: float64(h.Hour.Unix()), Y: float64(h.Count)}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build hourly chart: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(1)
	points.Color = lineColor
	p.Add(line, points)
	return p, nil
}

func speedPlot(speeds plotter.Values, opts Options) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Overspeeding speeds"
	p.X.Label.Text = "Speed (" + units.Label(opts.Units) + ")"
	p.Y.Label.Text = "Count"

	bins := opts.Bins
	if len(speeds) < bins {
		bins = len(speeds)
	}
	h, err := plotter.NewHist(speeds, bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build speed histogram: %w", err)
	}
	h.FillColor = barColor
	p.Add(h)
	return p, nil
}
