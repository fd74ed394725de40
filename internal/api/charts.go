package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/violation.report/internal/httputil"
	"github.com/banshee-data/violation.report/internal/violations"
)

// violationsChart renders an HTML page with violations per kind and per
// hour for the requested range. It accepts the same query parameters as
// /api/violations.
func (s *Server) violationsChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	st, code, err := s.computeStats(r)
	if err != nil {
		httputil.WriteJSONError(w, code, err.Error())
		return
	}
	subtitle := fmt.Sprintf("range=%s total=%d", st.Range, st.Total)

	kinds := make([]string, 0, len(violations.AllKinds))
	counts := make([]opts.BarData, 0, len(violations.AllKinds))
	for _, k := range violations.AllKinds {
		kinds = append(kinds, k.Label())
		counts = append(counts, opts.BarData{Value: st.ByKind[k]})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Violations", Width: "100%", Height: "480px", AssetsHost: s.assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Violations by kind", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(kinds).
		AddSeries("violations", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	hours := make([]string, 0, len(st.Hourly))
	perHour := make([]opts.LineData, 0, len(st.Hourly))
	for _, h := range st.Hourly {
		hours = append(hours, h.Hour.In(s.loc).Format("Jan 2 15:04"))
		perHour = append(perHour, opts.LineData{Value: h.Count})
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: s.assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Violations per hour", Subtitle: s.loc.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count", Min: 0}),
	)
	line.SetXAxis(hours).
		AddSeries("hourly", perHour,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(s.assetsHost)
	page.AddCharts(bar, line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
