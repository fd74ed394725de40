// Package api serves evidence to dashboards and other consumers: filtered
// listings, CSV export, statistics, evidence images and charts.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultAssetsHost serves the echarts javascript for chart pages.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Options customise a Server. Zero values pick sensible defaults.
type Options struct {
	Units      string         // speed display units; "" uses the tuning config
	Location   *time.Location // timezone for CSV and hourly buckets; nil is UTC
	Clock      timeutil.Clock
	FS         fsutil.FileSystem // where evidence images are read from
	AssetsHost string
}

type Server struct {
	store       evidence.Store
	cfg         *config.TuningConfig
	evidenceDir string
	units       string
	loc         *time.Location
	clock       timeutil.Clock
	fs          fsutil.FileSystem
	assetsHost  string
}

func NewServer(store evidence.Store, cfg *config.TuningConfig, opts Options) *Server {
	s := &Server{
		store:       store,
		cfg:         cfg,
		evidenceDir: cfg.GetEvidenceDir(),
		units:       opts.Units,
		loc:         opts.Location,
		clock:       opts.Clock,
		fs:          opts.FS,
		assetsHost:  opts.AssetsHost,
	}
	if !units.IsValid(s.units) {
		s.units = cfg.GetSpeedUnits()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.fs == nil {
		s.fs = fsutil.OSFileSystem{}
	}
	if s.assetsHost == "" {
		s.assetsHost = DefaultAssetsHost
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/violations", s.listViolations)
	mux.HandleFunc("/api/violations.csv", s.exportViolations)
	mux.HandleFunc("/api/violations/{id}", s.showViolation)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/evidence/{id}", s.serveEvidenceImage)
	mux.HandleFunc("/charts/violations", s.violationsChart)
	return mux
}
