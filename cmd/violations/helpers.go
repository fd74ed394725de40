package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/db"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/violations"
)

// loadConfig reads --config, or returns the built-in defaults.
func loadConfig() (*config.TuningConfig, error) {
	if globalFlags.configPath == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(globalFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens --db and brings its schema up to date.
func openDB() (*db.DB, error) {
	database, err := db.NewDB(globalFlags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

// filterFlags are shared by commands that select stored evidence.
type filterFlags struct {
	kinds    []string
	rangeStr string
	since    string
	until    string
	track    uint64
	stream   string
	limit    int
	timezone string
	units    string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&ff.kinds, "kind", nil, "Violation kinds to include (repeatable or comma separated)")
	f.StringVar(&ff.rangeStr, "range", evidence.RangeAll, "Time range preset: hour, day, week or all")
	f.StringVar(&ff.since, "since", "", "Inclusive start time (RFC 3339); overrides --range")
	f.StringVar(&ff.until, "until", "", "Exclusive end time (RFC 3339)")
	f.Uint64Var(&ff.track, "track", 0, "Only violations involving this track id")
	f.StringVar(&ff.stream, "stream", "", "Only violations from this stream")
	f.IntVar(&ff.limit, "limit", 0, "Maximum number of violations (0 for all)")
	f.StringVar(&ff.timezone, "timezone", "UTC", "Timezone for timestamps and hourly buckets")
	f.StringVar(&ff.units, "units", "", "Speed units: "+units.GetValidUnitsString()+" (default from config)")
}

func (ff *filterFlags) filter(clock timeutil.Clock) (evidence.Filter, error) {
	f, err := evidence.RangeFilter(ff.rangeStr, clock)
	if err != nil {
		return f, err
	}
	for _, s := range ff.kinds {
		k, err := violations.ParseKind(s)
		if err != nil {
			return f, err
		}
		f.Kinds = append(f.Kinds, k)
	}
	if ff.since != "" {
		if f.Since, err = time.Parse(time.RFC3339, ff.since); err != nil {
			return f, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if ff.until != "" {
		if f.Until, err = time.Parse(time.RFC3339, ff.until); err != nil {
			return f, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if ff.limit < 0 {
		return f, fmt.Errorf("invalid --limit %d", ff.limit)
	}
	f.TrackID = tracking.TrackID(ff.track)
	f.StreamID = ff.stream
	f.Limit = ff.limit
	return f, nil
}

func (ff *filterFlags) location() (*time.Location, error) {
	return units.LoadLocation(ff.timezone)
}

// displayUnits resolves --units against the config.
func (ff *filterFlags) displayUnits(cfg *config.TuningConfig) (string, error) {
	if ff.units == "" {
		return cfg.GetSpeedUnits(), nil
	}
	u := strings.ToLower(ff.units)
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid --units %q, want one of %s", ff.units, units.GetValidUnitsString())
	}
	return u, nil
}
