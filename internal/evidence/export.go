package evidence

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVHeader lists the export columns.
var CSVHeader = []string{"kind", "timestamp", "plate", "track_id", "artifact_id", "image_path"}

// WriteCSV writes artifacts as tabular rows in the given order. Timestamps
// are rendered in loc; a nil loc means UTC.
func WriteCSV(w io.Writer, artifacts []Artifact, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range artifacts {
		row := []string{
			string(a.Kind),
			a.Timestamp.In(loc).Format(time.RFC3339),
			a.Plate,
			strconv.FormatUint(uint64(a.TrackID), 10),
			a.ID,
			a.ImagePath,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
