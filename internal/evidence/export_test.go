package evidence

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/violations"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	a := artifact(violations.KindOverspeeding, 12, t0)
	a.Plate = "MH12DE1433"
	a.ImagePath = "evidence/images/" + a.ID + ".jpg"
	b := artifact(violations.KindHelmetlessRiding, 13, t0)
	b.Plate = "" // OCR unavailable

	loc := time.FixedZone("IST", 5*3600+1800)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Artifact{a, b}, loc))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{
		"overspeeding", "2026-03-01T15:45:02+05:30", "MH12DE1433", "12", a.ID, a.ImagePath,
	}, rows[1])
	assert.Equal(t, "", rows[2][2])
	assert.Equal(t, "", rows[2][5])
}

func TestWriteCSV_Empty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, nil))
	assert.Equal(t, "kind,timestamp,plate,track_id,artifact_id,image_path\n", buf.String())
}
