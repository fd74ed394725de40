package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

// EvidenceStore implements evidence.Store on SQLite. Deduplication relies on
// the UNIQUE(kind, track_id, ts_unix) constraint, so concurrent writers
// from any number of streams or processes cannot both insert a key.
type EvidenceStore struct {
	db *DB
}

var _ evidence.Store = (*EvidenceStore)(nil)

// NewEvidenceStore wraps a migrated database.
func NewEvidenceStore(db *DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

const evidenceColumns = `evidence_id, kind, track_id, ts_unix, related_track_ids, vehicle_id,
	stream_id, run_id, plate, image_path, box_x1, box_y1, box_x2, box_y2,
	speed_mps, riders, created_at_unix_nanos`

// Add implements evidence.Store.
func (s *EvidenceStore) Add(ctx context.Context, a evidence.Artifact) (bool, error) {
	k := a.Key()
	if a.ID == "" {
		a.ID = k.ID()
	}
	related, err := json.Marshal(nonNil(a.Related))
	if err != nil {
		return false, fmt.Errorf("failed to encode related tracks: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (`+evidenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		a.ID, string(k.Kind), uint64(k.TrackID), k.Unix, string(related), uint64(a.VehicleID),
		a.StreamID, a.RunID, a.Plate, a.ImagePath, a.Box.X1, a.Box.Y1, a.Box.X2, a.Box.Y2,
		a.SpeedMPS, a.Riders, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert evidence %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Exists implements evidence.Store.
func (s *EvidenceStore) Exists(ctx context.Context, k evidence.Key) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM evidence WHERE kind = ? AND track_id = ? AND ts_unix = ?`,
		string(k.Kind), uint64(k.TrackID), k.Unix,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check evidence: %w", err)
	}
	return true, nil
}

// Get implements evidence.Store.
func (s *EvidenceStore) Get(ctx context.Context, id string) (evidence.Artifact, error) {
	k, err := evidence.ParseID(id)
	if err != nil {
		return evidence.Artifact{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE kind = ? AND track_id = ? AND ts_unix = ?`,
		string(k.Kind), uint64(k.TrackID), k.Unix,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return evidence.Artifact{}, evidence.ErrNotFound
	}
	return a, err
}

// Query implements evidence.Store.
func (s *EvidenceStore) Query(ctx context.Context, f evidence.Filter) ([]evidence.Artifact, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(f.Kinds) > 0 {
		marks := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}
	if f.TrackID != 0 {
		where = append(where, `(track_id = ? OR EXISTS (SELECT 1 FROM json_each(related_track_ids) WHERE value = ?))`)
		args = append(args, uint64(f.TrackID), uint64(f.TrackID))
	}
	if f.StreamID != "" {
		where = append(where, "stream_id = ?")
		args = append(args, f.StreamID)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts_unix >= ?")
		args = append(args, ceilUnix(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "ts_unix < ?")
		args = append(args, ceilUnix(f.Until))
	}

	q := `SELECT ` + evidenceColumns + ` FROM evidence`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts_unix DESC, evidence_id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	out := []evidence.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}
	return out, nil
}

// Count returns the number of stored artifacts.
func (s *EvidenceStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(sc scanner) (evidence.Artifact, error) {
	var (
		a                 evidence.Artifact
		kind, related     string
		track, vehicle    uint64
		tsUnix, createdNs int64
	)
	err := sc.Scan(
		&a.ID, &kind, &track, &tsUnix, &related, &vehicle,
		&a.StreamID, &a.RunID, &a.Plate, &a.ImagePath,
		&a.Box.X1, &a.Box.Y1, &a.Box.X2, &a.Box.Y2,
		&a.SpeedMPS, &a.Riders, &createdNs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("failed to scan evidence: %w", err)
	}
	a.Kind = violations.Kind(kind)
	a.TrackID = tracking.TrackID(track)
	a.VehicleID = tracking.TrackID(vehicle)
	a.Timestamp = time.Unix(tsUnix, 0).UTC()
	a.CreatedAt = time.Unix(0, createdNs).UTC()
	if err := json.Unmarshal([]byte(related), &a.Related); err != nil {
		return a, fmt.Errorf("failed to decode related tracks of %s: %w", a.ID, err)
	}
	if len(a.Related) == 0 {
		a.Related = nil
	}
	return a, nil
}

// ceilUnix rounds up to whole seconds so integer comparisons agree with
// time comparisons against whole-second timestamps.
func ceilUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}

func nonNil(ids []tracking.TrackID) []tracking.TrackID {
	if ids == nil {
		return []tracking.TrackID{}
	}
	return ids
}
