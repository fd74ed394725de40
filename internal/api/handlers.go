package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/httputil"
	"github.com/banshee-data/violation.report/internal/security"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/violations"
)

const (
	defaultListLimit = 500
	maxListLimit     = 10000
)

// ArtifactAPI is the JSON shape of an artifact: speeds in display units
// and a URL for the evidence image when one was persisted.
type ArtifactAPI struct {
	evidence.Artifact
	Speed     float64 `json:"speed,omitempty"`
	Units     string  `json:"units"`
	LocalTime string  `json:"local_time"`
	ImageURL  string  `json:"image_url,omitempty"`
}

func (s *Server) toAPI(a evidence.Artifact) ArtifactAPI {
	out := ArtifactAPI{
		Artifact:  a,
		Speed:     units.ConvertSpeed(a.SpeedMPS, s.units),
		Units:     s.units,
		LocalTime: a.Timestamp.In(s.loc).Format(time.RFC3339),
	}
	if a.ImagePath != "" {
		out.ImageURL = "/evidence/" + a.ID
	}
	return out
}

// parseFilter reads kind, track, stream, range, since, until and limit.
// since and until (RFC 3339) override the range preset.
func (s *Server) parseFilter(r *http.Request) (evidence.Filter, string, error) {
	q := r.URL.Query()
	preset := q.Get("range")
	if preset == "" {
		preset = evidence.RangeAll
	}
	f, err := evidence.RangeFilter(preset, s.clock)
	if err != nil {
		return f, "", err
	}

	if kinds := q.Get("kind"); kinds != "" {
		for _, part := range strings.Split(kinds, ",") {
			k, err := violations.ParseKind(part)
			if err != nil {
				return f, "", err
			}
			f.Kinds = append(f.Kinds, k)
		}
	}
	if v := q.Get("track"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return f, "", fmt.Errorf("invalid 'track' parameter %q", v)
		}
		f.TrackID = tracking.TrackID(id)
	}
	f.StreamID = q.Get("stream")
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, "", fmt.Errorf("invalid '%s' parameter: %v", name, err)
			}
			*dst = t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return f, "", fmt.Errorf("invalid 'limit' parameter %q", v)
		}
		f.Limit = n
	}
	return f, preset, nil
}

func (s *Server) listViolations(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	f, _, err := s.parseFilter(r)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	list, err := s.store.Query(r.Context(), f)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve violations: %v", err))
		return
	}
	out := make([]ArtifactAPI, len(list))
	for i, a := range list {
		out[i] = s.toAPI(a)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) showViolation(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.toAPI(a))
}

// lookup resolves the {id} path value, writing the error response itself.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (evidence.Artifact, bool) {
	a, err := s.store.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, evidence.ErrBadID):
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return a, false
	case errors.Is(err, evidence.ErrNotFound):
		httputil.WriteJSONError(w, http.StatusNotFound, "violation not found")
		return a, false
	case err != nil:
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve violation: %v", err))
		return a, false
	}
	return a, true
}

func (s *Server) exportViolations(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	f, preset, err := s.parseFilter(r)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.store.Query(r.Context(), f)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve violations: %v", err))
		return
	}

	// Render fully before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if err := evidence.WriteCSV(&buf, list, s.loc); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export violations: %v", err))
		return
	}
	name := security.SanitizeFilename(fmt.Sprintf("violations_%s_%s", preset, timeutil.Stamp(s.clock.Now().In(s.loc))))
	httputil.SetAttachment(w, name+".csv", "text/csv; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// StatsAPI is evidence.Stats with speeds in display units.
type StatsAPI struct {
	Range  string                  `json:"range"`
	Total  int                     `json:"total"`
	ByKind map[violations.Kind]int `json:"by_kind"`
	Hourly []evidence.HourCount    `json:"hourly"`
	Speeds SpeedSummaryAPI         `json:"speeds"`
}

type SpeedSummaryAPI struct {
	Units string  `json:"units"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	Max   float64 `json:"max"`
}

func (s *Server) computeStats(r *http.Request) (StatsAPI, int, error) {
	f, preset, err := s.parseFilter(r)
	if err != nil {
		return StatsAPI{}, http.StatusBadRequest, err
	}
	f.Limit = 0
	list, err := s.store.Query(r.Context(), f)
	if err != nil {
		return StatsAPI{}, http.StatusInternalServerError, fmt.Errorf("Failed to retrieve violations: %v", err)
	}
	st := evidence.ComputeStats(list, s.loc)
	conv := func(v float64) float64 { return units.ConvertSpeed(v, s.units) }
	return StatsAPI{
		Range:  preset,
		Total:  st.Total,
		ByKind: st.ByKind,
		Hourly: st.Hourly,
		Speeds: SpeedSummaryAPI{
			Units: s.units,
			Count: st.Speeds.Count,
			Mean:  conv(st.Speeds.Mean),
			P50:   conv(st.Speeds.P50),
			P85:   conv(st.Speeds.P85),
			Max:   conv(st.Speeds.Max),
		},
	}, http.StatusOK, nil
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	st, code, err := s.computeStats(r)
	if err != nil {
		httputil.WriteJSONError(w, code, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"units":       s.units,
		"timezone":    s.loc.String(),
		"speed_limit": units.ConvertSpeed(s.cfg.GetSpeedLimitMPS(), s.units),
		"kinds":       violations.AllKinds,
		"ranges":      []string{evidence.RangeHour, evidence.RangeDay, evidence.RangeWeek, evidence.RangeAll},
	})
}

func (s *Server) serveEvidenceImage(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if a.ImagePath == "" {
		httputil.WriteJSONError(w, http.StatusNotFound, "no image recorded for this violation")
		return
	}
	if err := security.ValidatePathWithinDirectory(a.ImagePath, s.evidenceDir); err != nil {
		httputil.WriteJSONError(w, http.StatusForbidden, "image path outside evidence directory")
		return
	}
	data, err := s.fs.ReadFile(a.ImagePath)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "image not available")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}
