package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/db"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/pipeline"
	"github.com/banshee-data/violation.report/internal/plates"
	"github.com/banshee-data/violation.report/internal/security"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
)

var runFlags struct {
	parallel        int
	ocr             bool
	ocrLang         string
	detectorURL     string
	detectorTimeout time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run [stream=]feed.jsonl...",
	Short: "Process detection feeds and store violation evidence",
	Long: `Reads one JSON-lines detection feed per stream and runs every stream
through tracking, speed estimation, violation classification and evidence
generation. A feed argument may be prefixed with "<stream id>=", otherwise
the stream id is the file name without its extension.

Each invocation is recorded as a pipeline run in the database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.parallel, "parallel", 0, "Maximum streams processed at once (0 for all)")
	f.BoolVar(&runFlags.ocr, "ocr", false, "Read number plates with Tesseract (requires a build with -tags tesseract)")
	f.StringVar(&runFlags.ocrLang, "ocr-lang", "eng", "Tesseract language")
	f.StringVar(&runFlags.detectorURL, "detector-url", "", "HTTP detection service for frames with images; feed detections are used when empty")
	f.DurationVar(&runFlags.detectorTimeout, "detector-timeout", 5*time.Second, "Per-frame timeout for --detector-url")
}

// feedArg is one parsed feed argument.
type feedArg struct {
	stream string
	path   string
}

func parseFeedArgs(args []string) ([]feedArg, error) {
	seen := make(map[string]bool, len(args))
	out := make([]feedArg, 0, len(args))
	for _, a := range args {
		fa := feedArg{path: a}
		if stream, path, ok := strings.Cut(a, "="); ok {
			fa.stream, fa.path = stream, path
		} else {
			fa.stream = security.SanitizeFilename(strings.TrimSuffix(filepath.Base(a), filepath.Ext(a)))
		}
		if fa.stream == "" || fa.path == "" {
			return nil, fmt.Errorf("invalid feed argument %q", a)
		}
		if seen[fa.stream] {
			return nil, fmt.Errorf("duplicate stream id %q", fa.stream)
		}
		seen[fa.stream] = true
		out = append(out, fa)
	}
	return out, nil
}

func newPlateReader() (plates.Reader, func()) {
	if !runFlags.ocr {
		return plates.Nop{}, func() {}
	}
	t, err := plates.NewTesseract(runFlags.ocrLang)
	if err != nil {
		log.Printf("plate reading disabled: %v", err)
		return plates.Nop{}, func() {}
	}
	return t, func() { t.Close() }
}

func runRun(cmd *cobra.Command, args []string) error {
	feeds, err := parseFeedArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, closeReader := newPlateReader()
	defer closeReader()

	fsys := fsutil.OSFileSystem{}
	runID := pipeline.NewRunID()
	gen := evidence.NewGenerator(
		evidence.GeneratorConfigFromTuning(cfg),
		reader,
		evidence.NewFileWriter(fsys, cfg.GetEvidenceDir()),
		timeutil.RealClock{},
	)
	gen.RunID = runID
	deps := pipeline.Deps{
		IDs:       &tracking.IDSource{},
		Generator: gen,
		Store:     db.NewEvidenceStore(database),
	}
	if runFlags.detectorURL != "" {
		deps.Detector = detect.NewRemoteDetector(runFlags.detectorURL, runFlags.detectorTimeout)
	}

	streams := make([]pipeline.Stream, 0, len(feeds))
	ids := make([]string, 0, len(feeds))
	for _, fa := range feeds {
		f, err := os.Open(fa.path)
		if err != nil {
			return fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		p, err := pipeline.New(fa.stream, cfg, deps)
		if err != nil {
			return err
		}
		streams = append(streams, pipeline.Stream{
			Pipeline: p,
			Source:   detect.NewFeedReader(f, fa.stream, filepath.Dir(fa.path), fsys),
		})
		ids = append(ids, fa.stream)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := database.InsertRun(ctx, db.PipelineRun{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Streams:   ids,
		Config:    cfgJSON,
		Status:    db.RunStatusRunning,
	}); err != nil {
		return err
	}
	log.Printf("run %s: processing %d stream(s)", runID, len(streams))

	runErr := pipeline.RunStreams(ctx, streams, runFlags.parallel)

	var total pipeline.Counters
	for _, s := range streams {
		c := s.Pipeline.Counters()
		total.Frames += c.Frames
		total.Dropped += c.Dropped
		total.Events += c.Events
		total.Stored += c.Stored
		total.Duplicates += c.Duplicates
		total.Failed += c.Failed
	}
	// The run context may already be cancelled; the record must still land.
	if err := database.CompleteRun(context.Background(), runID, time.Now().UTC(), total.Frames, total.Stored, runErr); err != nil {
		log.Printf("failed to record run completion: %v", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", runID)
	fmt.Fprintf(out, "Frames:     %d (%d dropped)\n", total.Frames, total.Dropped)
	fmt.Fprintf(out, "Events:     %d\n", total.Events)
	fmt.Fprintf(out, "Stored:     %d\n", total.Stored)
	fmt.Fprintf(out, "Duplicates: %d\n", total.Duplicates)
	if total.Failed > 0 {
		fmt.Fprintf(out, "Failed:     %d\n", total.Failed)
	}
	return runErr
}
