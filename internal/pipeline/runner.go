package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/monitoring"
)

// Run feeds frames from src through p until the source is exhausted or ctx
// is cancelled. Rejected frames are logged and skipped; only a source
// failure ends the stream with an error.
func (p *Pipeline) Run(ctx context.Context, src detect.FrameSource) error {
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream %s: %w", p.StreamID, err)
		}
		if _, err := p.ProcessFrame(ctx, frame); err != nil {
			monitoring.Logf("[pipeline %s] skipping frame: %v", p.StreamID, err)
		}
	}
}

// Stream pairs a pipeline with the source of its frames.
type Stream struct {
	Pipeline *Pipeline
	Source   detect.FrameSource
}

// RunStreams runs each stream on its own goroutine, at most limit at a time
// (limit <= 0 means no limit). A failing stream does not stop the others;
// all stream errors are joined in the result.
func RunStreams(ctx context.Context, streams []Stream, limit int) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, s := range streams {
		g.Go(func() error {
			err := s.Pipeline.Run(ctx, s.Source)
			c := s.Pipeline.Counters()
			monitoring.Logf("[pipeline %s] finished: %d frames, %d events, %d stored, %d duplicates, %d failed",
				s.Pipeline.StreamID, c.Frames, c.Events, c.Stored, c.Duplicates, c.Failed)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
