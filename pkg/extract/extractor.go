// Package extract turns a local media file into a numbered sequence of still
// frames sampled at a fixed rate, through a pluggable backend.
//
// The output directory is never cleared: a run overwrites frames with the
// numbers it produces and leaves any higher-numbered frames of an earlier,
// longer run in place. Callers that need a clean sequence must use a fresh
// directory.
package extract

import (
	"context"
	"math"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/metrics"
)

// Extractor validates inputs, prepares the output directory and runs a backend.
type Extractor struct {
	backend FrameExtractionBackend
	probe   DurationProbe
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDurationProbe sets the probe used to sanity check frame counts. A nil
// probe disables the check.
func WithDurationProbe(p DurationProbe) Option {
	return func(e *Extractor) { e.probe = p }
}

// New returns an Extractor running backend. By default durations are probed
// with ffprobe.
func New(backend FrameExtractionBackend, logger *zap.Logger, opts ...Option) *Extractor {
	e := &Extractor{backend: backend, probe: ProbeDuration, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the backend name.
func (e *Extractor) Backend() string { return e.backend.Name() }

// Extract samples mediaPath at rate frames per second into outputDir and
// returns the number of frames this run wrote.
//
// A missing mediaPath fails with *SourceNotFoundError before anything else is
// checked and before outputDir is created. A backend failure is returned as *TranscodeError; frames written
// before it are not removed.
func (e *Extractor) Extract(ctx context.Context, mediaPath, outputDir string, rate float64) (int, error) {
	fi, err := os.Stat(mediaPath)
	if err != nil {
		return 0, &SourceNotFoundError{Path: mediaPath, Err: err}
	}
	if !fi.Mode().IsRegular() {
		return 0, &SourceNotFoundError{Path: mediaPath}
	}

	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, ErrInvalidRate
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, failure.Wrap(failure.InvalidArgument, err, "create output directory")
	}

	e.logger.Info("extracting frames",
		zap.String("video", mediaPath),
		zap.String("out", outputDir),
		zap.Float64("fps", rate),
		zap.String("backend", e.backend.Name()),
	)

	start := time.Now()
	count, err := e.backend.Extract(ctx, mediaPath, outputDir, rate)
	if err != nil {
		te := asTranscodeError(mediaPath, err)
		e.logger.Error("frame extraction failed", zap.String("video", mediaPath), zap.Error(te.Err), zap.String("stderr", tailLines(te.Stderr, stderrTailLines)))
		return 0, te
	}
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	metrics.FramesExtractedTotal.Add(float64(count))

	e.checkCount(mediaPath, rate, count)
	e.logger.Info("frames extracted", zap.String("out", outputDir), zap.Int("count", count), zap.Duration("took", time.Since(start)))
	return count, nil
}

// checkCount warns when count is off by more than one frame from what the
// media duration predicts.
func (e *Extractor) checkCount(mediaPath string, rate float64, count int) {
	if e.probe == nil {
		return
	}
	d, err := e.probe(mediaPath)
	if err != nil {
		e.logger.Debug("could not probe duration", zap.String("video", mediaPath), zap.Error(err))
		return
	}
	expected := ExpectedFrames(d, rate)
	if diff := count - expected; diff > 1 || diff < -1 {
		e.logger.Warn("unexpected frame count",
			zap.Int("count", count),
			zap.Int("expected", expected),
			zap.Duration("duration", d),
		)
	}
}
