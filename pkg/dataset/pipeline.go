// Package dataset composes acquisition and frame extraction into one run that
// turns a remote video into a directory of frames ready for labeling.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/metrics"
)

// Pipeline stages, as reported by StageError.
const (
	StageValidate = "validate"
	StageAcquire  = "acquire"
	StageExtract  = "extract"
	StagePublish  = "publish"
)

// Acquirer downloads a locator into destDir/filename.
type Acquirer interface {
	Acquire(ctx context.Context, locator, destDir, filename string) (string, error)
}

// Extractor samples a media file into a frame directory.
type Extractor interface {
	Extract(ctx context.Context, mediaPath, outputDir string, rate float64) (int, error)
}

// Publisher uploads a frame directory as the named dataset.
type Publisher interface {
	PublishFrames(ctx context.Context, dataset, framesDir string) (int, error)
}

// Request describes one pipeline run.
type Request struct {
	Locator     string
	DownloadDir string
	Filename    string
	FramesDir   string
	SampleRate  float64
	Publish     bool
}

// Result describes a completed run.
type Result struct {
	Locator    string        `json:"locator"`
	MediaPath  string        `json:"media_path"`
	FramesDir  string        `json:"frames_dir"`
	FrameCount int           `json:"frame_count"`
	Published  int           `json:"published"`
	Took       time.Duration `json:"took"`
}

// StageError wraps the failure of one stage. The underlying typed error
// (and its failure kind) stays reachable through errors.As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, failure.KindOf(e.Err), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs acquire -> extract (-> publish) strictly in sequence.
type Pipeline struct {
	acquirer  Acquirer
	extractor Extractor
	publisher Publisher
	logger    *zap.Logger
}

// New returns a Pipeline. publisher may be nil when publishing is not configured.
func New(acquirer Acquirer, extractor Extractor, publisher Publisher, logger *zap.Logger) *Pipeline {
	return &Pipeline{acquirer: acquirer, extractor: extractor, publisher: publisher, logger: logger}
}

// Build runs the pipeline. If acquisition fails, extraction is never started
// and FramesDir is not touched. If extraction fails, the downloaded media is
// kept so extraction alone can be retried. Nothing else is persisted between
// runs.
func (p *Pipeline) Build(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = string(failure.KindOf(err))
		}
		metrics.DatasetBuildsTotal.WithLabelValues(result).Inc()
	}()

	if err := p.validate(req); err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}

	mediaPath, err := p.acquirer.Acquire(ctx, req.Locator, req.DownloadDir, req.Filename)
	if err != nil {
		return nil, &StageError{Stage: StageAcquire, Err: err}
	}

	count, err := p.extractor.Extract(ctx, mediaPath, req.FramesDir, req.SampleRate)
	if err != nil {
		p.logger.Warn("extraction failed, keeping downloaded video for a retry", zap.String("video", mediaPath))
		return nil, &StageError{Stage: StageExtract, Err: err}
	}

	res = &Result{
		Locator:    req.Locator,
		MediaPath:  mediaPath,
		FramesDir:  req.FramesDir,
		FrameCount: count,
	}

	if req.Publish {
		n, err := p.publisher.PublishFrames(ctx, filepath.Base(req.FramesDir), req.FramesDir)
		if err != nil {
			return nil, &StageError{Stage: StagePublish, Err: failure.Wrap(failure.PublishError, err, "publish frames")}
		}
		res.Published = n
	}

	res.Took = time.Since(start)
	p.logger.Info("dataset ready",
		zap.String("frames_dir", res.FramesDir),
		zap.Int("frames", res.FrameCount),
		zap.Int("published", res.Published),
		zap.Duration("took", res.Took),
	)
	return res, nil
}

func (p *Pipeline) validate(req Request) error {
	if req.Locator == "" {
		return failure.New(failure.InvalidArgument, "locator is required")
	}
	if req.DownloadDir == "" || req.FramesDir == "" {
		return failure.New(failure.InvalidArgument, "download and frames directories are required")
	}
	if req.SampleRate <= 0 {
		return failure.Errorf(failure.InvalidArgument, "sample rate must be positive (got %v)", req.SampleRate)
	}
	if req.Publish && p.publisher == nil {
		return failure.New(failure.InvalidArgument, "publishing requested but no object storage is configured")
	}
	return nil
}
