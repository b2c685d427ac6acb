package extract

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
)

// FrameExtractionBackend decodes a media file and writes sampled frames.
//
// Extract writes frame_00001.png, frame_00002.png, ... into outputDir (which
// exists) at rate frames per second of media, in temporal order, and returns
// the number of frames it wrote. It blocks until decoding ends.
type FrameExtractionBackend interface {
	Name() string
	Extract(ctx context.Context, mediaPath, outputDir string, rate float64) (int, error)
}

// NewBackend returns the backend selected by cfg.Backend.
func NewBackend(cfg config.ExtractConfig, logger *zap.Logger) (FrameExtractionBackend, error) {
	switch cfg.Backend {
	case config.BackendFFmpeg, "":
		return NewFFmpegBackend(cfg.FFmpegPath, logger), nil
	case config.BackendOpenCV:
		return NewOpenCVBackend(logger)
	default:
		return nil, errors.Errorf("unknown extract backend %q", cfg.Backend)
	}
}
