//go:build !no_cgo

package extract

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

// OpenCVBackend decodes media in-process with OpenCV and writes sampled frames
// itself, without an external transcoder.
type OpenCVBackend struct {
	logger *zap.Logger
}

// NewOpenCVBackend returns an OpenCV backend.
func NewOpenCVBackend(logger *zap.Logger) (FrameExtractionBackend, error) {
	return &OpenCVBackend{logger: logger}, nil
}

func (b *OpenCVBackend) Name() string { return "opencv" }

// Extract reads every frame of the video and writes the frames due by
// dueFrames, so output frame k shows media time (k-1)/rate.
func (b *OpenCVBackend) Extract(ctx context.Context, mediaPath, outputDir string, rate float64) (int, error) {
	capture, err := gocv.VideoCaptureFile(mediaPath)
	if err != nil {
		return 0, &TranscodeError{Path: mediaPath, Err: errors.Wrap(err, "open video")}
	}
	defer capture.Close()

	nativeFPS := capture.Get(gocv.VideoCaptureFPS)
	b.logger.Debug("decoding with opencv", zap.String("path", mediaPath), zap.Float64("native_fps", nativeFPS))

	frameMat := gocv.NewMat()
	defer frameMat.Close()

	written, decoded := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if !capture.Read(&frameMat) || frameMat.Empty() { //finished to read all video's frames
			break
		}

		start := frameTimestamp(decoded, nativeFPS, capture.Get(gocv.VideoCapturePosMsec))
		decoded++

		for due := dueFrames(written, frameEnd(start, nativeFPS), rate); due > 0; due-- {
			if written >= utils.MaxFrameNumber {
				return written, errors.Errorf("more than %d frames", utils.MaxFrameNumber)
			}
			name := filepath.Join(outputDir, utils.FrameName(written+1))
			if ok := gocv.IMWrite(name, frameMat); !ok {
				return written, errors.Errorf("could not write %s", name)
			}
			written++
		}
	}

	if decoded == 0 {
		return 0, errors.New("no frames could be decoded")
	}
	return written, nil
}
