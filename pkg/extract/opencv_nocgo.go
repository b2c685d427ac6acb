//go:build no_cgo

package extract

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewOpenCVBackend is unavailable in builds without cgo.
func NewOpenCVBackend(*zap.Logger) (FrameExtractionBackend, error) {
	return nil, errors.New("the opencv backend requires a cgo build with OpenCV installed")
}
