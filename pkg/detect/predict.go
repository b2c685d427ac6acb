package detect

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

// Predictor runs a trained model over an image, a directory of images or a video.
type Predictor struct {
	runner
}

// NewPredictor returns a Predictor running command ("yolo" when empty).
func NewPredictor(command string, logger *zap.Logger) *Predictor {
	if command == "" {
		command = "yolo"
	}
	return &Predictor{runner{command: command, logger: logger}}
}

// PredictArgs returns the detector arguments for cfg, without the mode.
func PredictArgs(cfg config.PredictConfig) []string {
	return []string{
		kv("model", cfg.Weights),
		kv("source", cfg.Source),
		kv("conf", strconv.FormatFloat(cfg.Confidence, 'g', -1, 64)),
		kv("save", pyBool(cfg.Save)),
		kv("project", cfg.Project),
		kv("name", cfg.Name),
		kv("exist_ok", pyBool(cfg.ExistOK)),
	}
}

// OutputDir is where a prediction run with cfg saves its annotated results.
func OutputDir(cfg config.PredictConfig) string {
	return filepath.Join(cfg.Project, cfg.Name)
}

// Predict runs detection and returns the directory holding the results.
func (p *Predictor) Predict(ctx context.Context, cfg config.PredictConfig) (string, error) {
	if cfg.Source == "" {
		return "", failure.New(failure.InvalidArgument, "prediction source is required")
	}
	if cfg.Confidence <= 0 || cfg.Confidence > 1 {
		return "", failure.Errorf(failure.InvalidArgument, "confidence must be in (0, 1] (got %v)", cfg.Confidence)
	}
	if _, err := os.Stat(cfg.Weights); err != nil {
		return "", failure.Wrap(failure.SourceNotFound, err, "model weights not found, train a model first")
	}
	if !isRemote(cfg.Source) {
		if _, err := os.Stat(cfg.Source); err != nil {
			return "", failure.Wrap(failure.SourceNotFound, err, "prediction source")
		}
	}

	if err := p.run(ctx, "predict", PredictArgs(cfg)); err != nil {
		return "", err
	}

	out := OutputDir(cfg)
	p.logger.Info("prediction complete", zap.String("results", out))
	return out, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") || strings.HasPrefix(source, "rtsp://")
}
