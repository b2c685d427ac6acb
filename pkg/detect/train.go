package detect

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

// Trainer fine-tunes a detection model on a labeled dataset.
type Trainer struct {
	runner
}

// NewTrainer returns a Trainer running command ("yolo" when empty).
func NewTrainer(command string, logger *zap.Logger) *Trainer {
	if command == "" {
		command = "yolo"
	}
	return &Trainer{runner{command: command, logger: logger}}
}

// TrainArgs returns the detector arguments for cfg, without the mode.
func TrainArgs(cfg config.TrainConfig) []string {
	return []string{
		kv("data", cfg.Data),
		kv("model", cfg.Model),
		kv("epochs", itoa(cfg.Epochs)),
		kv("imgsz", itoa(cfg.ImageSize)),
		kv("batch", itoa(cfg.Batch)),
		kv("project", cfg.Project),
		kv("name", cfg.Name),
		kv("exist_ok", pyBool(cfg.ExistOK)),
	}
}

// WeightsPath is where a training run with cfg leaves its best checkpoint.
func WeightsPath(cfg config.TrainConfig) string {
	return filepath.Join(cfg.Project, cfg.Name, "weights", "best.pt")
}

// Train runs a training session and returns the path of the best weights.
func (t *Trainer) Train(ctx context.Context, cfg config.TrainConfig) (string, error) {
	if cfg.Epochs <= 0 || cfg.ImageSize <= 0 {
		return "", failure.Errorf(failure.InvalidArgument, "epochs and imgsz must be positive (got %d, %d)", cfg.Epochs, cfg.ImageSize)
	}
	if !config.ValidBatch(cfg.Batch) {
		return "", failure.Errorf(failure.InvalidArgument, "batch must be positive or %d for automatic sizing (got %d)", config.AutoBatch, cfg.Batch)
	}
	if _, err := os.Stat(cfg.Data); err != nil {
		return "", failure.Wrap(failure.SourceNotFound, err, "dataset description")
	}

	if err := t.run(ctx, "train", TrainArgs(cfg)); err != nil {
		return "", err
	}

	weights := WeightsPath(cfg)
	t.logger.Info("training complete", zap.String("weights", weights))
	return weights, nil
}
