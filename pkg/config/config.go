// Package config holds the runtime configuration of the dataset tooling:
// documented defaults, loading from a YAML file and the environment through
// viper, and validation. Every component receives its section explicitly.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. AGRISENTRY_EXTRACT_BACKEND.
const EnvPrefix = "AGRISENTRY"

// Acquisition sources.
const (
	SourceAuto    = "auto"    // youtube for YouTube hosts, direct otherwise (default).
	SourceYouTube = "youtube" // resolve streams through the YouTube player API.
	SourceDirect  = "direct"  // the locator is itself a media file URL.
)

// Frame extraction backends.
const (
	BackendFFmpeg = "ffmpeg" // external ffmpeg process (default).
	BackendOpenCV = "opencv" // native decode through OpenCV.
)

// Config is the full runtime configuration. It is produced by [DefaultConfig]
// or [Load] and validated by [Config.Validate] before use.
type Config struct {
	Acquire AcquireConfig `mapstructure:"acquire"`
	Extract ExtractConfig `mapstructure:"extract"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Train   TrainConfig   `mapstructure:"train"`
	Predict PredictConfig `mapstructure:"predict"`
	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
}

// AcquireConfig configures the video acquirer.
type AcquireConfig struct {
	Source      string `mapstructure:"source"`       // Default: "auto".
	Container   string `mapstructure:"container"`    // Default: "mp4". Only progressive streams in this container are eligible.
	DownloadDir string `mapstructure:"download_dir"` // Default: "temp_data".
	Filename    string `mapstructure:"filename"`     // Default: "downloaded_video.mp4".
}

// ExtractConfig configures the frame extractor.
type ExtractConfig struct {
	Backend    string  `mapstructure:"backend"`     // Default: "ffmpeg".
	FFmpegPath string  `mapstructure:"ffmpeg_path"` // Default: "ffmpeg" (looked up on PATH).
	SampleRate float64 `mapstructure:"sample_rate"` // Default: 1 frame per second of media.
}

// DatasetConfig configures the acquire -> extract pipeline.
type DatasetConfig struct {
	FramesDir  string  `mapstructure:"frames_dir"`  // Default: "data/raw_images".
	SampleRate float64 `mapstructure:"sample_rate"` // Default: 2.
	Root       string  `mapstructure:"root"`        // Default: "data/datasets". Parent of datasets built through the HTTP API.
	Publish    bool    `mapstructure:"publish"`     // Upload frames to object storage after extraction.
}

// TrainConfig holds the hyperparameters passed to the detector's train mode.
type TrainConfig struct {
	Data      string `mapstructure:"data"`       // Default: "data/pest_dataset.yaml".
	Model     string `mapstructure:"model"`      // Default: "yolov8n.pt".
	Epochs    int    `mapstructure:"epochs"`     // Default: 150.
	ImageSize int    `mapstructure:"image_size"` // Default: 640.
	Batch     int    `mapstructure:"batch"`      // Default: 16. Adjust to GPU memory, or AutoBatch.
	Project   string `mapstructure:"project"`    // Default: "runs/detect".
	Name      string `mapstructure:"name"`       // Default: "agrisentry_run1".
	ExistOK   bool   `mapstructure:"exist_ok"`   // Default: true.
	Command   string `mapstructure:"command"`    // Default: "yolo".
}

// PredictConfig holds the parameters passed to the detector's predict mode.
type PredictConfig struct {
	Source     string  `mapstructure:"source"`
	Weights    string  `mapstructure:"weights"`    // Default: "runs/detect/agrisentry_run1/weights/best.pt".
	Confidence float64 `mapstructure:"confidence"` // Default: 0.4.
	Project    string  `mapstructure:"project"`    // Default: "runs/predict".
	Name       string  `mapstructure:"name"`       // Default: "agrisentry_prediction".
	ExistOK    bool    `mapstructure:"exist_ok"`   // Default: true.
	Save       bool    `mapstructure:"save"`       // Default: true.
	Command    string  `mapstructure:"command"`    // Default: "yolo".
}

// StorageConfig configures the optional object store frames are published to.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`   // Default: "localhost:9000".
	AccessKey string `mapstructure:"access_key"` // Default: "minioadmin".
	SecretKey string `mapstructure:"secret_key"` // Default: "minioadmin".
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"` // Default: "datasets".
	Prefix    string `mapstructure:"prefix"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port string `mapstructure:"port"` // Default: "8080".
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // Default: "info".
	File       string `mapstructure:"file"`        // Optional JSON log file, rotated.
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // Default: 10.
	MaxBackups int    `mapstructure:"max_backups"` // Default: 3.
}

// DefaultConfig returns a Config holding the documented defaults.
func DefaultConfig() Config {
	return Config{
		Acquire: AcquireConfig{
			Source:      SourceAuto,
			Container:   "mp4",
			DownloadDir: "temp_data",
			Filename:    "downloaded_video.mp4",
		},
		Extract: ExtractConfig{
			Backend:    BackendFFmpeg,
			FFmpegPath: "ffmpeg",
			SampleRate: 1,
		},
		Dataset: DatasetConfig{
			FramesDir:  "data/raw_images",
			SampleRate: 2,
			Root:       "data/datasets",
		},
		Train: TrainConfig{
			Data:      "data/pest_dataset.yaml",
			Model:     "yolov8n.pt",
			Epochs:    150,
			ImageSize: 640,
			Batch:     16,
			Project:   "runs/detect",
			Name:      "agrisentry_run1",
			ExistOK:   true,
			Command:   "yolo",
		},
		Predict: PredictConfig{
			Weights:    "runs/detect/agrisentry_run1/weights/best.pt",
			Confidence: 0.4,
			Project:    "runs/predict",
			Name:       "agrisentry_prediction",
			ExistOK:    true,
			Save:       true,
			Command:    "yolo",
		},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "datasets",
		},
		HTTP: HTTPConfig{Port: "8080"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and AGRISENTRY_*
// environment variables. With an empty path, "config.yaml" is searched in the
// working directory and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %q", path)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "could not read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("acquire.source", d.Acquire.Source)
	v.SetDefault("acquire.container", d.Acquire.Container)
	v.SetDefault("acquire.download_dir", d.Acquire.DownloadDir)
	v.SetDefault("acquire.filename", d.Acquire.Filename)

	v.SetDefault("extract.backend", d.Extract.Backend)
	v.SetDefault("extract.ffmpeg_path", d.Extract.FFmpegPath)
	v.SetDefault("extract.sample_rate", d.Extract.SampleRate)

	v.SetDefault("dataset.frames_dir", d.Dataset.FramesDir)
	v.SetDefault("dataset.sample_rate", d.Dataset.SampleRate)
	v.SetDefault("dataset.root", d.Dataset.Root)
	v.SetDefault("dataset.publish", d.Dataset.Publish)

	v.SetDefault("train.data", d.Train.Data)
	v.SetDefault("train.model", d.Train.Model)
	v.SetDefault("train.epochs", d.Train.Epochs)
	v.SetDefault("train.image_size", d.Train.ImageSize)
	v.SetDefault("train.batch", d.Train.Batch)
	v.SetDefault("train.project", d.Train.Project)
	v.SetDefault("train.name", d.Train.Name)
	v.SetDefault("train.exist_ok", d.Train.ExistOK)
	v.SetDefault("train.command", d.Train.Command)

	v.SetDefault("predict.source", d.Predict.Source)
	v.SetDefault("predict.weights", d.Predict.Weights)
	v.SetDefault("predict.confidence", d.Predict.Confidence)
	v.SetDefault("predict.project", d.Predict.Project)
	v.SetDefault("predict.name", d.Predict.Name)
	v.SetDefault("predict.exist_ok", d.Predict.ExistOK)
	v.SetDefault("predict.save", d.Predict.Save)
	v.SetDefault("predict.command", d.Predict.Command)

	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.access_key", d.Storage.AccessKey)
	v.SetDefault("storage.secret_key", d.Storage.SecretKey)
	v.SetDefault("storage.use_ssl", d.Storage.UseSSL)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.prefix", d.Storage.Prefix)

	v.SetDefault("http.port", d.HTTP.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}

// Validate checks enum fields and numeric ranges. It does not touch the
// filesystem; path checks belong to the components that use the paths.
func (c *Config) Validate() error {
	switch c.Acquire.Source {
	case SourceAuto, SourceYouTube, SourceDirect:
	default:
		return errors.Errorf("invalid acquire source %q (use 'auto', 'youtube' or 'direct')", c.Acquire.Source)
	}
	if c.Acquire.Container == "" {
		return errors.New("acquire container must not be empty")
	}
	if err := ValidateFilename(c.Acquire.Filename); err != nil {
		return err
	}

	switch c.Extract.Backend {
	case BackendFFmpeg, BackendOpenCV:
	default:
		return errors.Errorf("invalid extract backend %q (use 'ffmpeg' or 'opencv')", c.Extract.Backend)
	}
	if c.Extract.SampleRate <= 0 {
		return errors.Errorf("extract sample rate must be positive (got %v)", c.Extract.SampleRate)
	}
	if c.Dataset.SampleRate <= 0 {
		return errors.Errorf("dataset sample rate must be positive (got %v)", c.Dataset.SampleRate)
	}

	if c.Train.Epochs <= 0 || c.Train.ImageSize <= 0 {
		return errors.New("train epochs and image size must be positive")
	}
	if !ValidBatch(c.Train.Batch) {
		return errors.Errorf("train batch must be positive or %d for automatic sizing (got %d)", AutoBatch, c.Train.Batch)
	}
	if c.Predict.Confidence <= 0 || c.Predict.Confidence > 1 {
		return errors.Errorf("predict confidence must be in (0, 1] (got %v)", c.Predict.Confidence)
	}

	if c.Dataset.Publish && c.Storage.Bucket == "" {
		return errors.New("storage bucket must be set when publishing is enabled")
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// AutoBatch asks the detector to pick the largest batch that fits in GPU memory.
const AutoBatch = -1

// ValidBatch reports whether n is a usable training batch size.
func ValidBatch(n int) bool {
	return n > 0 || n == AutoBatch
}

// ValidateFilename rejects names that are empty or would escape the download directory.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return errors.Errorf("invalid filename %q", name)
	}
	if filepath.Base(name) != name {
		return errors.Errorf("filename %q must not contain a path separator", name)
	}
	return nil
}
