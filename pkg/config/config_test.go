package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceAuto, cfg.Acquire.Source)
	assert.Equal(t, "mp4", cfg.Acquire.Container)
	assert.Equal(t, BackendFFmpeg, cfg.Extract.Backend)
	assert.Equal(t, 2.0, cfg.Dataset.SampleRate)
	assert.Equal(t, 150, cfg.Train.Epochs)
	assert.Equal(t, 640, cfg.Train.ImageSize)
	assert.Equal(t, 16, cfg.Train.Batch)
	assert.Equal(t, "runs/detect/agrisentry_run1/weights/best.pt", cfg.Predict.Weights)
	assert.Equal(t, 0.4, cfg.Predict.Confidence)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Acquire.Source = "ftp" }},
		{"empty container", func(c *Config) { c.Acquire.Container = "" }},
		{"filename with dir", func(c *Config) { c.Acquire.Filename = "../video.mp4" }},
		{"empty filename", func(c *Config) { c.Acquire.Filename = "" }},
		{"unknown backend", func(c *Config) { c.Extract.Backend = "vlc" }},
		{"zero extract rate", func(c *Config) { c.Extract.SampleRate = 0 }},
		{"negative dataset rate", func(c *Config) { c.Dataset.SampleRate = -1 }},
		{"zero epochs", func(c *Config) { c.Train.Epochs = 0 }},
		{"zero batch", func(c *Config) { c.Train.Batch = 0 }},
		{"negative batch other than auto", func(c *Config) { c.Train.Batch = -2 }},
		{"confidence above one", func(c *Config) { c.Predict.Confidence = 1.5 }},
		{"publish without bucket", func(c *Config) { c.Dataset.Publish = true; c.Storage.Bucket = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"automatic batch", func(c *Config) { c.Train.Batch = AutoBatch }},
		{"warning log level", func(c *Config) { c.Log.Level = "warning" }},
		{"upper case log level", func(c *Config) { c.Log.Level = "DEBUG" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agrisentry.yaml")
	yaml := []byte(`
acquire:
  container: webm
extract:
  backend: opencv
  sample_rate: 0.5
train:
  epochs: 10
http:
  port: "9090"
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))
	t.Setenv("AGRISENTRY_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "webm", cfg.Acquire.Container)
	assert.Equal(t, BackendOpenCV, cfg.Extract.Backend)
	assert.Equal(t, 0.5, cfg.Extract.SampleRate)
	assert.Equal(t, 10, cfg.Train.Epochs)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 16, cfg.Train.Batch)
	assert.Equal(t, "data/raw_images", cfg.Dataset.FramesDir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
