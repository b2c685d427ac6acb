package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/acquire"
	"github.com/chenBenjamin97/agrisentry/pkg/api"
	"github.com/chenBenjamin97/agrisentry/pkg/check"
	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/dataset"
	"github.com/chenBenjamin97/agrisentry/pkg/detect"
	"github.com/chenBenjamin97/agrisentry/pkg/extract"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/logging"
	"github.com/chenBenjamin97/agrisentry/pkg/storage"
)

// env is the state shared by every command once the global flags are parsed.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return stageError("config", failure.Wrap(failure.InvalidArgument, err, "load configuration"))
	}
	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}
	if c.IsSet(flagLogFile) {
		cfg.Log.File = c.String(flagLogFile)
	}
	if err := cfg.Validate(); err != nil {
		return stageError("config", failure.Wrap(failure.InvalidArgument, err, "invalid configuration"))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return stageError("config", failure.Wrap(failure.InvalidArgument, err, "create logger"))
	}
	e.cfg = cfg
	e.logger = logger
	return nil
}

func (e *env) teardown(*cli.Context) error {
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	return nil
}

func stageError(stage string, err error) error {
	return &dataset.StageError{Stage: stage, Err: err}
}

func requireArg(c *cli.Context, what string) (string, error) {
	arg := c.Args().First()
	if arg == "" {
		return "", stageError(dataset.StageValidate, failure.Errorf(failure.InvalidArgument, "%s argument is required (usage: %s %s)", what, c.Command.Name, c.Command.ArgsUsage))
	}
	return arg, nil
}

func (e *env) newAcquirer() (*acquire.Acquirer, error) {
	src, err := acquire.NewSource(e.cfg.Acquire.Source)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidArgument, err, "acquire source")
	}
	return acquire.New(src, e.cfg.Acquire, e.logger), nil
}

func (e *env) newExtractor(cfg config.ExtractConfig) (*extract.Extractor, error) {
	backend, err := extract.NewBackend(cfg, e.logger)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidArgument, err, "extract backend")
	}
	return extract.New(backend, e.logger), nil
}

// newPipeline wires the dataset pipeline; object storage is only connected when publish is set.
func (e *env) newPipeline(publish bool) (*dataset.Pipeline, error) {
	acquirer, err := e.newAcquirer()
	if err != nil {
		return nil, err
	}
	extractor, err := e.newExtractor(e.cfg.Extract)
	if err != nil {
		return nil, err
	}

	var publisher dataset.Publisher
	if publish {
		st, err := storage.NewStorage(e.cfg.Storage, e.logger)
		if err != nil {
			return nil, failure.Wrap(failure.PublishError, err, "object storage")
		}
		publisher = st
	}
	return dataset.New(acquirer, extractor, publisher, e.logger), nil
}

func (e *env) downloadAction(c *cli.Context) error {
	locator, err := requireArg(c, "locator")
	if err != nil {
		return err
	}
	dir, filename := e.cfg.Acquire.DownloadDir, e.cfg.Acquire.Filename
	if c.IsSet(flagDir) {
		dir = c.String(flagDir)
	}
	if c.IsSet(flagFilename) {
		filename = c.String(flagFilename)
	}

	acquirer, err := e.newAcquirer()
	if err != nil {
		return stageError(dataset.StageAcquire, err)
	}
	path, err := acquirer.Acquire(c.Context, locator, dir, filename)
	if err != nil {
		return stageError(dataset.StageAcquire, err)
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func (e *env) extractAction(c *cli.Context) error {
	media, err := requireArg(c, "media")
	if err != nil {
		return err
	}
	cfg := e.cfg.Extract
	out := e.cfg.Dataset.FramesDir
	if c.IsSet(flagOut) {
		out = c.String(flagOut)
	}
	if c.IsSet(flagFPS) {
		cfg.SampleRate = c.Float64(flagFPS)
	}
	if c.IsSet(flagBackend) {
		cfg.Backend = c.String(flagBackend)
	}

	extractor, err := e.newExtractor(cfg)
	if err != nil {
		return stageError(dataset.StageExtract, err)
	}
	count, err := extractor.Extract(c.Context, media, out, cfg.SampleRate)
	if err != nil {
		return stageError(dataset.StageExtract, err)
	}
	fmt.Fprintf(c.App.Writer, "%d frames written to %s\n", count, out)
	return nil
}

func (e *env) buildAction(c *cli.Context) error {
	locator, err := requireArg(c, "locator")
	if err != nil {
		return err
	}
	req := dataset.Request{
		Locator:     locator,
		DownloadDir: e.cfg.Acquire.DownloadDir,
		Filename:    e.cfg.Acquire.Filename,
		FramesDir:   e.cfg.Dataset.FramesDir,
		SampleRate:  e.cfg.Dataset.SampleRate,
		Publish:     e.cfg.Dataset.Publish,
	}
	if c.IsSet(flagDownloadDir) {
		req.DownloadDir = c.String(flagDownloadDir)
	}
	if c.IsSet(flagFilename) {
		req.Filename = c.String(flagFilename)
	}
	if c.IsSet(flagFramesDir) {
		req.FramesDir = c.String(flagFramesDir)
	}
	if c.IsSet(flagFPS) {
		req.SampleRate = c.Float64(flagFPS)
	}
	if c.IsSet(flagPublish) {
		req.Publish = c.Bool(flagPublish)
	}

	pipeline, err := e.newPipeline(req.Publish)
	if err != nil {
		return stageError(dataset.StageValidate, err)
	}
	res, err := pipeline.Build(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d frames written to %s\n", res.FrameCount, res.FramesDir)
	if req.Publish {
		fmt.Fprintf(c.App.Writer, "%d frames published to bucket %s\n", res.Published, e.cfg.Storage.Bucket)
	}
	return nil
}

func (e *env) trainAction(c *cli.Context) error {
	cfg := e.cfg.Train
	if c.IsSet(flagData) {
		cfg.Data = c.String(flagData)
	}
	if c.IsSet(flagModel) {
		cfg.Model = c.String(flagModel)
	}
	if c.IsSet(flagEpochs) {
		cfg.Epochs = c.Int(flagEpochs)
	}
	if c.IsSet(flagImgsz) {
		cfg.ImageSize = c.Int(flagImgsz)
	}
	if c.IsSet(flagBatch) {
		cfg.Batch = c.Int(flagBatch)
	}

	weights, err := detect.NewTrainer(cfg.Command, e.logger).Train(c.Context, cfg)
	if err != nil {
		return stageError("train", err)
	}
	fmt.Fprintln(c.App.Writer, weights)
	return nil
}

func (e *env) predictAction(c *cli.Context) error {
	cfg := e.cfg.Predict
	cfg.Source = c.String(flagSource)
	if c.IsSet(flagWeights) {
		cfg.Weights = c.String(flagWeights)
	}
	if c.IsSet(flagConf) {
		cfg.Confidence = c.Float64(flagConf)
	}

	out, err := detect.NewPredictor(cfg.Command, e.logger).Predict(c.Context, cfg)
	if err != nil {
		return stageError("predict", err)
	}
	fmt.Fprintln(c.App.Writer, out)
	return nil
}

func (e *env) serveAction(c *cli.Context) error {
	cfg := *e.cfg
	if c.IsSet(flagPort) {
		cfg.HTTP.Port = c.String(flagPort)
	}

	pipeline, err := e.newPipeline(cfg.Dataset.Publish)
	if err != nil {
		return stageError("serve", err)
	}
	if err := api.NewServer(c.Context, &cfg, pipeline, e.logger).Run(c.Context); err != nil {
		return stageError("serve", err)
	}
	return nil
}

func (e *env) checkAction(c *cli.Context) error {
	results := check.Run(c.Context, check.Tools(e.cfg), e.logger)
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = "missing (" + r.Tool.InstallHint + ")"
		}
		fmt.Fprintf(c.App.Writer, "%-8s %s\n", r.Tool.Name, status)
	}
	if missing := check.MissingRequired(results); len(missing) > 0 {
		return stageError("check", failure.Errorf(failure.InvalidArgument, "required tools missing: %s", strings.Join(missing, ", ")))
	}
	return nil
}
