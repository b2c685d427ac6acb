package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/chenBenjamin97/agrisentry/pkg/dataset"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogFile  = "log-file"

	flagDir         = "dir"
	flagFilename    = "filename"
	flagOut         = "out"
	flagFPS         = "fps"
	flagBackend     = "backend"
	flagDownloadDir = "download-dir"
	flagFramesDir   = "frames-dir"
	flagPublish     = "publish"
	flagData        = "data"
	flagModel       = "model"
	flagEpochs      = "epochs"
	flagImgsz       = "imgsz"
	flagBatch       = "batch"
	flagSource      = "source"
	flagWeights     = "weights"
	flagConf        = "conf"
	flagPort        = "port"
)

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name:            "agrisentry",
		Usage:           "build pest detection datasets from field videos, train and run the detector",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (default ./config.yaml if present)",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to `FILE` (rotated)",
			},
		},
		Before: e.setup,
		After:  e.teardown,
		Commands: []*cli.Command{
			{
				Name:      "download",
				Usage:     "download the best progressive stream of a video",
				ArgsUsage: "<locator>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDir, Usage: "destination `DIR`"},
					&cli.StringFlag{Name: flagFilename, Usage: "destination file name"},
				},
				Action: e.downloadAction,
			},
			{
				Name:      "extract",
				Usage:     "sample frames from a local video",
				ArgsUsage: "<media>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Usage: "frames output `DIR`"},
					&cli.Float64Flag{Name: flagFPS, Usage: "frames per second of video"},
					&cli.StringFlag{Name: flagBackend, Usage: "ffmpeg or opencv"},
				},
				Action: e.extractAction,
			},
			{
				Name:      "build",
				Usage:     "download a video and extract its frames into a dataset directory",
				ArgsUsage: "<locator>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDownloadDir, Usage: "video download `DIR`"},
					&cli.StringFlag{Name: flagFilename, Usage: "downloaded video file name"},
					&cli.StringFlag{Name: flagFramesDir, Usage: "frames output `DIR`"},
					&cli.Float64Flag{Name: flagFPS, Usage: "frames per second of video"},
					&cli.BoolFlag{Name: flagPublish, Usage: "upload the frames to object storage"},
				},
				Action: e.buildAction,
			},
			{
				Name:  "train",
				Usage: "train the pest detector on a labeled dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagData, Usage: "dataset description `FILE`"},
					&cli.StringFlag{Name: flagModel, Usage: "base model"},
					&cli.IntFlag{Name: flagEpochs},
					&cli.IntFlag{Name: flagImgsz, Usage: "training image size"},
					&cli.IntFlag{Name: flagBatch},
				},
				Action: e.trainAction,
			},
			{
				Name:  "predict",
				Usage: "run the trained detector on an image, a directory or a video",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagSource, Required: true, Usage: "image, directory or video `PATH`"},
					&cli.StringFlag{Name: flagWeights, Usage: "trained weights `FILE`"},
					&cli.Float64Flag{Name: flagConf, Usage: "confidence threshold"},
				},
				Action: e.predictAction,
			},
			{
				Name:  "serve",
				Usage: "serve the dataset HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagPort},
				},
				Action: e.serveAction,
			},
			{
				Name:   "check",
				Usage:  "report whether ffmpeg, ffprobe and yolo are installed",
				Action: e.checkAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders err as "<stage>: <kind>: <message>".
func formatError(err error) string {
	var se *dataset.StageError
	if errors.As(err, &se) {
		return se.Error()
	}
	return fmt.Sprintf("agrisentry: %s: %v", failure.KindOf(err), err)
}
