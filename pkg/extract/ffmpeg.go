package extract

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

// reFrameCounter matches ffmpeg's progress counter, e.g. "frame=   20 fps=0.0 ...".
var reFrameCounter = regexp.MustCompile(`frame=\s*(\d+)`)

// FFmpegBackend samples frames with an external ffmpeg process and the fps filter.
type FFmpegBackend struct {
	bin    string
	logger *zap.Logger
}

// NewFFmpegBackend returns a backend running bin (a path or a name looked up on PATH).
func NewFFmpegBackend(bin string, logger *zap.Logger) *FFmpegBackend {
	if bin == "" {
		bin = "ffmpeg"
	}
	// the compiled command is logged through zap instead
	ffmpeg.LogCompiledCommand = false
	return &FFmpegBackend{bin: bin, logger: logger}
}

func (b *FFmpegBackend) Name() string { return "ffmpeg" }

// Args returns the ffmpeg arguments used to sample mediaPath into outputDir.
func (b *FFmpegBackend) Args(mediaPath, outputDir string, rate float64) []string {
	return b.stream(context.Background(), mediaPath, outputDir, rate).GetArgs()
}

// stream builds the ffmpeg graph bound to ctx. GlobalArgs starts a new stream
// with a fresh context and the -y flag is stored in the context, so ctx is
// attached in between.
func (b *FFmpegBackend) stream(ctx context.Context, mediaPath, outputDir string, rate float64) *ffmpeg.Stream {
	s := ffmpeg.Input(mediaPath).
		Output(filepath.Join(outputDir, utils.FramePattern), ffmpeg.KwArgs{"vf": "fps=" + FormatRate(rate)}).
		GlobalArgs("-hide_banner", "-nostdin")
	s.Context = ctx
	return s.OverWriteOutput()
}

// command compiles the process Extract runs: bin with the sampling arguments,
// stderr captured into stderr and killed when ctx is done.
func (b *FFmpegBackend) command(ctx context.Context, bin, mediaPath, outputDir string, rate float64, stderr io.Writer) *exec.Cmd {
	return b.stream(ctx, mediaPath, outputDir, rate).
		WithErrorOutput(stderr).
		SetFfmpegPath(bin).
		Compile()
}

// Extract runs ffmpeg to completion. The frame count is read from ffmpeg's
// final progress counter; when none is printed, the contiguous run of frames
// starting at frame_00001 is counted instead, which includes stale frames of
// an earlier, longer run into the same directory.
func (b *FFmpegBackend) Extract(ctx context.Context, mediaPath, outputDir string, rate float64) (int, error) {
	bin, err := exec.LookPath(b.bin)
	if err != nil {
		return 0, errors.Wrapf(err, "%s not found", b.bin)
	}

	var stderr bytes.Buffer
	cmd := b.command(ctx, bin, mediaPath, outputDir, rate, &stderr)
	b.logger.Debug("running ffmpeg", zap.String("bin", cmd.Path), zap.Strings("args", cmd.Args[1:]))

	if err := cmd.Run(); err != nil {
		return 0, &TranscodeError{Path: mediaPath, Stderr: stderr.String(), Err: err}
	}

	if n, ok := parseFrameCount(stderr.String()); ok {
		return n, nil
	}
	return utils.ContiguousFrames(outputDir), nil
}

// parseFrameCount returns the last frame counter ffmpeg printed.
func parseFrameCount(stderr string) (int, bool) {
	matches := reFrameCounter.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatRate renders a sampling rate for the fps filter ("2", "0.5").
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
