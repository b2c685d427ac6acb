// Package detect drives the external YOLO detector: it trains a pest detection
// model on a labeled dataset and runs a trained model over images or videos.
// The detector is a separate program ("yolo" from the ultralytics package)
// invoked with key=value arguments.
package detect

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/metrics"
)

const outputTailLines = 20

// runner executes one detector mode and streams its output to the logger.
type runner struct {
	command string
	logger  *zap.Logger
}

func (r *runner) run(ctx context.Context, mode string, args []string) error {
	bin, err := exec.LookPath(r.command)
	if err != nil {
		return &DetectorError{Mode: mode, Err: errors.Wrapf(err, "%s not found (pip install ultralytics)", r.command)}
	}

	cmd := exec.CommandContext(ctx, bin, append([]string{"detect", mode}, args...)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return &DetectorError{Mode: mode, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	r.logger.Info("starting detector", zap.String("mode", mode), zap.Strings("args", cmd.Args[1:]))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &DetectorError{Mode: mode, Err: errors.Wrap(err, "start detector")}
	}

	tail := make([]string, 0, outputTailLines)
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := lastProgress(scanner.Text())
		if line == "" {
			continue
		}
		r.logger.Debug(line, zap.String("mode", mode))
		if len(tail) == outputTailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return &DetectorError{Mode: mode, Output: strings.Join(tail, "\n"), Err: err}
	}
	if scanErr != nil {
		r.logger.Warn("could not read detector output", zap.Error(scanErr))
	}
	metrics.StageDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	r.logger.Info("detector finished", zap.String("mode", mode), zap.Duration("took", time.Since(start)))
	return nil
}

// lastProgress returns the last carriage-return separated segment of line.
// Progress bars redraw themselves with "\r".
func lastProgress(line string) string {
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func kv(key, value string) string {
	return key + "=" + value
}

// pyBool formats b the way the detector's argument parser expects.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
