// Package check reports whether the external programs the tooling drives are
// installed.
package check

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
)

// Tool is an external program and the argument that prints its version.
type Tool struct {
	Name        string
	Command     string
	VersionArg  string
	Required    bool   // needed by the default dataset pipeline
	InstallHint string // shown when missing
}

// Result is the outcome of checking one Tool.
type Result struct {
	Tool    Tool
	Path    string
	Version string
	Err     error
}

// OK reports whether the tool was found and answered its version query.
func (r Result) OK() bool { return r.Err == nil }

// Tools returns the programs cfg refers to.
func Tools(cfg *config.Config) []Tool {
	ffmpegBin := cfg.Extract.FFmpegPath
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return []Tool{
		{Name: "ffmpeg", Command: ffmpegBin, VersionArg: "-version", Required: cfg.Extract.Backend != config.BackendOpenCV, InstallHint: "install ffmpeg from your package manager"},
		{Name: "ffprobe", Command: "ffprobe", VersionArg: "-version", InstallHint: "ships with ffmpeg, used to sanity check frame counts"},
		{Name: "yolo", Command: cfg.Train.Command, VersionArg: "version", InstallHint: "pip install ultralytics"},
	}
}

// Run checks every tool and logs one line per tool. It never stops early.
func Run(ctx context.Context, tools []Tool, logger *zap.Logger) []Result {
	results := make([]Result, 0, len(tools))
	for _, tool := range tools {
		res := checkTool(ctx, tool)
		switch {
		case res.OK():
			logger.Info(tool.Name+" found", zap.String("path", res.Path), zap.String("version", res.Version))
		case tool.Required:
			logger.Error(tool.Name+" not usable", zap.Error(res.Err), zap.String("hint", tool.InstallHint))
		default:
			logger.Warn(tool.Name+" not usable", zap.Error(res.Err), zap.String("hint", tool.InstallHint))
		}
		results = append(results, res)
	}
	return results
}

// MissingRequired returns the names of required tools that failed.
func MissingRequired(results []Result) []string {
	var missing []string
	for _, r := range results {
		if r.Tool.Required && !r.OK() {
			missing = append(missing, r.Tool.Name)
		}
	}
	return missing
}

func checkTool(ctx context.Context, tool Tool) Result {
	res := Result{Tool: tool}
	path, err := exec.LookPath(tool.Command)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = path

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, tool.VersionArg).Output()
	if err != nil {
		res.Err = err
		return res
	}
	res.Version = firstLine(string(out))
	return res
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
