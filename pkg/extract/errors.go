package extract

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

// ErrInvalidRate is returned for a sampling rate that is not a positive number.
var ErrInvalidRate = failure.New(failure.InvalidArgument, "sample rate must be a positive number of frames per second")

// SourceNotFoundError reports that the media to extract from does not exist
// or is not a readable file. It is raised before anything is written.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video file not found at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("video file not found at %s", e.Path)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

func (e *SourceNotFoundError) Kind() failure.Kind { return failure.SourceNotFound }

// TranscodeError reports a failed extraction backend run. Stderr holds the
// diagnostic output of the external process, when there is one. Frames
// written before the failure are left on disk.
type TranscodeError struct {
	Path   string
	Stderr string
	Err    error
}

// stderrTailLines bounds how much diagnostic output Error includes.
const stderrTailLines = 10

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("extract frames from %s: %v", e.Path, e.Err)
	if tail := tailLines(e.Stderr, stderrTailLines); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

func (e *TranscodeError) Kind() failure.Kind { return failure.TranscodeError }

// asTranscodeError returns err as a *TranscodeError for path, wrapping it if needed.
func asTranscodeError(path string, err error) *TranscodeError {
	var te *TranscodeError
	if errors.As(err, &te) {
		if te.Path == "" {
			te.Path = path
		}
		return te
	}
	return &TranscodeError{Path: path, Err: err}
}

func tailLines(s string, n int) string {
	lines := make([]string, 0, n)
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		l = strings.TrimRight(l, "\r")
		// progress updates are separated by carriage returns; keep the last one
		if i := strings.LastIndexByte(l, '\r'); i >= 0 {
			l = l[i+1:]
		}
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
