package extract

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DurationProbe returns the playback duration of a media file.
type DurationProbe func(mediaPath string) (time.Duration, error)

// ProbeDuration reads the container duration with ffprobe.
func ProbeDuration(mediaPath string) (time.Duration, error) {
	out, err := ffmpeg.Probe(mediaPath)
	if err != nil {
		return 0, errors.Wrap(err, "ffprobe")
	}
	return parseProbeDuration(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeDuration(out string) (time.Duration, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return 0, errors.Wrap(err, "decode ffprobe output")
	}
	if p.Format.Duration == "" {
		return 0, errors.New("ffprobe reported no duration")
	}
	secs, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse duration")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ExpectedFrames is floor(duration * rate), the frame count a sampling run
// should produce give or take one frame of boundary rounding.
func ExpectedFrames(d time.Duration, rate float64) int {
	return int(d.Seconds() * rate)
}
