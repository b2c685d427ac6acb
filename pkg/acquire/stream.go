package acquire

import (
	"mime"
	"strings"

	"github.com/samber/lo"
)

// Stream is one encoded rendition a locator offers.
type Stream struct {
	ID            string
	MimeType      string
	Container     string // e.g. "mp4", "webm"
	Height        int
	Bitrate       int
	HasVideo      bool
	HasAudio      bool
	ContentLength int64
}

// Progressive reports whether the stream carries video and audio in one file.
func (s Stream) Progressive() bool {
	return s.HasVideo && s.HasAudio
}

// SelectStream applies the fixed selection policy: among progressive streams
// in the given container, the highest resolution wins, then the higher
// bitrate, then the first listed. There is no fallback to adaptive streams.
func SelectStream(streams []Stream, container string) (Stream, bool) {
	eligible := lo.Filter(streams, func(s Stream, _ int) bool {
		return s.Progressive() && strings.EqualFold(s.Container, container)
	})
	if len(eligible) == 0 {
		return Stream{}, false
	}

	return lo.MaxBy(eligible, func(a, b Stream) bool {
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.Bitrate > b.Bitrate
	}), true
}

// containerOf returns the container named by a MIME type such as
// `video/mp4; codecs="avc1.42001E, mp4a.40.2"`.
func containerOf(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		return strings.ToLower(mediaType[i+1:])
	}
	return ""
}
