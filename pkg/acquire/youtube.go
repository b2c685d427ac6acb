package acquire

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// YouTubeSource resolves YouTube watch URLs through the player API.
type YouTubeSource struct {
	client *youtube.Client
}

// NewYouTubeSource returns a source backed by a default YouTube client.
func NewYouTubeSource() *YouTubeSource {
	return &YouTubeSource{client: &youtube.Client{}}
}

func (s *YouTubeSource) Resolve(ctx context.Context, locator string) (Media, error) {
	video, err := s.client.GetVideoContext(ctx, locator)
	if err != nil {
		return nil, errors.Wrap(err, "resolve video")
	}
	return &youtubeMedia{client: s.client, video: video}, nil
}

type youtubeMedia struct {
	client *youtube.Client
	video  *youtube.Video
}

func (m *youtubeMedia) Title() string { return m.video.Title }

func (m *youtubeMedia) Streams() []Stream {
	streams := make([]Stream, 0, len(m.video.Formats))
	for _, f := range m.video.Formats {
		streams = append(streams, streamFromFormat(f))
	}
	return streams
}

func (m *youtubeMedia) Download(ctx context.Context, s Stream, dst string) (err error) {
	format := m.findFormat(s.ID)
	if format == nil {
		return errors.Errorf("format %s is no longer offered", s.ID)
	}

	body, _, err := m.client.GetStreamContext(ctx, m.video, format)
	if err != nil {
		return errors.Wrap(err, "open stream")
	}
	defer func() { err = multierr.Append(err, body.Close()) }()

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	if _, err := io.Copy(f, body); err != nil {
		return errors.Wrap(err, "transfer stream")
	}
	return nil
}

func (m *youtubeMedia) findFormat(id string) *youtube.Format {
	for i := range m.video.Formats {
		if strconv.Itoa(m.video.Formats[i].ItagNo) == id {
			return &m.video.Formats[i]
		}
	}
	return nil
}

func streamFromFormat(f youtube.Format) Stream {
	return Stream{
		ID:            strconv.Itoa(f.ItagNo),
		MimeType:      f.MimeType,
		Container:     containerOf(f.MimeType),
		Height:        f.Height,
		Bitrate:       f.Bitrate,
		HasVideo:      strings.HasPrefix(f.MimeType, "video/"),
		HasAudio:      f.AudioChannels > 0,
		ContentLength: f.ContentLength,
	}
}
