package acquire

import (
	"context"
	"path"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"github.com/pkg/errors"
)

// DirectSource treats the locator as the URL of a single, self-contained media
// file. Its container is taken from the URL path extension.
type DirectSource struct{}

// NewDirectSource returns a DirectSource.
func NewDirectSource() *DirectSource {
	return &DirectSource{}
}

func (s *DirectSource) Resolve(_ context.Context, locator string) (Media, error) {
	u, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}
	name := path.Base(u.Path)
	return &directMedia{
		locator: locator,
		title:   name,
		stream: Stream{
			ID:        "direct",
			Container: strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")),
			HasVideo:  true,
			HasAudio:  true,
		},
	}, nil
}

type directMedia struct {
	locator string
	title   string
	stream  Stream
}

func (m *directMedia) Title() string     { return m.title }
func (m *directMedia) Streams() []Stream { return []Stream{m.stream} }

func (m *directMedia) Download(ctx context.Context, _ Stream, dst string) error {
	if err := getter.GetFile(dst, m.locator, getter.WithContext(ctx)); err != nil {
		return errors.Wrap(err, "download file")
	}
	return nil
}
