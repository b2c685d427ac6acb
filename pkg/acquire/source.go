package acquire

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
)

// Source resolves a locator into the streams it offers.
type Source interface {
	Resolve(ctx context.Context, locator string) (Media, error)
}

// Media is a resolved locator.
type Media interface {
	Title() string
	Streams() []Stream
	// Download transfers s into the file at dst, which already exists and is empty.
	Download(ctx context.Context, s Stream, dst string) error
}

// NewSource returns the Source named by kind (see config.Source*).
func NewSource(kind string) (Source, error) {
	switch kind {
	case config.SourceYouTube:
		return NewYouTubeSource(), nil
	case config.SourceDirect:
		return NewDirectSource(), nil
	case config.SourceAuto, "":
		return &autoSource{youtube: NewYouTubeSource(), direct: NewDirectSource()}, nil
	default:
		return nil, errors.Errorf("unknown acquire source %q", kind)
	}
}

// autoSource routes YouTube locators to the YouTube source and everything
// else to the direct source.
type autoSource struct {
	youtube Source
	direct  Source
}

func (s *autoSource) Resolve(ctx context.Context, locator string) (Media, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, err
	}
	if isYouTubeHost(u.Hostname()) {
		return s.youtube.Resolve(ctx, locator)
	}
	return s.direct.Resolve(ctx, locator)
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

// parseLocator checks that locator is an absolute http(s) URL.
func parseLocator(locator string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return nil, ErrInvalidLocator
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidLocator
	}
	return u, nil
}
