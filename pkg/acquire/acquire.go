// Package acquire downloads the media a locator points at: it resolves the
// offered streams, picks the best progressive one in the configured container
// and writes it to the destination directory atomically.
package acquire

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/metrics"
)

// Acquirer retrieves remote media into a local file.
type Acquirer struct {
	source    Source
	container string
	logger    *zap.Logger
}

// New returns an Acquirer resolving locators with src and accepting only
// progressive streams in cfg.Container.
func New(src Source, cfg config.AcquireConfig, logger *zap.Logger) *Acquirer {
	return &Acquirer{source: src, container: cfg.Container, logger: logger}
}

// Acquire downloads the selected stream of locator to destDir/filename and
// returns that path. The file is written to a temporary name first and only
// renamed into place after a complete, non-empty transfer, so a failed run
// never leaves a truncated file under filename.
//
// Failures are *NoStreamFoundError (nothing written, destDir not created) or
// *AcquisitionError.
func (a *Acquirer) Acquire(ctx context.Context, locator, destDir, filename string) (path string, err error) {
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = string(failure.KindOf(err))
		}
		metrics.AcquisitionsTotal.WithLabelValues(result).Inc()
	}()

	if _, err := parseLocator(locator); err != nil {
		return "", &AcquisitionError{Locator: locator, Err: err}
	}
	if err := config.ValidateFilename(filename); err != nil {
		return "", &AcquisitionError{Locator: locator, Err: err}
	}

	a.logger.Info("resolving streams", zap.String("locator", locator))
	media, err := a.source.Resolve(ctx, locator)
	if err != nil {
		return "", &AcquisitionError{Locator: locator, Err: err}
	}

	stream, ok := SelectStream(media.Streams(), a.container)
	if !ok {
		return "", &NoStreamFoundError{Locator: locator, Container: a.container}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &AcquisitionError{Locator: locator, Err: errors.Wrap(err, "create destination directory")}
	}

	path = filepath.Join(destDir, filename)
	a.logger.Info("downloading",
		zap.String("title", media.Title()),
		zap.String("stream", stream.ID),
		zap.Int("height", stream.Height),
		zap.String("path", path),
	)

	start := time.Now()
	if err := a.transfer(ctx, media, stream, path); err != nil {
		return "", &AcquisitionError{Locator: locator, Err: err}
	}
	metrics.StageDuration.WithLabelValues("acquire").Observe(time.Since(start).Seconds())

	a.logger.Info("video downloaded", zap.String("path", path), zap.Duration("took", time.Since(start)))
	return path, nil
}

// transfer downloads into a temporary sibling of path and renames it over path.
func (a *Acquirer) transfer(ctx context.Context, media Media, stream Stream, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return multierr.Append(errors.Wrap(err, "close temporary file"), os.Remove(tmpPath))
	}

	if err := media.Download(ctx, stream, tmpPath); err != nil {
		return multierr.Append(err, removeIfExists(tmpPath))
	}

	fi, err := os.Stat(tmpPath)
	if err != nil {
		return multierr.Append(errors.Wrap(err, "stat download"), removeIfExists(tmpPath))
	}
	if fi.Size() == 0 {
		return multierr.Append(errors.New("transfer produced an empty file"), os.Remove(tmpPath))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return multierr.Append(errors.Wrap(err, "move download into place"), os.Remove(tmpPath))
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
