package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/acquire"
	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/extract"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

type fakeAcquirer struct {
	err   error
	calls int
}

func (a *fakeAcquirer) Acquire(_ context.Context, _, destDir, filename string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, filename)
	return path, os.WriteFile(path, []byte("video"), 0o644)
}

// frameBackend writes a fixed number of frames, then fails with err if set.
type frameBackend struct {
	frames int
	err    error
}

func (b *frameBackend) Name() string { return "frames" }

func (b *frameBackend) Extract(_ context.Context, _, outputDir string, _ float64) (int, error) {
	for n := 1; n <= b.frames; n++ {
		if err := os.WriteFile(filepath.Join(outputDir, utils.FrameName(n)), []byte("png"), 0o644); err != nil {
			return 0, err
		}
	}
	return b.frames, b.err
}

type fakePublisher struct {
	err     error
	dataset string
}

func (p *fakePublisher) PublishFrames(_ context.Context, dataset, framesDir string) (int, error) {
	p.dataset = dataset
	if p.err != nil {
		return 0, p.err
	}
	frames, err := utils.ListFrames(framesDir)
	return len(frames), err
}

func newRequest(root string) Request {
	return Request{
		Locator:     "https://www.youtube.com/watch?v=pest",
		DownloadDir: filepath.Join(root, "temp_data"),
		Filename:    "downloaded_video.mp4",
		FramesDir:   filepath.Join(root, "data", "raw_images"),
		SampleRate:  2,
	}
}

func newExtractor(b extract.FrameExtractionBackend) *extract.Extractor {
	return extract.New(b, zap.NewNop(), extract.WithDurationProbe(nil))
}

func TestBuild_Success(t *testing.T) {
	req := newRequest(t.TempDir())
	p := New(&fakeAcquirer{}, newExtractor(&frameBackend{frames: 20}), nil, zap.NewNop())

	res, err := p.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(req.DownloadDir, req.Filename), res.MediaPath)
	assert.Equal(t, 20, res.FrameCount)
	assert.Equal(t, 20, utils.ContiguousFrames(req.FramesDir))
	assert.Zero(t, res.Published)
}

func TestBuild_AcquisitionFailureLeavesFramesDirUntouched(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind failure.Kind
	}{
		{"no stream", &acquire.NoStreamFoundError{Locator: "x", Container: "mp4"}, failure.NoStreamFound},
		{"network", &acquire.AcquisitionError{Locator: "x", Err: errors.New("dial tcp: timeout")}, failure.AcquisitionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t.TempDir())
			backend := &frameBackend{frames: 3}
			p := New(&fakeAcquirer{err: tt.err}, newExtractor(backend), nil, zap.NewNop())

			_, err := p.Build(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, failure.KindOf(err))

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageAcquire, se.Stage)

			_, statErr := os.Stat(req.FramesDir)
			assert.True(t, os.IsNotExist(statErr), "frames dir must not be created")
		})
	}
}

func TestBuild_ExtractionFailureKeepsDownload(t *testing.T) {
	req := newRequest(t.TempDir())
	backend := &frameBackend{frames: 2, err: &extract.TranscodeError{Stderr: "Invalid data found", Err: errors.New("exit status 1")}}
	p := New(&fakeAcquirer{}, newExtractor(backend), nil, zap.NewNop())

	_, err := p.Build(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, failure.TranscodeError, failure.KindOf(err))
	assert.Contains(t, err.Error(), "extract: TranscodeError")

	assert.True(t, utils.FileExists(filepath.Join(req.DownloadDir, req.Filename)), "download is kept for retry")
	assert.Equal(t, 2, utils.ContiguousFrames(req.FramesDir))

	// retrying extraction alone from the kept artifact
	count, err := newExtractor(&frameBackend{frames: 5}).Extract(context.Background(), filepath.Join(req.DownloadDir, req.Filename), req.FramesDir, req.SampleRate)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestBuild_InvalidRequest(t *testing.T) {
	acq := &fakeAcquirer{}
	p := New(acq, newExtractor(&frameBackend{}), nil, zap.NewNop())

	req := newRequest(t.TempDir())
	req.SampleRate = 0
	_, err := p.Build(context.Background(), req)
	assert.Equal(t, failure.InvalidArgument, failure.KindOf(err))

	req = newRequest(t.TempDir())
	req.Publish = true
	_, err = p.Build(context.Background(), req)
	assert.Equal(t, failure.InvalidArgument, failure.KindOf(err))

	assert.Zero(t, acq.calls, "nothing is downloaded for an invalid request")
}

func TestBuild_Publish(t *testing.T) {
	req := newRequest(t.TempDir())
	req.Publish = true
	pub := &fakePublisher{}
	p := New(&fakeAcquirer{}, newExtractor(&frameBackend{frames: 4}), pub, zap.NewNop())

	res, err := p.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Published)
	assert.Equal(t, "raw_images", pub.dataset)
}

func TestBuild_PublishFailureKeepsFrames(t *testing.T) {
	req := newRequest(t.TempDir())
	req.Publish = true
	p := New(&fakeAcquirer{}, newExtractor(&frameBackend{frames: 4}), &fakePublisher{err: errors.New("access denied")}, zap.NewNop())

	_, err := p.Build(context.Background(), req)
	assert.Equal(t, failure.PublishError, failure.KindOf(err))
	assert.Equal(t, 4, utils.ContiguousFrames(req.FramesDir))
}

func TestBuild_DirectDownloadEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("some mp4 bytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	acq := acquire.New(acquire.NewDirectSource(), config.DefaultConfig().Acquire, zap.NewNop())
	p := New(acq, newExtractor(&frameBackend{frames: 6}), nil, zap.NewNop())

	req := newRequest(root)
	req.Locator = srv.URL + "/pests.mp4"
	res, err := p.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 6, res.FrameCount)
	assert.True(t, utils.FileExists(res.MediaPath))
}

func TestBuild_InvalidLocator(t *testing.T) {
	root := t.TempDir()
	acq := acquire.New(acquire.NewDirectSource(), config.DefaultConfig().Acquire, zap.NewNop())
	p := New(acq, newExtractor(&frameBackend{frames: 1}), nil, zap.NewNop())

	req := newRequest(root)
	req.Locator = "not-a-locator"
	_, err := p.Build(context.Background(), req)
	assert.Equal(t, failure.AcquisitionError, failure.KindOf(err))

	_, statErr := os.Stat(req.FramesDir)
	assert.True(t, os.IsNotExist(statErr))
}
