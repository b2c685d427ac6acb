package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/dataset"
	"github.com/chenBenjamin97/agrisentry/pkg/extract"
	"github.com/chenBenjamin97/agrisentry/pkg/failure"
	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

//fakeBuilder blocks every build until release is closed
type fakeBuilder struct {
	release chan struct{}
	err     error
	reqs    chan dataset.Request
}

func newFakeBuilder(err error) *fakeBuilder {
	return &fakeBuilder{release: make(chan struct{}), err: err, reqs: make(chan dataset.Request, 10)}
}

func (b *fakeBuilder) Build(ctx context.Context, req dataset.Request) (*dataset.Result, error) {
	b.reqs <- req
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	return &dataset.Result{Locator: req.Locator, FramesDir: req.FramesDir, FrameCount: 3}, nil
}

func newTestServer(t *testing.T, builder Builder) (*Server, *gin.Engine) {
	t.Helper()
	cfg := config.DefaultConfig()
	root := t.TempDir()
	cfg.Dataset.Root = filepath.Join(root, "datasets")
	cfg.Acquire.DownloadDir = filepath.Join(root, "temp_data")
	s := NewServer(context.Background(), &cfg, builder, zap.NewNop())
	return s, s.SetRouter()
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitJob(t *testing.T, r http.Handler, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/jobs/"+id, "")
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &job) != nil {
			return false
		}
		return job.Status != JobRunning
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestHealthAndMetrics(t *testing.T) {
	_, r := newTestServer(t, newFakeBuilder(nil))

	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agrisentry_active_jobs")
}

func TestCreateDataset(t *testing.T) {
	b := newFakeBuilder(nil)
	s, r := newTestServer(t, b)

	w := do(r, http.MethodPost, "/api/datasets", `{"locator":"https://www.youtube.com/watch?v=pest","name":"aphids"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	req := <-b.reqs
	assert.Equal(t, filepath.Join(s.cfg.Dataset.Root, "aphids"), req.FramesDir)
	assert.Equal(t, "aphids.mp4", req.Filename)
	assert.Equal(t, s.cfg.Dataset.SampleRate, req.SampleRate)

	w = do(r, http.MethodGet, "/api/jobs/"+created["id"], "")
	require.Equal(t, http.StatusOK, w.Code)
	var accepted Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, JobRunning, accepted.Status, "an accepted job is running right away")
	assert.Nil(t, accepted.Finished)

	close(b.release)
	job := waitJob(t, r, created["id"])
	assert.Equal(t, JobSucceeded, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 3, job.Result.FrameCount)
}

func TestCreateDataset_BadRequest(t *testing.T) {
	_, r := newTestServer(t, newFakeBuilder(nil))

	for _, body := range []string{
		`not json`,
		`{"name":"aphids"}`,
		`{"locator":"https://example.com/a.mp4","name":"../etc"}`,
		`{"locator":"https://example.com/a.mp4","name":"aphids","fps":-1}`,
	} {
		w := do(r, http.MethodPost, "/api/datasets", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCreateDataset_BusyFramesDir(t *testing.T) {
	b := newFakeBuilder(nil)
	s, r := newTestServer(t, b)
	body := `{"locator":"https://example.com/a.mp4","name":"aphids","fps":1}`

	w := do(r, http.MethodPost, "/api/datasets", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	<-b.reqs

	w = do(r, http.MethodPost, "/api/datasets", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(b.release)
	s.Wait()

	w = do(r, http.MethodPost, "/api/datasets", body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	s.Wait()
}

func TestCreateDataset_FailedBuild(t *testing.T) {
	b := newFakeBuilder(&dataset.StageError{Stage: dataset.StageExtract, Err: &extract.TranscodeError{Path: "v.mp4"}})
	close(b.release)
	_, r := newTestServer(t, b)

	w := do(r, http.MethodPost, "/api/datasets", `{"locator":"https://example.com/a.mp4","name":"aphids"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	job := waitJob(t, r, created["id"])
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, failure.TranscodeError, job.Kind)
	assert.True(t, strings.HasPrefix(job.Error, "extract: TranscodeError"))
}

func TestGetJob_Unknown(t *testing.T) {
	_, r := newTestServer(t, newFakeBuilder(nil))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/jobs/nope", "").Code)
}

func TestDatasetsAndFrames(t *testing.T) {
	s, r := newTestServer(t, newFakeBuilder(nil))

	w := do(r, http.MethodGet, "/api/datasets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	dir := filepath.Join(s.cfg.Dataset.Root, "aphids")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range []int{2, 1} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, utils.FrameName(n)), []byte("png"), 0o644))
	}

	w = do(r, http.MethodGet, "/api/datasets", "")
	assert.JSONEq(t, `["aphids"]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/datasets/aphids/frames", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["frame_00001.png","frame_00002.png"]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/datasets/missing/frames", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/datasets/aphids/frames/frame_00002.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/api/datasets/aphids/frames/frame_00003.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/datasets/aphids/frames/notes.txt", "")
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}

func TestVideos(t *testing.T) {
	s, r := newTestServer(t, newFakeBuilder(nil))

	w := do(r, http.MethodGet, "/api/videos", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	require.NoError(t, os.MkdirAll(s.cfg.Acquire.DownloadDir, 0o755))
	for _, name := range []string{"aphids.mp4", ".aphids.mp4.123.part", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.cfg.Acquire.DownloadDir, name), []byte("x"), 0o644))
	}
	w = do(r, http.MethodGet, "/api/videos", "")
	assert.JSONEq(t, `["aphids.mp4"]`, w.Body.String())
}
