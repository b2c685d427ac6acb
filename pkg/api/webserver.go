package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/dataset"
	"github.com/chenBenjamin97/agrisentry/pkg/metrics"
	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

//Builder runs one dataset build, see dataset.Pipeline
type Builder interface {
	Build(ctx context.Context, req dataset.Request) (*dataset.Result, error)
}

//Server exposes dataset builds and their frames over HTTP
type Server struct {
	cfg     *config.Config
	builder Builder
	logger  *zap.Logger
	jobs    *jobRegistry

	//builds outlive the request that started them; they are bound to the server's lifetime instead
	buildCtx context.Context
	wg       sync.WaitGroup
}

//CreateDatasetRequest is the body of POST /api/datasets
type CreateDatasetRequest struct {
	Locator string  `json:"locator" binding:"required"`
	Name    string  `json:"name" binding:"required"`
	FPS     float64 `json:"fps"`
}

func NewServer(ctx context.Context, cfg *config.Config, builder Builder, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		builder:  builder,
		logger:   logger,
		jobs:     newJobRegistry(),
		buildCtx: ctx,
	}
}

func (s *Server) SetRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiRoutes := r.Group("/api")

	apiRoutes.POST("/datasets", s.createDataset)

	apiRoutes.GET("/jobs/:id", func(ctx *gin.Context) {
		job, ok := s.jobs.get(ctx.Param("id"))
		if !ok {
			ctx.Status(http.StatusNotFound)
			return
		}
		ctx.JSON(http.StatusOK, job)
	})

	apiRoutes.GET("/datasets", func(ctx *gin.Context) {
		if !dirExists(s.cfg.Dataset.Root) { //nothing built yet
			ctx.JSON(http.StatusOK, []string{})
			return
		}
		names, err := utils.ListSubDirs(s.cfg.Dataset.Root)
		if err != nil {
			s.logger.Error("api/datasets: could not list datasets", zap.Error(err))
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, names)
	})

	apiRoutes.GET("/datasets/:name/frames", func(ctx *gin.Context) {
		dir, ok := s.datasetDir(ctx.Param("name"))
		if !ok || !dirExists(dir) {
			ctx.Status(http.StatusNotFound)
			return
		}
		frames, err := utils.ListFrames(dir)
		if err != nil {
			s.logger.Error("api/frames: could not list frames", zap.String("dir", dir), zap.Error(err))
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, frames)
	})

	apiRoutes.GET("/datasets/:name/frames/:frame", func(ctx *gin.Context) {
		frame := ctx.Param("frame")
		if _, ok := utils.ParseFrameNumber(frame); !ok {
			ctx.Status(http.StatusNotAcceptable) //not a frame file name
			return
		}
		dir, ok := s.datasetDir(ctx.Param("name"))
		if !ok {
			ctx.Status(http.StatusNotFound)
			return
		}
		framePath := filepath.Join(dir, frame)
		if !utils.FileExists(framePath) {
			ctx.Status(http.StatusNotFound)
			return
		}
		ctx.Header("Content-Type", "image/png")
		http.ServeFile(ctx.Writer, ctx.Request, framePath)
	})

	apiRoutes.GET("/videos", func(ctx *gin.Context) {
		names, err := utils.ListDir(s.cfg.Acquire.DownloadDir)
		if err != nil {
			ctx.JSON(http.StatusOK, []string{})
			return
		}
		videos := make([]string, 0, len(names))
		for _, name := range names {
			if utils.IsMediaFile(name) {
				videos = append(videos, name)
			}
		}
		ctx.JSON(http.StatusOK, videos)
	})

	return r
}

func (s *Server) createDataset(ctx *gin.Context) {
	var body CreateDatasetRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.FPS == 0 {
		body.FPS = s.cfg.Dataset.SampleRate
	}
	if body.FPS < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "fps must be positive"})
		return
	}
	framesDir, ok := s.datasetDir(body.Name)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset name"})
		return
	}

	job, ok := s.jobs.start(body.Name, body.Locator, framesDir)
	if !ok {
		ctx.JSON(http.StatusConflict, gin.H{"error": "a build into this dataset is already running"})
		return
	}

	req := dataset.Request{
		Locator:     body.Locator,
		DownloadDir: s.cfg.Acquire.DownloadDir,
		Filename:    body.Name + "." + s.cfg.Acquire.Container, //one file per dataset, concurrent builds never share a download
		FramesDir:   framesDir,
		SampleRate:  body.FPS,
		Publish:     s.cfg.Dataset.Publish,
	}

	s.logger.Info("api/datasets: starting build", zap.String("job", job.ID), zap.String("name", body.Name), zap.String("locator", body.Locator))
	s.wg.Add(1)
	go s.runBuild(job.ID, req)

	ctx.JSON(http.StatusAccepted, gin.H{"id": job.ID})
}

func (s *Server) runBuild(id string, req dataset.Request) {
	defer s.wg.Done()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	res, err := s.builder.Build(s.buildCtx, req)
	if err != nil {
		s.logger.Error("api/datasets: build failed", zap.String("job", id), zap.Error(err))
	}
	s.jobs.finish(id, res, err)
}

//Wait blocks until every build started by the server has returned
func (s *Server) Wait() {
	s.wg.Wait()
}

//Run serves the API until ctx is canceled, then shuts down gracefully and waits for running builds
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.HTTP.Port,
		Handler:           s.SetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", srv.Addr))
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.Wait()
	return nil
}

//datasetDir maps a dataset name to its frames directory under the dataset root
func (s *Server) datasetDir(name string) (string, bool) {
	if err := config.ValidateFilename(name); err != nil {
		return "", false
	}
	return filepath.Join(s.cfg.Dataset.Root, name), true
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		s.logger.Debug("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
