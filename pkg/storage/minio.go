// Package storage publishes extracted frames to an S3 compatible object store
// so labeling tools can read a dataset without access to the local disk.
package storage

import (
	"context"
	"path"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/agrisentry/pkg/config"
	"github.com/chenBenjamin97/agrisentry/pkg/utils"
)

type Storage struct {
	client *miniogo.Client
	bucket string
	prefix string
	logger *zap.Logger
}

func NewStorage(cfg config.StorageConfig, logger *zap.Logger) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", s.bucket)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return errors.Wrapf(err, "create bucket %s", s.bucket)
		}
	}
	return nil
}

// PublishFrames uploads every frame in framesDir under <prefix>/<dataset>/ and
// returns how many were uploaded. It stops at the first failed upload.
func (s *Storage) PublishFrames(ctx context.Context, dataset, framesDir string) (int, error) {
	frames, err := utils.ListFrames(framesDir)
	if err != nil {
		return 0, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return 0, err
	}

	for i, name := range frames {
		key := ObjectKey(s.prefix, dataset, name)
		_, err := s.client.FPutObject(ctx, s.bucket, key, filepath.Join(framesDir, name), miniogo.PutObjectOptions{
			ContentType: "image/png",
		})
		if err != nil {
			return i, errors.Wrapf(err, "upload %s", key)
		}
	}

	s.logger.Info("frames published", zap.String("bucket", s.bucket), zap.String("dataset", dataset), zap.Int("count", len(frames)))
	return len(frames), nil
}

// ObjectKey returns the object name of a frame.
func ObjectKey(prefix, dataset, frame string) string {
	return path.Join(prefix, dataset, frame)
}
