package bucketstore

import (
	"context"
	"fmt"
	kitlog "github.com/go-kit/log"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/s3"
	"io"
	"net/http"
	"os"
)

type BucketStore struct {
	Bucket objstore.Bucket
}

func New(cfg s3.Config) (*BucketStore, error) {
	wrt := func(rt http.RoundTripper) http.RoundTripper {
		return rt
	}

	kitlogger := kitlog.NewJSONLogger(kitlog.NewSyncWriter(os.Stdout))
	client, err := s3.NewBucketWithConfig(kitlogger, cfg, "weather-archive", wrt)
	if err != nil {
		return nil, fmt.Errorf("cannot configure bucket store: %w", err)
	}

	return &BucketStore{Bucket: client}, nil
}

// NewFilesystem stores objects as files below dir, for single-host installs
// without S3.
func NewFilesystem(dir string) (*BucketStore, error) {
	b, err := filesystem.NewBucket(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot configure filesystem bucket store: %w", err)
	}
	return &BucketStore{Bucket: b}, nil
}

func (b *BucketStore) Close() error {
	return b.Bucket.Close()
}

func (b *BucketStore) Ping(ctx context.Context) error {
	_, err := b.Bucket.Exists(ctx, "ping")
	return err
}

func (b *BucketStore) Upload(ctx context.Context, name string, r io.Reader) error {
	return b.Bucket.Upload(ctx, name, r)
}
