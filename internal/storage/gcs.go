package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ObjectFetcher opens a remote object by bucket and key.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// GCSFetcher adapts a storage.Client to ObjectFetcher.
type GCSFetcher struct {
	client *storage.Client
}

func NewGCSFetcher(client *storage.Client) *GCSFetcher {
	return &GCSFetcher{client: client}
}

func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return f.client.Bucket(bucket).Object(key).NewReader(ctx)
}

// BucketReader reads a whole remote object into memory before handing it
// out, so the stream it returns never touches the network.
type BucketReader struct {
	scheme  string
	bucket  string
	key     string
	fetcher ObjectFetcher
}

func NewGCSReader(fetcher ObjectFetcher, bucket, key string) *BucketReader {
	return &BucketReader{scheme: "gs", bucket: bucket, key: key, fetcher: fetcher}
}

func (r *BucketReader) Read(ctx context.Context) (io.ReadCloser, error) {
	body, err := r.fetcher.Fetch(ctx, r.bucket, r.key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r, err)
	}
	defer body.Close()

	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r, err)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (r *BucketReader) String() string {
	return fmt.Sprintf("%s://%s/%s", r.scheme, r.bucket, r.key)
}

var (
	_ ObjectReader  = (*BucketReader)(nil)
	_ ObjectFetcher = (*GCSFetcher)(nil)
)
