package storage

import (
	"net/url"
	"path/filepath"
	"strings"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
)

// Resolver turns a textual reference into an ObjectReader. URIs with a
// scheme go to the fetcher registered for it; anything else is a local path.
type Resolver struct {
	fetchers map[string]ObjectFetcher
	root     string
}

type ResolverOption func(*Resolver)

// WithLocalRoot confines local paths to dir. Relative paths are taken from
// dir and anything resolving outside it, symlinks included, is refused.
func WithLocalRoot(dir string) ResolverOption {
	return func(r *Resolver) {
		if dir == "" {
			return
		}
		root, err := filepath.Abs(dir)
		if err != nil {
			root = filepath.Clean(dir)
		}
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		r.root = root
	}
}

// WithFetcher registers a fetcher for a URI scheme such as "gs".
func WithFetcher(scheme string, f ObjectFetcher) ResolverOption {
	return func(r *Resolver) {
		if f != nil {
			r.fetchers[strings.ToLower(scheme)] = f
		}
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{fetchers: map[string]ObjectFetcher{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ref string) (ObjectReader, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errx.InvalidReference("empty reference")
	}
	if !strings.Contains(ref, "://") {
		return r.local(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, errx.InvalidReference("malformed uri %q: %v", ref, err)
	}
	scheme := strings.ToLower(u.Scheme)
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errx.InvalidReference("uri %q needs both bucket and key", ref)
	}

	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, errx.InvalidReference("unsupported scheme %q in %q", scheme, ref)
	}
	return &BucketReader{scheme: scheme, bucket: bucket, key: key, fetcher: f}, nil
}

// ResolveBucket builds a GCS reference from the bucket/key pair the HTTP
// API receives.
func (r *Resolver) ResolveBucket(bucket, key string) (ObjectReader, error) {
	if bucket == "" || key == "" {
		return nil, errx.InvalidReference("bucket and key are required")
	}
	return r.Resolve("gs://" + bucket + "/" + strings.TrimPrefix(key, "/"))
}

func (r *Resolver) local(ref string) (ObjectReader, error) {
	if r.root == "" {
		return NewFileReader(ref), nil
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errx.InvalidReference("path %q is outside the bundle root", ref)
	}
	return NewFileReader(path), nil
}
