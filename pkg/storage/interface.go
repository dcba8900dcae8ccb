package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// BlobReader fetches a single object by key.
type BlobReader interface {
	Download(ctx context.Context, key string) (*DownloadResponse, error)
	Close() error
}

type DownloadResponse struct {
	Reader       io.ReadCloser     `json:"-"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
}

// Options carries provider credentials for Open.
type Options struct {
	AWSRegion          string
	GCPCredentialsFile string
}

// Location is a parsed blob address.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseLocation splits s3://bucket/key and gs://bucket/key URIs. Anything
// else is treated as a local file path.
func ParseLocation(uri string) (Location, error) {
	for _, scheme := range []string{"s3", "gs"} {
		prefix := scheme + "://"
		if !strings.HasPrefix(uri, prefix) {
			continue
		}
		rest := strings.TrimPrefix(uri, prefix)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid %s location %q: expected %sbucket/key", scheme, uri, prefix)
		}
		return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
	}

	if uri == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	return Location{Scheme: "file", Bucket: filepath.Dir(uri), Key: filepath.Base(uri)}, nil
}

// Open returns a reader for the location's backend.
func Open(ctx context.Context, location Location, opts Options) (BlobReader, error) {
	switch location.Scheme {
	case "s3":
		return NewAWSS3Storage(ctx, opts.AWSRegion, location.Bucket)
	case "gs":
		return NewGCPStorage(ctx, location.Bucket, opts.GCPCredentialsFile)
	case "file":
		return NewLocalStorage(location.Bucket), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", location.Scheme)
	}
}
