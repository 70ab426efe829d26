// Package storage abstracts object stores behind one interface with S3, GCS,
// and MinIO backends selected by config.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrMissingSigner is returned by PresignGet when the backend lacks the
// credentials needed to sign URLs.
var ErrMissingSigner = errors.New("storage: signed url signer not configured")

// Storage is the object-store surface the service uses: upload, inspect,
// remove, and mint signed download links.
type Storage interface {
	io.Closer

	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// PutOptions carries upload hints. Size may be -1 when the length is unknown
// and the backend supports streaming uploads.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is the backend-neutral view of stored object metadata.
type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string
	UpdatedAt   time.Time
}
