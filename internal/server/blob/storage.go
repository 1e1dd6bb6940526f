// Package blob stores receipt files, either in an S3-compatible bucket or on
// the local filesystem.
package blob

import (
	"context"
	"time"
)

// PresignExpiry bounds the lifetime of every presigned URL.
const PresignExpiry = 5 * time.Minute

// Storage is a keyed blob store.
type Storage interface {
	// Mode is "s3" or "local".
	Mode() string
	// Put stores data under key and returns the key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PresignPut returns a URL a client may PUT the object to.
	// Local storage reports common.ErrorUnsupported.
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	// PresignGet returns a URL the object can be fetched from.
	PresignGet(ctx context.Context, key string) (string, error)
}
