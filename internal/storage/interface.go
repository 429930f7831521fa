package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when an object key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// DurableStore is the durable object store that rehosted assets land in.
// Transfers into it are performed out of process; this service only checks
// results and derives public URLs.
type DurableStore interface {
	// Stat returns object metadata, or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// PublicURL returns the stable public URL for a key.
	PublicURL(key string) string

	// Host returns the host that PublicURL serves from.
	Host() string

	// ObjectKey derives the key a record's asset is stored under.
	ObjectKey(recordID, sourceURL string) string
}
