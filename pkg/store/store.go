package store

import (
	"context"
	"errors"
)

// MaxComposeSources is the maximum number of source objects accepted by a
// single compose call. This is a hard limit of the storage service.
const MaxComposeSources = 32

// StorageClassStandard is the default storage class for newly written objects.
const StorageClassStandard = "STANDARD"

// ComposedPrefix is the key prefix under which transient composite objects
// are created. Listings skip it by default so leaked composites from an
// interrupted run never leak into a catalog.
const ComposedPrefix = "trawl-composed-objects/"

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("store: object not found")

// ObjectMetadata describes a single object as returned by a list call.
// Immutable once produced.
type ObjectMetadata struct {
	Name         string
	Size         int64
	StorageClass string
	Generation   int64
}

// PageQuery describes a single bounded listing request.
//
// StartOffset and EndOffset are absolute object names (prefix included)
// forming the half-open interval [StartOffset, EndOffset). An empty EndOffset
// means unbounded.
type PageQuery struct {
	Prefix      string
	StartOffset string
	EndOffset   string
	PageToken   string
	MaxResults  int
}

// Page is the result of a single listing request. A non-empty NextPageToken
// indicates the queried range holds more objects past the returned page.
type Page struct {
	Objects       []ObjectMetadata
	NextPageToken string
}

// Store is the object-storage surface the listing and download pipelines
// consume. Implementations own per-call retry and backoff; callers treat any
// returned error as terminal for the affected range or group.
type Store interface {
	// ListPage returns at most one page of objects in the queried range,
	// ordered by name.
	ListPage(ctx context.Context, q PageQuery) (Page, error)

	// Compose concatenates the source objects, in order, into a new object
	// named dst without moving bytes through the client.
	Compose(ctx context.Context, dst string, sources []string) (ObjectMetadata, error)

	// Download returns the full contents of the named object.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes the named object.
	Delete(ctx context.Context, name string) error
}
