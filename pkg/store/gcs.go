package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultPageSize is the maximum page size accepted by the listing API.
const DefaultPageSize = 5000

// GCSOptions configures a GCS store.
type GCSOptions struct {
	// Project is the cloud project billed for requests.
	Project string

	// Endpoint overrides the API endpoint, typically to point at an emulator.
	// When set, authentication is disabled.
	Endpoint string

	// CallTimeout bounds a single store call, including SDK-level retries.
	// Default: 5m.
	CallTimeout time.Duration
}

// GCS is a Store backed by a Google Cloud Storage bucket.
//
// Transient request failures are retried inside the SDK with exponential
// backoff; errors returned from GCS methods are terminal.
type GCS struct {
	client      *storage.Client
	bucket      *storage.BucketHandle
	callTimeout time.Duration
}

// NewGCS opens a GCS store for the given bucket.
func NewGCS(ctx context.Context, bucket string, opts GCSOptions, clientOpts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("store: bucket is required")
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts,
			option.WithEndpoint(opts.Endpoint),
			option.WithoutAuthentication(),
		)
	} else if opts.Project != "" {
		clientOpts = append(clientOpts, option.WithQuotaProject(opts.Project))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("store: create client: %w", err)
	}

	handle := client.Bucket(bucket).Retryer(
		storage.WithBackoff(gax.Backoff{
			Initial:    time.Second,
			Multiplier: 1.2,
			Max:        45 * time.Second,
		}),
		storage.WithPolicy(storage.RetryAlways),
	)

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &GCS{
		client:      client,
		bucket:      handle,
		callTimeout: timeout,
	}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// ListPage implements Store.
func (g *GCS) ListPage(ctx context.Context, q PageQuery) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	query := &storage.Query{
		Prefix:      q.Prefix,
		StartOffset: q.StartOffset,
		EndOffset:   q.EndOffset,
	}
	// Only the fields we consume; trims response payloads on large listings.
	if err := query.SetAttrSelection([]string{"Name", "Size", "StorageClass", "Generation"}); err != nil {
		return Page{}, fmt.Errorf("store: select attrs: %w", err)
	}

	size := q.MaxResults
	if size <= 0 || size > DefaultPageSize {
		size = DefaultPageSize
	}

	var attrs []*storage.ObjectAttrs
	pager := iterator.NewPager(g.bucket.Objects(ctx, query), size, q.PageToken)
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return Page{}, fmt.Errorf("store: list page: %w", err)
	}

	page := Page{
		Objects:       make([]ObjectMetadata, 0, len(attrs)),
		NextPageToken: next,
	}
	for _, a := range attrs {
		page.Objects = append(page.Objects, ObjectMetadata{
			Name:         a.Name,
			Size:         a.Size,
			StorageClass: a.StorageClass,
			Generation:   a.Generation,
		})
	}
	return page, nil
}

// Compose implements Store.
func (g *GCS) Compose(ctx context.Context, dst string, sources []string) (ObjectMetadata, error) {
	if len(sources) == 0 {
		return ObjectMetadata{}, errors.New("store: compose requires at least one source")
	}
	if len(sources) > MaxComposeSources {
		return ObjectMetadata{}, fmt.Errorf("store: compose allows at most %d sources, got %d",
			MaxComposeSources, len(sources))
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	srcs := make([]*storage.ObjectHandle, len(sources))
	for i, name := range sources {
		srcs[i] = g.bucket.Object(name)
	}

	attrs, err := g.bucket.Object(dst).ComposerFrom(srcs...).Run(ctx)
	if err != nil {
		return ObjectMetadata{}, fmt.Errorf("store: compose %s: %w", dst, err)
	}
	return ObjectMetadata{
		Name:         attrs.Name,
		Size:         attrs.Size,
		StorageClass: attrs.StorageClass,
		Generation:   attrs.Generation,
	}, nil
}

// Download implements Store.
func (g *GCS) Download(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	r, err := g.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, wrapGCSError("download", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("store: download %s: %w", name, err)
	}
	return data, nil
}

// Delete implements Store.
func (g *GCS) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if err := g.bucket.Object(name).Delete(ctx); err != nil {
		return wrapGCSError("delete", name, err)
	}
	return nil
}

func wrapGCSError(op, name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("store: %s %s: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("store: %s %s: %w", op, name, err)
}
