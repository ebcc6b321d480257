package fastlist

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trawlkit/trawl/pkg/store"
)

// DefaultAllowedClasses is the storage-class allow-set applied when none is
// configured. Non-standard classes carry retrieval costs that bulk loading
// workloads usually must not trigger.
var DefaultAllowedClasses = []string{store.StorageClassStandard}

// Options configures a listing operation.
type Options struct {
	Parallelism        int
	AllowedClasses     []string
	IncludeComposed    bool
	IncludeDirectories bool
	Sorted             bool
	PageSize           int
	Log                zerolog.Logger
}

// Option is a functional option for List.
type Option func(*Options)

// WithParallelism sets the number of concurrent listing workers.
func WithParallelism(n int) Option {
	return func(o *Options) { o.Parallelism = n }
}

// WithAllowedClasses sets the storage classes retained in the catalog.
func WithAllowedClasses(classes ...string) Option {
	return func(o *Options) { o.AllowedClasses = classes }
}

// WithIncludeComposed includes leftover composite objects in the catalog.
func WithIncludeComposed() Option {
	return func(o *Options) { o.IncludeComposed = true }
}

// WithIncludeDirectories includes directory placeholder objects (names
// ending in "/") in the catalog.
func WithIncludeDirectories() Option {
	return func(o *Options) { o.IncludeDirectories = true }
}

// WithSorted sorts the catalog by object name before returning it.
func WithSorted() Option {
	return func(o *Options) { o.Sorted = true }
}

// WithPageSize overrides the per-request page size. Intended for tests.
func WithPageSize(n int) Option {
	return func(o *Options) { o.PageSize = n }
}

// WithLogger sets the logger used for steal and progress tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) { o.Log = log }
}

func defaultOptions() Options {
	return Options{
		Parallelism:    1,
		AllowedClasses: DefaultAllowedClasses,
		PageSize:       store.DefaultPageSize,
		Log:            zerolog.Nop(),
	}
}

// ListError reports that a listing operation failed before a complete
// catalog could be assembled. A partial catalog is never returned: losing a
// range silently would corrupt every downstream consumer.
type ListError struct {
	Err error
}

func (e *ListError) Error() string {
	return "fastlist: listing failed: " + e.Err.Error()
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// pool is the shared state of one listing operation.
type pool struct {
	store    store.Store
	prefix   string
	pageSize int
	allowed  map[string]bool
	opts     Options
	log      zerolog.Logger

	deques []*deque
	n      int

	mu   sync.Mutex
	idle int
	done bool
}

// keep applies the storage-class and name filters to a listed object.
func (p *pool) keep(obj store.ObjectMetadata) bool {
	if !p.opts.IncludeComposed && strings.HasPrefix(obj.Name, store.ComposedPrefix) {
		return false
	}
	if !p.opts.IncludeDirectories && strings.HasSuffix(obj.Name, "/") {
		return false
	}
	return p.allowed[obj.StorageClass]
}

// anyPendingLocked reports whether any deque still holds work. Called with
// p.mu held as the final consensus re-check before declaring completion.
func (p *pool) anyPendingLocked() bool {
	for _, d := range p.deques {
		d.mu.Lock()
		pending := len(d.items) > 0
		d.mu.Unlock()
		if pending {
			return true
		}
	}
	return false
}

// List enumerates every object under prefix using a pool of workstealing
// workers and returns the deduplicated, filtered catalog. No ordering is
// guaranteed unless WithSorted is set.
//
// Any worker failing terminally fails the whole operation with a ListError.
func List(ctx context.Context, st store.Store, prefix string, options ...Option) ([]store.ObjectMetadata, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Parallelism <= 0 {
		return nil, &ConfigError{Reason: "parallelism must be positive"}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = store.DefaultPageSize
	}
	if len(opts.AllowedClasses) == 0 {
		opts.AllowedClasses = DefaultAllowedClasses
	}

	ranges, err := Partition(prefix, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(opts.AllowedClasses))
	for _, c := range opts.AllowedClasses {
		allowed[c] = true
	}

	p := &pool{
		store:    st,
		prefix:   prefix,
		pageSize: opts.PageSize,
		allowed:  allowed,
		opts:     opts,
		log:      opts.Log,
		n:        opts.Parallelism,
	}
	p.deques = make([]*deque, p.n)
	for i := range p.deques {
		p.deques[i] = &deque{id: i}
	}
	for i, r := range ranges {
		if i >= p.n {
			break
		}
		p.deques[i].items = []*workItem{{lower: r.Lower, upper: r.Upper}}
	}

	workers := make([]*worker, p.n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		splitter, err := NewRangeSplitter(partitionAlphabet + prefix)
		if err != nil {
			return nil, err
		}
		w := &worker{id: i, pool: p, deque: p.deques[i], splitter: splitter}
		workers[i] = w
		g.Go(func() error {
			return w.run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &ListError{Err: err}
	}

	seen := make(map[string]struct{})
	var catalog []store.ObjectMetadata
	apiCalls := 0
	for _, w := range workers {
		apiCalls += w.apiCalls
		for _, obj := range w.results {
			if _, dup := seen[obj.Name]; dup {
				continue
			}
			seen[obj.Name] = struct{}{}
			catalog = append(catalog, obj)
		}
	}
	if opts.Sorted {
		sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })
	}

	p.log.Debug().
		Int("objects", len(catalog)).
		Int("api_calls", apiCalls).
		Int("parallelism", p.n).
		Msg("listing complete")
	return catalog, nil
}
