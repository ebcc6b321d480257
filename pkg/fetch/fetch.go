package fetch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gocloud.dev/blob"

	"github.com/trawlkit/trawl/pkg/store"
)

// DefaultMaxComposeBytes caps composite size when no bound is configured.
const DefaultMaxComposeBytes = 100 * 1024 * 1024

// Strategy selects the execution substrate for the download loop. The
// per-group logic is identical across strategies; only scheduling and
// cancellation discipline differ.
type Strategy string

const (
	// StrategyParallel runs groups on a pool of workers and translates
	// SIGINT/SIGTERM into a graceful drain: dispatched groups finish their
	// compose, download, split, and cleanup before the pool exits, while
	// undispatched groups are reported as canceled.
	StrategyParallel Strategy = "parallel"

	// StrategyThreaded runs the same worker pool but registers no signal
	// handling, for callers embedded in a host application that owns
	// process signals. Cancellation is cooperative only: the caller's
	// context is checked between groups, never mid-flight.
	StrategyThreaded Strategy = "threaded"

	// StrategySequential processes groups one at a time on the calling
	// goroutine. Baseline for correctness testing and small catalogs.
	StrategySequential Strategy = "sequential"
)

// ParseStrategy converts a user-supplied strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyParallel, StrategyThreaded, StrategySequential:
		return Strategy(s), nil
	}
	return "", &ConfigError{Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// ObjectResult records the outcome for a single object.
type ObjectResult struct {
	Name string
	Size int64
	Err  error
}

// Report is the per-object outcome of a download operation, in catalog
// order, plus any non-fatal cleanup warnings.
type Report struct {
	Results  []ObjectResult
	Warnings []CleanupWarning
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []ObjectResult {
	var failed []ObjectResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err summarizes the report: nil when every object downloaded successfully.
func (r *Report) Err() error {
	failed := len(r.Failed())
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("fetch: %d of %d objects failed", failed, len(r.Results))
}

// Options configures a download operation.
type Options struct {
	Strategy        Strategy
	Workers         int
	MaxComposeBytes int64
	TrimPrefix      string
	Log             zerolog.Logger
	OnResult        func(ObjectResult)
}

// Option is a functional option for Download.
type Option func(*Options)

// WithStrategy selects the concurrency strategy.
func WithStrategy(s Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}

// WithWorkers sets the worker count for the parallel strategies.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithMaxComposeBytes bounds composite object size. Zero disables
// composition entirely; every object downloads individually.
func WithMaxComposeBytes(n int64) Option {
	return func(o *Options) { o.MaxComposeBytes = n }
}

// WithTrimPrefix strips a leading prefix from object names when deriving
// destination keys, so a listed subtree lands relative to the destination
// root.
func WithTrimPrefix(prefix string) Option {
	return func(o *Options) { o.TrimPrefix = prefix }
}

// WithLogger sets the logger used for group lifecycle tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) { o.Log = log }
}

// WithOnResult registers a callback invoked once per finished object.
// Callbacks are serialized; they need not be safe for concurrent use.
func WithOnResult(fn func(ObjectResult)) Option {
	return func(o *Options) { o.OnResult = fn }
}

func defaultOptions() Options {
	return Options{
		Strategy:        StrategyParallel,
		Workers:         16,
		MaxComposeBytes: DefaultMaxComposeBytes,
		Log:             zerolog.Nop(),
	}
}

// Download fetches every object in the catalog into dst, composing runs of
// small objects server-side so that many objects cost one download. The
// returned report carries a per-object outcome in catalog order; one group's
// failure never aborts sibling groups.
//
// Dispatched groups always run to completion, cleanup included, even when
// ctx is canceled mid-group; cancellation takes effect between groups. The
// parallel and sequential strategies additionally convert SIGINT and SIGTERM
// into that same graceful cancellation.
func Download(ctx context.Context, st store.Store, dst *blob.Bucket, objects []store.ObjectMetadata, options ...Option) (*Report, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Workers <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("workers must be positive, got %d", opts.Workers)}
	}
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}

	groups, err := Plan(objects, opts.MaxComposeBytes)
	if err != nil {
		return nil, err
	}

	if opts.Strategy != StrategyThreaded {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	d := &downloader{
		store: st,
		dest:  dst,
		opts:  opts,
		log:   opts.Log,
	}

	perGroup := make([][]ObjectResult, len(groups))
	var (
		warnMu   sync.Mutex
		warnings []CleanupWarning
	)
	run := func(ctx context.Context, i int, g Group) {
		results, warn := d.processGroup(ctx, g)
		perGroup[i] = results
		warnMu.Lock()
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		if opts.OnResult != nil {
			for _, r := range results {
				opts.OnResult(r)
			}
		}
		warnMu.Unlock()
	}

	var exec executor
	switch opts.Strategy {
	case StrategySequential:
		exec = runSequential
	default:
		exec = poolExecutor(opts.Workers)
	}
	exec(ctx, groups, run)

	report := &Report{Warnings: warnings}
	for i, rs := range perGroup {
		if rs == nil {
			// Never dispatched: canceled before its turn.
			rs = failGroup(groups[i], fmt.Errorf("group canceled: %w", ctx.Err()))
		}
		report.Results = append(report.Results, rs...)
	}
	for _, w := range warnings {
		d.log.Warn().Str("composite", w.Composite).Err(w.Err).Msg("composite cleanup failed")
	}
	return report, nil
}

// executor schedules per-group work. All strategies share the same group
// logic; an executor only decides where and when it runs.
type executor func(ctx context.Context, groups []Group, run func(context.Context, int, Group))

// runSequential processes groups in order on the calling goroutine,
// checking for cancellation between groups.
func runSequential(ctx context.Context, groups []Group, run func(context.Context, int, Group)) {
	for i, g := range groups {
		if ctx.Err() != nil {
			return
		}
		run(ctx, i, g)
	}
}

// poolExecutor feeds groups to a fixed pool of workers. On cancellation the
// feeder stops dispatching and the workers drain what was already queued.
func poolExecutor(workers int) executor {
	return func(ctx context.Context, groups []Group, run func(context.Context, int, Group)) {
		type job struct {
			index int
			group Group
		}
		jobs := make(chan job)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobs {
					run(ctx, j.index, j.group)
				}
			}()
		}
		for i, g := range groups {
			select {
			case jobs <- job{index: i, group: g}:
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return
			}
		}
		close(jobs)
		wg.Wait()
	}
}

// downloader holds the collaborators shared by every group.
type downloader struct {
	store store.Store
	dest  *blob.Bucket
	opts  Options
	log   zerolog.Logger
}

// processGroup realizes one group: compose, download, split, write, delete
// for multi-member groups; a plain download and write for singletons. The
// group runs on a detached context so that, once dispatched, it always
// completes its cleanup.
func (d *downloader) processGroup(ctx context.Context, g Group) (results []ObjectResult, warn *CleanupWarning) {
	ctx = context.WithoutCancel(ctx)

	if len(g.Objects) == 1 {
		obj := g.Objects[0]
		data, err := d.store.Download(ctx, obj.Name)
		if err != nil {
			return failGroup(g, &DownloadError{Object: obj.Name, Err: err}), nil
		}
		return []ObjectResult{d.write(ctx, obj, data)}, nil
	}

	composite := store.ComposedPrefix + uuid.NewString()
	if _, err := d.store.Compose(ctx, composite, g.Names()); err != nil {
		return failGroup(g, &ComposeError{Objects: g.Names(), Err: err}), nil
	}

	defer func() {
		if err := d.store.Delete(ctx, composite); err != nil {
			warn = &CleanupWarning{Composite: composite, Err: err}
		}
	}()

	data, err := d.store.Download(ctx, composite)
	if err != nil {
		return failGroup(g, &DownloadError{Object: composite, Err: err}), nil
	}
	if int64(len(data)) != g.TotalSize {
		return failGroup(g, &SplitError{
			Composite: composite,
			Objects:   g.Names(),
			Want:      g.TotalSize,
			Got:       int64(len(data)),
		}), nil
	}

	results = make([]ObjectResult, 0, len(g.Objects))
	for i, obj := range g.Objects {
		slice := data[g.Offsets[i] : g.Offsets[i]+obj.Size]
		results = append(results, d.write(ctx, obj, slice))
	}
	d.log.Debug().
		Int("objects", len(g.Objects)).
		Int64("bytes", g.TotalSize).
		Str("composite", composite).
		Msg("group downloaded")
	return results, nil
}

// write places one reconstructed object into the destination bucket.
func (d *downloader) write(ctx context.Context, obj store.ObjectMetadata, data []byte) ObjectResult {
	key := obj.Name
	if d.opts.TrimPrefix != "" {
		key = trimPrefix(key, d.opts.TrimPrefix)
	}
	if err := d.dest.WriteAll(ctx, key, data, nil); err != nil {
		return ObjectResult{Name: obj.Name, Size: obj.Size, Err: fmt.Errorf("write %s: %w", key, err)}
	}
	return ObjectResult{Name: obj.Name, Size: obj.Size}
}

func failGroup(g Group, err error) []ObjectResult {
	results := make([]ObjectResult, len(g.Objects))
	for i, obj := range g.Objects {
		results[i] = ObjectResult{Name: obj.Name, Size: obj.Size, Err: err}
	}
	return results
}

func trimPrefix(name, prefix string) string {
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}
