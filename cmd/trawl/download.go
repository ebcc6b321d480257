package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/trawlkit/trawl/internal/config"
	"github.com/trawlkit/trawl/internal/progress"
	"github.com/trawlkit/trawl/pkg/fastlist"
	"github.com/trawlkit/trawl/pkg/fetch"
	"github.com/trawlkit/trawl/pkg/store"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	project := fs.String("project", "", "Cloud project billed for requests")
	bucket := fs.String("bucket", "", "Bucket to download from (required)")
	prefix := fs.String("prefix", "", "Only download objects under this prefix")
	dest := fs.String("dest", "", "Destination directory or bucket URL (required)")
	strategy := fs.String("strategy", "", "Download strategy (parallel, threaded, sequential)")
	workers := fs.Int("workers", 0, "Number of download workers")
	maxCompose := fs.String("max-compose-bytes", "", "Maximum composed group size (e.g. 100MB, 0 disables composing)")
	parallelism := fs.Int("parallelism", 0, "Number of parallel listing workers")
	classes := fs.String("classes", "", "Comma-separated storage classes to retain (default STANDARD)")
	showProgress := fs.Bool("progress", false, "Print periodic progress to stderr")
	logLevel := fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: trawl download [options]

List every object under a bucket prefix, then download them. Small objects
are batched into server-side composites so each worker fetches one large
object instead of many small ones, then split back apart locally.

The destination can be a local directory or a bucket URL such as
file:///data, gs://bucket/prefix, or s3://bucket/prefix.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	override := config.Config{
		Project:     *project,
		Bucket:      *bucket,
		Prefix:      *prefix,
		Dest:        *dest,
		Parallelism: *parallelism,
		Workers:     *workers,
		Strategy:    *strategy,
		LogLevel:    *logLevel,
		Progress:    *showProgress,
	}
	if *maxCompose != "" {
		n, err := progress.ParseBytes(*maxCompose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -max-compose-bytes: %v\n", err)
			return ExitInvalidArgs
		}
		override.MaxComposeBytes = n
	}

	cfg, code := loadConfig(*configPath, override, *classes)
	if code != ExitSuccess {
		return code
	}
	if cfg.Dest == "" {
		fmt.Fprintln(os.Stderr, "Error: destination is required (use -dest)")
		return ExitInvalidArgs
	}

	// Signal handling lives inside fetch.Download so that dispatched
	// groups drain before exit. The listing phase runs on the plain
	// background context and is fast enough to finish regardless.
	ctx := context.Background()

	log := newLogger(cfg.LogLevel)

	st, err := store.NewGCS(ctx, cfg.Bucket, store.GCSOptions{Project: cfg.Project})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer st.Close()

	dst, err := openDest(ctx, cfg.Dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer dst.Close()

	catalog, err := fastlist.List(ctx, st, cfg.Prefix,
		fastlist.WithParallelism(cfg.Parallelism),
		fastlist.WithAllowedClasses(cfg.Classes...),
		fastlist.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitListingError
	}
	if len(catalog) == 0 {
		fmt.Fprintln(os.Stderr, "No objects matched.")
		return ExitSuccess
	}

	var totalBytes int64
	for _, obj := range catalog {
		totalBytes += obj.Size
	}
	log.Info().
		Int("objects", len(catalog)).
		Str("total_size", progress.FormatBytes(totalBytes)).
		Msg("listing complete")

	opts := []fetch.Option{
		fetch.WithStrategy(fetch.Strategy(cfg.Strategy)),
		fetch.WithWorkers(cfg.Workers),
		fetch.WithMaxComposeBytes(cfg.MaxComposeBytes),
		fetch.WithTrimPrefix(cfg.Prefix),
		fetch.WithLogger(log),
	}

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalObjects: len(catalog),
			TotalBytes:   totalBytes,
			Workers:      cfg.Workers,
			Bucket:       cfg.Bucket,
		})
		reporter.Start()
		opts = append(opts, fetch.WithOnResult(func(res fetch.ObjectResult) {
			if res.Err != nil {
				reporter.ObjectFailed()
				return
			}
			reporter.ObjectCompleted(res.Size)
		}))
	}

	report, err := fetch.Download(ctx, st, dst, catalog, opts...)
	if reporter != nil {
		reporter.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitDownloadError
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w.String())
	}
	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d objects failed:\n", len(failed), len(catalog))
		for _, res := range failed {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", res.Name, res.Err)
		}
		return ExitDownloadError
	}
	return ExitSuccess
}

// openDest opens the download destination. A plain path becomes a local
// directory (created if missing); anything with a scheme goes through the
// registered blob drivers.
func openDest(ctx context.Context, dest string) (*blob.Bucket, error) {
	if strings.Contains(dest, "://") {
		b, err := blob.OpenBucket(ctx, dest)
		if err != nil {
			return nil, fmt.Errorf("open destination %q: %w", dest, err)
		}
		return b, nil
	}
	b, err := fileblob.OpenBucket(dest, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open destination directory %q: %w", dest, err)
	}
	return b, nil
}
