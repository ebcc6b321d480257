// Package progress provides progress reporting for downloads.
//
// This package outputs human-readable progress information to stdout,
// including completion percentage, transfer speed, and ETA.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalObjects: len(catalog),
//	    TotalBytes:   totalBytes,
//	    Workers:      16,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as objects complete
//	reporter.ObjectCompleted(size)
//
// # Output Format
//
//	[trawl] Downloading from bucket: training-data
//	[trawl] Objects: 1048576 | Total size: 2.5 TB | Workers: 16
//	[trawl] Progress: 45.2% | 1.13 TB / 2.5 TB | Speed: 1.2 GB/s | ETA: 18m 32s
//	[trawl] Objects: 473522 / 1048576 | 0 failed
package progress
