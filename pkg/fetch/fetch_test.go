package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/trawlkit/trawl/pkg/store"
)

func testData(name string, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i + len(name)) % 256)
	}
	return data
}

// seedObjects loads deterministic payloads and returns the catalog in name
// order, the shape the lister produces.
func seedObjects(st *store.Memory, sizes map[string]int) []store.ObjectMetadata {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	// Sorted for a stable plan.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	catalog := make([]store.ObjectMetadata, 0, len(names))
	for _, name := range names {
		st.Put(name, testData(name, sizes[name]))
		catalog = append(catalog, store.ObjectMetadata{Name: name, Size: int64(sizes[name])})
	}
	return catalog
}

func openMemBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func verifyRoundTrip(t *testing.T, ctx context.Context, dst *blob.Bucket, catalog []store.ObjectMetadata, trim string) {
	t.Helper()
	for _, obj := range catalog {
		key := strings.TrimPrefix(obj.Name, trim)
		got, err := dst.ReadAll(ctx, key)
		if err != nil {
			t.Fatalf("read %s: %v", key, err)
		}
		want := testData(obj.Name, int(obj.Size))
		if !bytes.Equal(got, want) {
			t.Fatalf("%s: content mismatch (%d vs %d bytes)", key, len(got), len(want))
		}
	}
}

func assertNoComposites(t *testing.T, st *store.Memory) {
	t.Helper()
	page, err := st.ListPage(context.Background(), store.PageQuery{Prefix: store.ComposedPrefix})
	if err != nil {
		t.Fatalf("list composites: %v", err)
	}
	for _, obj := range page.Objects {
		t.Errorf("leaked composite %s", obj.Name)
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	sizes := map[string]int{
		"data/a": 1000,
		"data/b": 2000,
		"data/c": 500,
		"data/d": 9000, // over the bound, downloads directly
		"data/e": 1,
		"data/f": 2500,
	}

	for _, strategy := range []Strategy{StrategyParallel, StrategyThreaded, StrategySequential} {
		t.Run(string(strategy), func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemory()
			catalog := seedObjects(st, sizes)
			dst := openMemBucket(t)

			report, err := Download(ctx, st, dst, catalog,
				WithStrategy(strategy),
				WithWorkers(3),
				WithMaxComposeBytes(3000),
			)
			if err != nil {
				t.Fatalf("Download: %v", err)
			}
			if err := report.Err(); err != nil {
				t.Fatalf("report: %v (failed: %v)", err, report.Failed())
			}
			if len(report.Results) != len(catalog) {
				t.Fatalf("got %d results, want %d", len(report.Results), len(catalog))
			}
			verifyRoundTrip(t, ctx, dst, catalog, "")
			assertNoComposites(t, st)
		})
	}
}

func TestDownloadResultsInCatalogOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{
		"a": 10, "b": 20, "c": 30, "d": 40, "e": 50,
	})
	dst := openMemBucket(t)

	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategyParallel),
		WithWorkers(4),
		WithMaxComposeBytes(45),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i, res := range report.Results {
		if res.Name != catalog[i].Name {
			t.Fatalf("result %d is %s, want %s", i, res.Name, catalog[i].Name)
		}
	}
}

func TestDownloadTrimPrefix(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{
		"exports/2026/a.csv": 800,
		"exports/2026/b.csv": 600,
	})
	dst := openMemBucket(t)

	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategySequential),
		WithTrimPrefix("exports/2026/"),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v", err)
	}
	verifyRoundTrip(t, ctx, dst, catalog, "exports/2026/")
}

func TestDownloadCleanupWarning(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{"a": 100, "b": 100})
	st.DeleteHook = func(name string) error {
		return fmt.Errorf("precondition failed")
	}
	dst := openMemBucket(t)

	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategySequential),
		WithMaxComposeBytes(1000),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	// Cleanup failure must not fail the objects themselves.
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(report.Warnings))
	}
	w := report.Warnings[0]
	if !strings.HasPrefix(w.Composite, store.ComposedPrefix) {
		t.Errorf("warning names composite %q", w.Composite)
	}
	verifyRoundTrip(t, ctx, dst, catalog, "")
}

func TestDownloadSplitMismatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{"a": 100, "b": 100, "z": 5000})
	st.DownloadTransform = func(name string, data []byte) []byte {
		if strings.HasPrefix(name, store.ComposedPrefix) {
			return data[:len(data)-1]
		}
		return data
	}
	dst := openMemBucket(t)

	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategySequential),
		WithMaxComposeBytes(1000),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("got %d failures, want the 2 composed objects: %v", len(failed), failed)
	}
	for _, res := range failed {
		var splitErr *SplitError
		if !errors.As(res.Err, &splitErr) {
			t.Errorf("%s failed with %v, want SplitError", res.Name, res.Err)
		}
	}
	// The oversize object bypasses composition and still lands.
	got, err := dst.ReadAll(ctx, "z")
	if err != nil {
		t.Fatalf("read z: %v", err)
	}
	if len(got) != 5000 {
		t.Fatalf("z is %d bytes, want 5000", len(got))
	}
	assertNoComposites(t, st)
}

func TestDownloadComposeFailureIsolation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{
		"g1/a": 100, "g1/b": 100,
		"g2/a": 100, "g2/b": 100,
	})
	st.ComposeHook = func(dst string, sources []string) error {
		for _, src := range sources {
			if strings.HasPrefix(src, "g1/") {
				return fmt.Errorf("quota exceeded")
			}
		}
		return nil
	}
	dst := openMemBucket(t)

	// Max of 200 bytes packs each directory's pair into its own group.
	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategySequential),
		WithMaxComposeBytes(200),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("got %d failures, want 2: %v", len(failed), failed)
	}
	for _, res := range failed {
		var composeErr *ComposeError
		if !errors.As(res.Err, &composeErr) {
			t.Errorf("%s failed with %v, want ComposeError", res.Name, res.Err)
		}
		if !strings.HasPrefix(res.Name, "g1/") {
			t.Errorf("unexpected failure for %s", res.Name)
		}
	}
	for _, name := range []string{"g2/a", "g2/b"} {
		if _, err := dst.ReadAll(ctx, name); err != nil {
			t.Errorf("sibling group object %s missing: %v", name, err)
		}
	}
}

func TestDownloadOnResult(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	catalog := seedObjects(st, map[string]int{
		"a": 10, "b": 20, "c": 30, "d": 40,
	})
	dst := openMemBucket(t)

	var (
		mu   sync.Mutex
		seen int
	)
	report, err := Download(ctx, st, dst, catalog,
		WithStrategy(StrategyParallel),
		WithWorkers(2),
		WithMaxComposeBytes(50),
		WithOnResult(func(res ObjectResult) {
			mu.Lock()
			seen++
			mu.Unlock()
			if res.Err != nil {
				t.Errorf("unexpected failure for %s: %v", res.Name, res.Err)
			}
		}),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if seen != len(report.Results) {
		t.Fatalf("callback saw %d results, report has %d", seen, len(report.Results))
	}
}

func TestDownloadInvalidWorkers(t *testing.T) {
	st := store.NewMemory()
	dst := openMemBucket(t)
	_, err := Download(context.Background(), st, dst, nil, WithWorkers(0))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError", err)
	}

	_, err = Download(context.Background(), st, dst, nil, WithStrategy("forked"))
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError for unknown strategy", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{"parallel", "threaded", "sequential"} {
		s, err := ParseStrategy(valid)
		if err != nil {
			t.Errorf("ParseStrategy(%q): %v", valid, err)
		}
		if string(s) != valid {
			t.Errorf("ParseStrategy(%q) = %q", valid, s)
		}
	}
	if _, err := ParseStrategy("multiprocess"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestReportErr(t *testing.T) {
	ok := &Report{Results: []ObjectResult{{Name: "a"}, {Name: "b"}}}
	if err := ok.Err(); err != nil {
		t.Fatalf("clean report: %v", err)
	}
	bad := &Report{Results: []ObjectResult{
		{Name: "a"},
		{Name: "b", Err: errors.New("boom")},
	}}
	if err := bad.Err(); err == nil {
		t.Fatal("expected error for a report with failures")
	}
	if got := bad.Failed(); len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("Failed() = %v", got)
	}
}
