//go:build integration

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocloud.dev/blob/fileblob"

	"github.com/trawlkit/trawl/internal/testutils"
	"github.com/trawlkit/trawl/pkg/fastlist"
	"github.com/trawlkit/trawl/pkg/fetch"
)

// TestIntegrationListAndDownload exercises the full pipeline against a fake
// GCS server: parallel listing, compose-batched download, and split.
func TestIntegrationListAndDownload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	env := testutils.StartFakeGCSContainer(t, ctx, "e2e-bucket")
	defer env.Close(ctx)

	objects := make(map[string][]byte)
	for i := 0; i < 100; i++ {
		size := int64(512 + i*37)
		objects[fmt.Sprintf("dataset/train/rec-%03d", i)] = testutils.GenerateTestData(t, size)
	}
	// One object over the compose bound, downloaded directly.
	objects["dataset/train/big"] = testutils.GenerateTestData(t, 256*1024)
	env.Seed(t, ctx, objects)

	st, err := env.NewStore(ctx)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	catalog, err := fastlist.List(ctx, st, "dataset/",
		fastlist.WithParallelism(4),
		fastlist.WithPageSize(25),
	)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(catalog) != len(objects) {
		t.Fatalf("listed %d objects, want %d", len(catalog), len(objects))
	}

	destDir := t.TempDir()
	dst, err := fileblob.OpenBucket(destDir, &fileblob.Options{CreateDir: true})
	if err != nil {
		t.Fatalf("open destination: %v", err)
	}
	defer dst.Close()

	report, err := fetch.Download(ctx, st, dst, catalog,
		fetch.WithStrategy(fetch.StrategyThreaded),
		fetch.WithWorkers(4),
		fetch.WithMaxComposeBytes(64*1024),
		fetch.WithTrimPrefix("dataset/"),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v (failed: %v)", err, report.Failed())
	}
	for _, w := range report.Warnings {
		t.Errorf("cleanup warning: %s", w.String())
	}

	for name, want := range objects {
		rel := name[len("dataset/"):]
		got, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: content mismatch (%d vs %d bytes)", rel, len(got), len(want))
		}
	}

	// Composites must not survive the run.
	leftovers, err := fastlist.List(ctx, st, "", fastlist.WithIncludeComposed())
	if err != nil {
		t.Fatalf("List leftovers: %v", err)
	}
	for _, obj := range leftovers {
		if len(obj.Name) >= len("trawl-composed") && obj.Name[:len("trawl-composed")] == "trawl-composed" {
			t.Errorf("leaked composite %s", obj.Name)
		}
	}
}
