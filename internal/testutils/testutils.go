//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/api/option"

	pkgstore "github.com/trawlkit/trawl/pkg/store"
)

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// GCSEnv contains connection information for a fake GCS test environment.
type GCSEnv struct {
	Container testcontainers.Container
	Endpoint  string
	Bucket    string
	Project   string
}

// Close terminates the container.
func (e *GCSEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// NewStore opens a GCS store pointed at the emulator.
func (e *GCSEnv) NewStore(ctx context.Context) (*pkgstore.GCS, error) {
	return pkgstore.NewGCS(ctx, e.Bucket, pkgstore.GCSOptions{Endpoint: e.Endpoint})
}

// NewRawClient opens a storage client pointed at the emulator, for seeding
// and inspecting objects outside the surface under test.
func (e *GCSEnv) NewRawClient(ctx context.Context) (*storage.Client, error) {
	return storage.NewClient(ctx,
		option.WithEndpoint(e.Endpoint),
		option.WithoutAuthentication(),
	)
}

// Seed uploads the given objects into the test bucket.
func (e *GCSEnv) Seed(t *testing.T, ctx context.Context, objects map[string][]byte) {
	t.Helper()

	client, err := e.NewRawClient(ctx)
	if err != nil {
		t.Fatalf("open seed client: %v", err)
	}
	defer client.Close()

	bucket := client.Bucket(e.Bucket)
	for name, data := range objects {
		w := bucket.Object(name).NewWriter(ctx)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

// StartFakeGCSContainer starts a fake-gcs-server container with a
// pre-created bucket. Returns a GCSEnv with connection information.
func StartFakeGCSContainer(t *testing.T, ctx context.Context, bucketName string) *GCSEnv {
	t.Helper()

	const project = "test-project"

	req := testcontainers.ContainerRequest{
		Image:        "fsouza/fake-gcs-server:latest",
		ExposedPorts: []string{"4443/tcp"},
		Cmd:          []string{"-scheme", "http", "-port", "4443"},
		WaitingFor:   wait.ForListeningPort("4443/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start fake-gcs container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4443")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	base := fmt.Sprintf("http://%s:%s", host, port.Port())

	// Downloads follow the server's advertised external URL, which must
	// match the mapped port.
	configBody := fmt.Sprintf(`{"externalUrl": %q}`, base)
	configReq, err := http.NewRequestWithContext(ctx, http.MethodPut,
		base+"/_internal/config", strings.NewReader(configBody))
	if err != nil {
		t.Fatalf("build config request: %v", err)
	}
	configReq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(configReq)
	if err != nil {
		t.Fatalf("set external url: %v", err)
	}
	resp.Body.Close()

	env := &GCSEnv{
		Container: container,
		Endpoint:  base + "/storage/v1/",
		Bucket:    bucketName,
		Project:   project,
	}

	client, err := env.NewRawClient(ctx)
	if err != nil {
		t.Fatalf("open admin client: %v", err)
	}
	defer client.Close()
	if err := client.Bucket(bucketName).Create(ctx, project, nil); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	return env
}

// CompareBytes fails the test when two byte slices differ, reporting the
// first mismatching offset.
func CompareBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if bytes.Equal(got, want) {
		return
	}
	n := len(got)
	if len(want) < n {
		n = len(want)
	}
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			t.Fatalf("data mismatch at offset %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
	t.Fatalf("length mismatch: got %d bytes, want %d", len(got), len(want))
}
