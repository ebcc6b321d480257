// Package store defines the object-storage surface consumed by the listing
// and download pipelines, along with two implementations: GCS, backed by a
// Google Cloud Storage bucket, and Memory, a deterministic in-process store
// for tests.
//
// The interface is intentionally narrow: bounded paginated listing over a
// half-open name range, server-side compose, whole-object download, and
// delete. Retry and backoff for transient failures live inside the
// implementations; callers treat returned errors as terminal.
package store
