// Package fetch downloads very large numbers of small objects without being
// bottlenecked by per-object request overhead.
//
// [Plan] packs a catalog into size-bounded groups in input order. For each
// multi-member group, [Download] asks the store to concatenate the members
// server-side into a transient composite object, downloads the composite in
// a single request, splits the bytes at the group's recorded offsets, writes
// each original object to the destination bucket, and deletes the composite.
// Deleting is best-effort: a failed cleanup is reported as a warning, never
// as a download failure.
//
// Three strategies ([StrategyParallel], [StrategyThreaded], and
// [StrategySequential]) schedule the group loop, all sharing the identical
// per-group logic. A dispatched group always completes, cleanup included;
// cancellation takes effect between groups. The threaded strategy installs
// no signal handling and is meant for callers whose host process owns
// process signals.
//
// The destination is any gocloud.dev blob bucket: a local directory via
// fileblob, an in-memory bucket in tests, or another cloud bucket when
// mirroring.
package fetch
