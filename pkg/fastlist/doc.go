// Package fastlist enumerates very large object namespaces far faster than a
// single paginated listing by partitioning the lexicographic key space
// across parallel workers that rebalance load through workstealing.
//
// # Algorithm
//
// [Partition] seeds each worker with a half-open, prefix-relative name range.
// Every worker lists its range one bounded page at a time, advancing the
// range's lower bound past each page. A worker that runs out of work scans
// its siblings for the largest remaining range, splits it at its
// lexicographic midpoint (computed by [RangeSplitter]), and takes the upper
// half. Static partitioning alone underperforms when object density varies
// across the key space; stealing rebalances without global coordination.
//
// # Termination
//
// The pool finishes only when every worker is simultaneously idle. A worker
// counts as idle only while sleeping between steal scans, never while a
// steal is in flight, so the consensus cannot fire while a stolen range is
// in transit.
//
// # Guarantees
//
// [List] returns either the complete deduplicated catalog under the prefix
// (filtered by storage class) or an error; a partial catalog is never
// returned. Output is invariant to the worker count. No ordering is
// guaranteed unless requested with [WithSorted].
package fastlist
