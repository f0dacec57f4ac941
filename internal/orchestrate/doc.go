// Package orchestrate drives releases from search to library.
//
// The Orchestrator owns one release's lifecycle: search the broker,
// rank what comes back, enqueue the best candidate, poll its
// transfers, and move the finished download into the library. Failed
// candidates are retried with ranked alternates. The Coordinator fans
// a whole batch out over a bounded worker pool under a single shared
// deadline and reports an ordered ledger.
package orchestrate
