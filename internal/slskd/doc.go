// Package slskd is a thin, fault-normalizing client for the slskd
// REST API, the broker that mediates Soulseek search and transfers.
//
// The broker's raw responses are inconsistent in three ways this
// package hides from the rest of the program:
//
//   - remote paths arrive with mixed separators and are normalized to
//     forward slashes before anything compares or stores them;
//   - the per-file extension field is frequently empty and is derived
//     from the filename when missing;
//   - transfer states use a flat vocabulary with five "Completed, *"
//     variants of which only "Completed, Succeeded" is success
//     (mapped through model.MapBrokerState).
//
// Searches have no completion signal: results grow incrementally, so
// SearchStabilized polls until two consecutive rounds agree or a small
// round budget runs out.
//
// Failures surface as *NetworkError (transient, retried by the polling
// loops) or *AuthError (fatal to the whole batch).
package slskd
