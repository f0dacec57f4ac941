// Package search filters and ranks broker candidates for a release,
// and persists the per-release selection artifact.
//
// Filter and Rank are pure: the same candidates and constraints always
// produce the same ordering, so ranking decisions can be replayed from
// a saved artifact.
//
// Ranking priority: preferred format order, free upload slot, bitrate,
// upload speed, queue length; ties keep discovery order.
package search
