// Package model defines the core data structures used throughout rymdl.
//
// # Release
//
// Release identifies one album to source, with a canonical textual
// form that round-trips through ParseRelease:
//
//	r, _ := model.ParseRelease("Radiohead - OK Computer (1997)")
//	r.String() // "Radiohead - OK Computer (1997)"
//
// # Candidate
//
// Candidate is one peer-reported source for a release, as returned by
// the broker after normalization (forward-slash paths, derived
// extensions, dominant format and average bitrate).
//
// # TransferState
//
// TransferState normalizes the broker's inconsistent status vocabulary
// into a small enum; MapBrokerState performs the table lookup. Only
// "Completed, Succeeded" maps to success.
package model
