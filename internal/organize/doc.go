// Package organize moves completed downloads into the canonical
// library layout: {output_root}/{Artist}/{Title (Year)}/.
//
// Moves are idempotent and atomic per release: re-running against an
// already organized release is a no-op, partial leftovers from an
// aborted run are replaced, and no two releases ever share a target
// directory.
package organize
