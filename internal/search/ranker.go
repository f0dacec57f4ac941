package search

import (
	"sort"
	"strings"

	"github.com/rymdl/rymdl/internal/model"
)

// LosslessFormats are formats whose files often report no bitrate.
var LosslessFormats = map[string]bool{
	"flac": true,
	"wav":  true,
	"alac": true,
	"ape":  true,
	"wv":   true,
}

// stopWords are excluded from title matching.
var stopWords = map[string]bool{
	"the":  true,
	"and":  true,
	"for":  true,
	"with": true,
	"from": true,
}

// maxAlternatives is how many ranked candidates are kept per release
// in the persisted selection artifact.
const maxAlternatives = 3

// Constraints are the filter criteria applied to raw candidates.
type Constraints struct {
	// AllowedFormats restricts candidates to these formats and prunes
	// files of other formats. Nil means no format constraint.
	AllowedFormats []string

	// MinBitrate excludes candidates below this declared bitrate. An
	// unknown bitrate (0) bypasses the check for lossless formats only.
	MinBitrate int

	// MinFiles excludes candidates offering fewer files.
	MinFiles int
}

// Filter reduces candidates to those satisfying the constraints and
// textually matching the release.
//
// When AllowedFormats is set, each surviving candidate's file list is
// pruned to the allowed formats and its format/bitrate re-derived from
// what remains, so the enqueued set never includes stray files.
func Filter(candidates []model.Candidate, rel model.Release, c Constraints) []model.Candidate {
	allowed := make(map[string]bool, len(c.AllowedFormats))
	for _, f := range c.AllowedFormats {
		allowed[strings.ToLower(f)] = true
	}

	var out []model.Candidate
	for _, cand := range candidates {
		if len(allowed) > 0 {
			files := make([]model.File, 0, len(cand.Files))
			for _, f := range cand.Files {
				if allowed[f.Extension] {
					files = append(files, f)
				}
			}
			cand.Files = files
			cand.Format = model.DominantFormat(files)
			cand.BitRate = model.AverageBitRate(files)
		}

		if len(cand.Files) < c.MinFiles {
			continue
		}
		if cand.BitRate < c.MinBitrate && !(cand.BitRate == 0 && LosslessFormats[cand.Format]) {
			continue
		}
		if !MatchesRelease(cand, rel) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// MatchesRelease reports whether every significant word of the release
// title appears, case-insensitively, in the candidate's directory or
// file names. Significant words are longer than 2 characters and not
// stop-words; a title with no significant words matches anything.
func MatchesRelease(cand model.Candidate, rel model.Release) bool {
	words := SignificantWords(rel.Title)
	if len(words) == 0 {
		return true
	}

	var b strings.Builder
	b.WriteString(cand.Directory)
	for _, f := range cand.Files {
		b.WriteByte('/')
		b.WriteString(f.Name)
	}
	haystack := strings.ToLower(b.String())

	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

// SignificantWords extracts the lowercased title words used for
// matching.
func SignificantWords(title string) []string {
	var words []string
	for _, w := range strings.FieldsFunc(title, func(r rune) bool {
		return !isWordRune(r)
	}) {
		w = strings.ToLower(w)
		if len(w) > 2 && !stopWords[w] {
			words = append(words, w)
		}
	}
	return words
}

func isWordRune(r rune) bool {
	return r == '\'' || r == '-' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

// Rank orders filtered candidates best-first.
//
// Priority: preferred format order (unlisted formats last), free
// upload slot, higher bitrate, faster upload speed, shorter queue.
// The sort is stable, so ties keep discovery order and repeated calls
// return the same ranking.
func Rank(candidates []model.Candidate, preferredFormats []string) []model.Candidate {
	formatOrder := make(map[string]int, len(preferredFormats))
	for i, f := range preferredFormats {
		formatOrder[strings.ToLower(f)] = i
	}
	unlisted := len(preferredFormats)
	rankOf := func(format string) int {
		if r, ok := formatOrder[format]; ok {
			return r
		}
		return unlisted
	}

	ranked := make([]model.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ra, rb := rankOf(a.Format), rankOf(b.Format); ra != rb {
			return ra < rb
		}
		if a.HasFreeSlot != b.HasFreeSlot {
			return a.HasFreeSlot
		}
		if a.BitRate != b.BitRate {
			return a.BitRate > b.BitRate
		}
		if a.UploadSpeed != b.UploadSpeed {
			return a.UploadSpeed > b.UploadSpeed
		}
		return a.QueueLength < b.QueueLength
	})

	return ranked
}
