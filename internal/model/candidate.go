package model

import (
	"sort"
	"strings"
)

// File is one remote file offered by a peer.
//
// The JSON field names mirror the broker's wire format so search
// results can be persisted and re-fed to the broker unchanged.
type File struct {
	// Name is the full remote path, normalized to forward slashes.
	Name string `json:"filename"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// BitRate is the declared bitrate in kbps, 0 when unknown.
	BitRate int `json:"bitRate,omitempty"`

	// Extension is the lowercased extension without the dot. The
	// broker frequently omits it; it is then derived from Name.
	Extension string `json:"extension,omitempty"`
}

// Base returns the file name without its directory.
func (f File) Base() string {
	if i := strings.LastIndex(f.Name, "/"); i >= 0 {
		return f.Name[i+1:]
	}
	return f.Name
}

// Candidate is one peer-reported source for a release.
type Candidate struct {
	// Username is the peer offering the files.
	Username string `json:"username"`

	// Directory is the remote directory shared by all files,
	// normalized to forward slashes.
	Directory string `json:"directory"`

	// Files are the offered files, in discovery order.
	Files []File `json:"files"`

	// Format is the dominant audio format of the files.
	Format string `json:"format"`

	// BitRate is the average declared bitrate, 0 when unknown.
	BitRate int `json:"bitrate"`

	// HasFreeSlot reports whether the peer has a free upload slot.
	HasFreeSlot bool `json:"-"`

	// QueueLength is the peer's upload queue length.
	QueueLength int `json:"-"`

	// UploadSpeed is the peer's reported upload speed in bytes/s.
	UploadSpeed int64 `json:"-"`
}

// Key identifies a candidate by peer, directory and file list. Two
// search snapshots are considered identical when their candidate keys
// match; used by the search stabilization loop.
func (c Candidate) Key() string {
	var b strings.Builder
	b.WriteString(c.Username)
	b.WriteByte('|')
	b.WriteString(c.Directory)
	names := make([]string, len(c.Files))
	for i, f := range c.Files {
		names[i] = f.Name
	}
	sort.Strings(names)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
	}
	return b.String()
}

// DominantFormat returns the most common extension among files.
func DominantFormat(files []File) string {
	counts := make(map[string]int)
	for _, f := range files {
		if f.Extension != "" {
			counts[f.Extension]++
		}
	}
	best := ""
	for ext, n := range counts {
		if n > counts[best] || (n == counts[best] && (best == "" || ext < best)) {
			best = ext
		}
	}
	return best
}

// AverageBitRate returns the mean bitrate of files that declare one.
func AverageBitRate(files []File) int {
	sum, n := 0, 0
	for _, f := range files {
		if f.BitRate > 0 {
			sum += f.BitRate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
