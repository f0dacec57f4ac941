package organize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rymdl/rymdl/internal/model"
)

// Library materializes completed downloads into the canonical
// Artist/Title (Year) layout.
//
// The broker saves each finished transfer under the last component of
// the peer's remote directory inside DownloadsDir; Organize moves that
// folder to {OutputRoot}/{Artist}/{Title (Year)}.
type Library struct {
	// DownloadsDir is where the broker drops finished transfers.
	DownloadsDir string

	// OutputRoot is the root of the organized library tree.
	OutputRoot string
}

// TargetDir returns the canonical directory for a release. Names are
// sanitized for filesystem-illegal characters but otherwise preserved.
func (l Library) TargetDir(rel model.Release) string {
	folder := rel.Title
	if rel.Year != 0 {
		folder = fmt.Sprintf("%s (%d)", rel.Title, rel.Year)
	}
	return filepath.Join(l.OutputRoot, model.SanitizeFileName(rel.Artist), model.SanitizeFileName(folder))
}

// SourceDirName extracts the folder the broker uses locally from a
// remote directory path: its last component.
func SourceDirName(remoteDir string) string {
	normalized := strings.ReplaceAll(remoteDir, "\\", "/")
	normalized = strings.TrimRight(normalized, "/")
	if i := strings.LastIndex(normalized, "/"); i >= 0 {
		return normalized[i+1:]
	}
	return normalized
}

// Organize moves one completed download into the library.
//
// It is idempotent: a fully organized target (source already gone) is
// left untouched, and partial leftovers from a prior aborted run are
// overwritten by the fresh source.
func (l Library) Organize(rel model.Release, remoteDir string) error {
	folder := SourceDirName(remoteDir)
	if folder == "" {
		return fmt.Errorf("organize %s: empty remote directory", rel)
	}
	source := filepath.Join(l.DownloadsDir, folder)
	target := l.TargetDir(rel)

	if source == target {
		return nil
	}

	srcInfo, err := os.Stat(source)
	if os.IsNotExist(err) {
		// A previous run may have already moved it.
		if _, terr := os.Stat(target); terr == nil {
			return nil
		}
		return fmt.Errorf("organize %s: source not found: %s", rel, source)
	}
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("organize %s: source is not a directory: %s", rel, source)
	}

	// Partial leftovers from an aborted attempt lose to a fresh source.
	if _, err := os.Stat(target); err == nil {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("organize %s: %w", rel, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("organize %s: %w", rel, err)
	}

	if err := os.Rename(source, target); err != nil {
		// Rename fails across filesystems; fall back to copying.
		if cerr := copyTree(source, target); cerr != nil {
			return fmt.Errorf("organize %s: %w", rel, cerr)
		}
		if rerr := os.RemoveAll(source); rerr != nil {
			return fmt.Errorf("organize %s: %w", rel, rerr)
		}
	}
	return nil
}

// copyTree recursively copies a directory.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0755)
		}
		return copyFile(path, out)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
