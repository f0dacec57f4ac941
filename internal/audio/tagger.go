package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/rymdl/rymdl/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify TagEditAction = iota

	// TagModify updates the tag with the canonical release value.
	TagModify

	// TagEmpty clears the tag value.
	TagEmpty
)

// TagConfig controls which ID3 frames are rewritten when organizing
// a release. Peers tag their files inconsistently; rewriting the
// album-level frames makes library players group releases correctly.
type TagConfig struct {
	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// AlbumArtist controls the TPE2 (Album artist) frame.
	AlbumArtist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// Year controls the TYER (Year) frame.
	Year TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig rewrites artist, album artist, album and year, and
// clears comments (peers often leave ripper ads there).
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		Artist:      TagModify,
		AlbumArtist: TagModify,
		Album:       TagModify,
		Year:        TagModify,
		Comments:    TagEmpty,
	}
}

// Tagger rewrites ID3 tags of organized mp3 files to the canonical
// release metadata. Track-level frames (title, number) are never
// touched; only the peer knows those.
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a Tagger. A nil config means DefaultTagConfig.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// TagRelease rewrites tags of every .mp3 file directly inside dir and
// returns how many files were tagged. Non-mp3 files are skipped; flac
// and other formats carry their own tag containers this tagger does
// not speak.
func (t *Tagger) TagRelease(dir string, rel model.Release) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	tagged := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".mp3") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := t.tagFile(path, rel); err != nil {
			return tagged, fmt.Errorf("tag %s: %w", entry.Name(), err)
		}
		tagged++
	}
	return tagged, nil
}

func (t *Tagger) tagFile(path string, rel model.Release) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		tag.SetArtist(rel.Artist)
	}

	switch t.config.AlbumArtist {
	case TagEmpty:
		tag.DeleteFrames("TPE2")
	case TagModify:
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, rel.Artist)
	}

	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		tag.SetAlbum(rel.Title)
	}

	switch t.config.Year {
	case TagEmpty:
		tag.DeleteFrames("TYER")
	case TagModify:
		if rel.Year != 0 {
			tag.AddTextFrame("TYER", id3v2.EncodingUTF8, fmt.Sprintf("%d", rel.Year))
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}

	return tag.Save()
}
