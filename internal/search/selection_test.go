package search

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rymdl/rymdl/internal/model"
)

func TestNewSelectionRecordKeepsTopThree(t *testing.T) {
	ranked := []model.Candidate{
		makeCandidate("u1", "d1", "flac", 1411, 2),
		makeCandidate("u2", "d2", "flac", 1000, 2),
		makeCandidate("u3", "d3", "mp3", 320, 2),
		makeCandidate("u4", "d4", "mp3", 256, 2),
	}

	rec := NewSelectionRecord(ranked, 0)
	if rec.Selected != 0 {
		t.Errorf("Selected = %d", rec.Selected)
	}
	if len(rec.Alternatives) != 3 {
		t.Fatalf("kept %d alternatives, want 3", len(rec.Alternatives))
	}
	if rec.Alternatives[0].Username != "u1" || rec.Alternatives[2].Username != "u3" {
		t.Errorf("alternatives = %+v", rec.Alternatives)
	}
}

func TestNewSelectionRecordRebasesOutOfWindowPick(t *testing.T) {
	ranked := []model.Candidate{
		makeCandidate("u1", "d1", "flac", 1411, 2),
		makeCandidate("u2", "d2", "flac", 1000, 2),
		makeCandidate("u3", "d3", "mp3", 320, 2),
		makeCandidate("u4", "d4", "mp3", 256, 2),
	}

	rec := NewSelectionRecord(ranked, 3)
	if rec.Selected != 0 {
		t.Errorf("Selected = %d, pick should lead the window", rec.Selected)
	}
	if rec.Alternatives[0].Username != "u4" {
		t.Errorf("Alternatives[0] = %q, want the picked u4", rec.Alternatives[0].Username)
	}
	if len(rec.Alternatives) != 3 {
		t.Errorf("kept %d alternatives, want 3", len(rec.Alternatives))
	}
}

func TestNewSelectionRecordEmpty(t *testing.T) {
	if rec := NewSelectionRecord(nil, 0); rec != nil {
		t.Errorf("record for no candidates should be nil, got %+v", rec)
	}
}

func TestSelectionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	sel := Selections{
		"Radiohead - OK Computer (1997)": &SelectionRecord{
			Selected: 0,
			Alternatives: []Alternative{
				{
					Username:  "u1",
					Directory: "Music/Radiohead/OK Computer (1997)",
					Files: []model.File{
						{Name: "Music/Radiohead/OK Computer (1997)/01.flac", Size: 100, BitRate: 1411, Extension: "flac"},
					},
					Format:  "flac",
					Bitrate: 1411,
				},
			},
		},
		"Unobtainium - Lost Album (1999)": nil,
	}

	if err := sel.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := LoadSelections(path)
	if err != nil {
		t.Fatalf("LoadSelections error: %v", err)
	}
	if !reflect.DeepEqual(sel, loaded) {
		t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", sel, loaded)
	}
}

func TestLoadSelectionsLegacyShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	legacy := `{
	  "Artist - Album (2020)": {
	    "username": "u1",
	    "directory": "Music/Artist/Album",
	    "files": [{"filename": "Music/Artist/Album/01.flac", "size": 10}],
	    "format": "flac",
	    "bitrate": 900
	  }
	}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSelections(path)
	if err != nil {
		t.Fatalf("LoadSelections error: %v", err)
	}
	rec := loaded["Artist - Album (2020)"]
	if rec == nil {
		t.Fatal("legacy record missing")
	}
	alt, ok := rec.Chosen()
	if !ok || alt.Username != "u1" || alt.Format != "flac" {
		t.Errorf("Chosen = %+v, %v", alt, ok)
	}
}

func TestLoadSelectionsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSelections(path); err == nil {
		t.Error("invalid JSON should error")
	}
}

func TestChosenOutOfRangeFallsBack(t *testing.T) {
	rec := &SelectionRecord{
		Selected:     7,
		Alternatives: []Alternative{{Username: "only"}},
	}
	alt, ok := rec.Chosen()
	if !ok || alt.Username != "only" {
		t.Errorf("Chosen = %+v, %v", alt, ok)
	}
}
