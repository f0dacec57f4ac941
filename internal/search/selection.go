package search

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/rymdl/rymdl/internal/model"
)

// Alternative is one persisted ranked candidate.
type Alternative struct {
	Username  string       `json:"username"`
	Directory string       `json:"directory"`
	Files     []model.File `json:"files"`
	Format    string       `json:"format"`
	Bitrate   int          `json:"bitrate"`
}

// Candidate converts a persisted alternative back into a Candidate.
// Slot/queue/speed signals are not persisted; they only matter while
// ranking live results.
func (a Alternative) Candidate() model.Candidate {
	return model.Candidate{
		Username:  a.Username,
		Directory: a.Directory,
		Files:     a.Files,
		Format:    a.Format,
		BitRate:   a.Bitrate,
	}
}

// SelectionRecord is the persisted search outcome for one release:
// the chosen index into up to three ranked alternatives, or nil when
// the search found nothing usable.
type SelectionRecord struct {
	Selected     int           `json:"selected"`
	Alternatives []Alternative `json:"alternatives"`
}

// Selections maps canonical release strings to their selection
// records. A nil record means the release had no usable result.
type Selections map[string]*SelectionRecord

// NewSelectionRecord builds a record from ranked candidates, keeping
// the top alternatives. A chosen index beyond the kept window is
// re-based so the chosen candidate leads the persisted alternatives.
func NewSelectionRecord(ranked []model.Candidate, chosen int) *SelectionRecord {
	if len(ranked) == 0 {
		return nil
	}
	if chosen < 0 || chosen >= len(ranked) {
		chosen = 0
	}

	var window []model.Candidate
	selected := chosen
	if chosen < maxAlternatives {
		window = ranked
		if len(window) > maxAlternatives {
			window = window[:maxAlternatives]
		}
	} else {
		// Interactive pick outside the top window: keep the pick
		// plus the two best runners-up.
		window = append([]model.Candidate{ranked[chosen]}, ranked[:maxAlternatives-1]...)
		selected = 0
	}

	alts := make([]Alternative, len(window))
	for i, c := range window {
		alts[i] = Alternative{
			Username:  c.Username,
			Directory: c.Directory,
			Files:     c.Files,
			Format:    c.Format,
			Bitrate:   c.BitRate,
		}
	}
	return &SelectionRecord{Selected: selected, Alternatives: alts}
}

// Chosen returns the selected alternative.
func (r *SelectionRecord) Chosen() (Alternative, bool) {
	if r == nil || len(r.Alternatives) == 0 {
		return Alternative{}, false
	}
	i := r.Selected
	if i < 0 || i >= len(r.Alternatives) {
		i = 0
	}
	return r.Alternatives[i], true
}

// Save writes the selections artifact as indented JSON.
func (s Selections) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// LoadSelections reads a selections artifact.
//
// Records written by older versions carried a single
// {username, directory, files} object instead of an alternatives
// list; those are upgraded on load.
func LoadSelections(path string) (Selections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("selections file %s: invalid JSON", path)
	}

	out := make(Selections)
	var parseErr error
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			out[key.String()] = nil
			return true
		}

		raw := []byte(value.Raw)
		if value.Get("alternatives").Exists() {
			var rec SelectionRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				parseErr = fmt.Errorf("selections file %s: %q: %w", path, key.String(), err)
				return false
			}
			out[key.String()] = &rec
			return true
		}

		// Legacy single-candidate shape.
		var alt Alternative
		if err := json.Unmarshal(raw, &alt); err != nil {
			parseErr = fmt.Errorf("selections file %s: %q: %w", path, key.String(), err)
			return false
		}
		out[key.String()] = &SelectionRecord{
			Selected:     0,
			Alternatives: []Alternative{alt},
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}
