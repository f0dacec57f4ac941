package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	json "github.com/goccy/go-json"
)

// Env variable names taking precedence over the settings file.
const (
	EnvSlskdHost   = "SLSKD_HOST"
	EnvSlskdAPIKey = "SLSKD_API_KEY"
	EnvOutputDir   = "RYMDL_OUTPUT_DIR"
)

// Settings holds all configuration options.
//
// Precedence is env vars > settings file > defaults.
type Settings struct {
	// Broker connection
	SlskdHost   string `json:"slskd_host"`
	SlskdAPIKey string `json:"slskd_api_key"`

	// Search filtering and ranking
	PreferredFormats []string `json:"preferred_formats"`
	MinBitrate       int      `json:"min_bitrate"`
	MinFiles         int      `json:"min_files"`

	// Timing, in seconds unless noted
	SearchTimeout        int     `json:"search_timeout"`
	SearchPollDelay      float64 `json:"search_poll_delay"`
	TransferPollInterval float64 `json:"transfer_poll_interval"`
	BatchTimeoutMinutes  int     `json:"batch_timeout_minutes"`

	// Concurrency
	MaxConcurrentReleases int `json:"max_concurrent_releases"`

	// Filesystem
	DownloadsDir string `json:"downloads_dir"`
	OutputDir    string `json:"output_dir"`

	// Input handling: abort the batch on the first malformed
	// release line instead of skipping it with a report.
	StrictInput bool `json:"strict_input"`

	// Retag organized mp3 files with the canonical artist/album/year.
	ModifyTags bool `json:"modify_tags"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		SlskdHost:        "http://localhost:5030",
		SlskdAPIKey:      "",
		PreferredFormats: []string{"flac", "mp3"},
		MinBitrate:       320,
		MinFiles:         1,

		SearchTimeout:        30,
		SearchPollDelay:      1.0,
		TransferPollInterval: 2.0,
		BatchTimeoutMinutes:  30,

		MaxConcurrentReleases: 4,

		DownloadsDir: filepath.Join(homeDir, "Music", "slskd", "downloads"),
		OutputDir:    filepath.Join(homeDir, "Music", "Library"),

		StrictInput: false,
		ModifyTags:  false,
	}
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "rymdl", "config.json")
}

// Load reads settings from a JSON file and applies env overrides.
//
// A missing file is not an error; defaults are used.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			settings.applyEnv()
			return settings, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	settings.applyEnv()
	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvSlskdHost); v != "" {
		s.SlskdHost = v
	}
	if v := os.Getenv(EnvSlskdAPIKey); v != "" {
		s.SlskdAPIKey = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		s.OutputDir = v
	}
}

// SearchTimeoutDuration returns the broker-side search timeout.
func (s *Settings) SearchTimeoutDuration() time.Duration {
	return time.Duration(s.SearchTimeout) * time.Second
}

// SearchPollDelayDuration returns the delay between stabilization rounds.
func (s *Settings) SearchPollDelayDuration() time.Duration {
	return time.Duration(s.SearchPollDelay * float64(time.Second))
}

// TransferPollIntervalDuration returns the delay between transfer polls.
func (s *Settings) TransferPollIntervalDuration() time.Duration {
	return time.Duration(s.TransferPollInterval * float64(time.Second))
}

// BatchTimeout returns the shared wall-clock budget for one batch run.
func (s *Settings) BatchTimeout() time.Duration {
	return time.Duration(s.BatchTimeoutMinutes) * time.Minute
}
