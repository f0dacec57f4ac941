// Package config provides configuration management for rymdl.
//
// Settings are loaded from a JSON file (default location under the
// XDG config home) with environment variables taking precedence:
//
//	settings, err := config.Load(config.DefaultPath())
//	// SLSKD_HOST / SLSKD_API_KEY / RYMDL_OUTPUT_DIR override the file
//
// Use DefaultSettings() for sensible defaults: slskd on localhost,
// flac preferred over mp3, 320 kbps minimum, a 30 minute batch budget
// and four concurrent releases.
package config
