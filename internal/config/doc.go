// Package config provides configuration management for canciones.
//
// This package handles:
//   - Loading settings from TOML files with koanf
//   - Default configuration values
//   - Validation of the settings each feature needs
//
// # Default Settings
//
// DefaultSettings points at the public thegaspygames/canciones repository
// and its Discord application:
//
//	settings := config.DefaultSettings()
//	// Reads music-metadata/index.json from thegaspygames/canciones@main
//	// Mirrors to ~/Music/canciones
//
// # Loading from File
//
//	settings, err := config.Load("")              // XDG config dir, then ./canciones.toml
//	settings, err := config.Load("/etc/canciones.toml")
//
// A file only needs the keys it changes:
//
//	[github]
//	owner = "someone"
//	repo = "songs"
//
//	[download]
//	create_playlist = true
//	playlist_format = "pls"
//
// # Validation
//
// ValidateRepository, ValidateDiscord and ValidatePublish return
// *ConfigError values (joined) naming every missing or placeholder key.
package config
