package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// TokenEnv names the environment variable that overrides github.token.
const TokenEnv = "GITHUB_TOKEN"

// Settings holds all configuration options.
type Settings struct {
	Discord  DiscordSettings  `koanf:"discord"`
	GitHub   GitHubSettings   `koanf:"github"`
	Catalog  CatalogSettings  `koanf:"catalog"`
	Site     SiteSettings     `koanf:"site"`
	Download DownloadSettings `koanf:"download"`
}

// DiscordSettings identifies the Discord application and the one account
// allowed to publish.
type DiscordSettings struct {
	ClientID      string `koanf:"client_id"`
	RedirectURI   string `koanf:"redirect_uri"`
	AllowedUserID string `koanf:"allowed_user_id"`
}

// GitHubSettings locates the repository that stores the catalog.
type GitHubSettings struct {
	Owner      string `koanf:"owner"`
	Repo       string `koanf:"repo"`
	Branch     string `koanf:"branch"`
	Token      string `koanf:"token"`
	APIBaseURL string `koanf:"api_base_url"`
	RawBaseURL string `koanf:"raw_base_url"`
}

// CatalogSettings holds the repository paths of the catalog artifacts.
type CatalogSettings struct {
	SongsPath        string `koanf:"songs_path"`
	MusicDir         string `koanf:"music_dir"`
	CoverDir         string `koanf:"cover_dir"`
	MetadataDir      string `koanf:"metadata_dir"`
	MetadataIndex    string `koanf:"metadata_index"`
	FetchConcurrency int    `koanf:"fetch_concurrency"`
	PerPage          int    `koanf:"per_page"`
}

// SiteSettings describes the published site, used as a second source for
// the metadata index.
type SiteSettings struct {
	BaseURL string `koanf:"base_url"`
}

// DownloadSettings controls the local mirror.
type DownloadSettings struct {
	Path                      string  `koanf:"path"`
	MaxConcurrent             int     `koanf:"max_concurrent"`
	MaxRetries                int     `koanf:"max_retries"`
	RetryCooldown             float64 `koanf:"retry_cooldown"`
	RetryExponent             float64 `koanf:"retry_exponent"`
	AllowedFileSizeDifference float64 `koanf:"allowed_file_size_difference"`

	// Tag settings
	ModifyTags            bool `koanf:"modify_tags"`
	SaveCoverArtInTags    bool `koanf:"save_cover_art_in_tags"`
	CoverArtInTagsResize  bool `koanf:"cover_art_in_tags_resize"`
	CoverArtInTagsMaxSize int  `koanf:"cover_art_in_tags_max_size"`
	ConvertCoverArtToJPG  bool `koanf:"convert_cover_art_to_jpg"`

	// Playlist settings
	CreatePlaylist   bool   `koanf:"create_playlist"`
	PlaylistFormat   string `koanf:"playlist_format"` // m3u, pls, wpl, zpl
	PlaylistFileName string `koanf:"playlist_file_name"`
	M3UExtended      bool   `koanf:"m3u_extended"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		Discord: DiscordSettings{
			ClientID:      "1405367857109532732",
			RedirectURI:   "https://thegaspygames.github.io/canciones/",
			AllowedUserID: "684395420004253729",
		},
		GitHub: GitHubSettings{
			Owner:      "thegaspygames",
			Repo:       "canciones",
			Branch:     "main",
			APIBaseURL: "https://api.github.com",
			RawBaseURL: "https://raw.githubusercontent.com",
		},
		Catalog: CatalogSettings{
			SongsPath:        "songs.json",
			MusicDir:         "music",
			CoverDir:         "assets/covers",
			MetadataDir:      "music-metadata",
			MetadataIndex:    "index.json",
			FetchConcurrency: 4,
			PerPage:          24,
		},
		Site: SiteSettings{
			BaseURL: "https://thegaspygames.github.io/canciones/",
		},
		Download: DownloadSettings{
			Path:                      filepath.Join(homeDir, "Music", "canciones"),
			MaxConcurrent:             4,
			MaxRetries:                7,
			RetryCooldown:             0.2,
			RetryExponent:             4.0,
			AllowedFileSizeDifference: 0.05,

			ModifyTags:            true,
			SaveCoverArtInTags:    true,
			CoverArtInTagsResize:  true,
			CoverArtInTagsMaxSize: 1000,
			ConvertCoverArtToJPG:  true,

			CreatePlaylist:   false,
			PlaylistFormat:   "m3u",
			PlaylistFileName: "canciones",
			M3UExtended:      true,
		},
	}
}

// DefaultPaths returns the config files Load reads when given no path, in
// increasing priority.
func DefaultPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, "canciones", "config.toml"),
		"canciones.toml",
	}
}

// Load reads TOML settings over the defaults.
//
// With an empty path every file in DefaultPaths that exists is loaded, later
// files overriding earlier ones. A path that does not exist yields the
// defaults. The GITHUB_TOKEN environment variable, when set, replaces
// github.token.
func Load(path string) (*Settings, error) {
	paths := DefaultPaths()
	if path != "" {
		paths = []string{path}
	}

	k := koanf.New(".")
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
	}

	settings := DefaultSettings()
	if err := k.Unmarshal("", settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if token := os.Getenv(TokenEnv); token != "" {
		settings.GitHub.Token = token
	}
	settings.normalize()
	return settings, nil
}

func (s *Settings) normalize() {
	s.GitHub.APIBaseURL = strings.TrimSuffix(s.GitHub.APIBaseURL, "/")
	s.GitHub.RawBaseURL = strings.TrimSuffix(s.GitHub.RawBaseURL, "/")
	s.Catalog.MusicDir = strings.Trim(s.Catalog.MusicDir, "/")
	s.Catalog.CoverDir = strings.Trim(s.Catalog.CoverDir, "/")
	s.Catalog.MetadataDir = strings.Trim(s.Catalog.MetadataDir, "/")
	s.Catalog.SongsPath = strings.TrimPrefix(s.Catalog.SongsPath, "/")
	if s.Catalog.FetchConcurrency <= 0 || s.Catalog.FetchConcurrency > 4 {
		s.Catalog.FetchConcurrency = 4
	}
	if s.Catalog.PerPage <= 0 {
		s.Catalog.PerPage = 24
	}
	if s.Download.MaxConcurrent <= 0 {
		s.Download.MaxConcurrent = 1
	}
	s.Download.Path = expandPath(s.Download.Path)
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ConfigError reports a required setting that is missing or still holds a
// placeholder. It blocks the feature that needs the setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

// ValidateRepository checks the settings needed to read the catalog.
func (s *Settings) ValidateRepository() error {
	return errors.Join(
		required("github.owner", s.GitHub.Owner),
		required("github.repo", s.GitHub.Repo),
		required("github.branch", s.GitHub.Branch),
		required("catalog.metadata_dir", s.Catalog.MetadataDir),
		required("catalog.metadata_index", s.Catalog.MetadataIndex),
	)
}

// ValidateDiscord checks the settings needed to log in.
func (s *Settings) ValidateDiscord() error {
	return errors.Join(
		required("discord.client_id", s.Discord.ClientID),
		required("discord.redirect_uri", s.Discord.RedirectURI),
		required("discord.allowed_user_id", s.Discord.AllowedUserID),
	)
}

// ValidatePublish checks everything a publish needs, except the session.
func (s *Settings) ValidatePublish() error {
	return errors.Join(
		s.ValidateRepository(),
		s.ValidateDiscord(),
		required("github.token", s.GitHub.Token),
		required("catalog.music_dir", s.Catalog.MusicDir),
		required("catalog.cover_dir", s.Catalog.CoverDir),
	)
}

func required(key, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return &ConfigError{Key: key, Reason: "is not set"}
	}
	if isPlaceholder(v) {
		return &ConfigError{Key: key, Reason: "still holds a placeholder value"}
	}
	return nil
}

func isPlaceholder(v string) bool {
	lower := strings.ToLower(v)
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return true
	}
	for _, marker := range []string{"your_", "your-", "tu_", "replace", "changeme"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
