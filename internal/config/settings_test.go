package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")

	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	def := DefaultSettings()
	def.normalize()
	assert.Equal(t, def, s)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	t.Setenv(TokenEnv, "")
	path := filepath.Join(t.TempDir(), "canciones.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[github]
owner = "someone"
raw_base_url = "https://raw.example.test/"

[catalog]
metadata_dir = "/meta/"
fetch_concurrency = 16

[download]
path = "~/mirror"
create_playlist = true
playlist_format = "pls"
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "someone", s.GitHub.Owner)
	assert.Equal(t, "canciones", s.GitHub.Repo)
	assert.Equal(t, "main", s.GitHub.Branch)
	assert.Equal(t, "https://raw.example.test", s.GitHub.RawBaseURL)
	assert.Equal(t, "meta", s.Catalog.MetadataDir)
	assert.Equal(t, "index.json", s.Catalog.MetadataIndex)
	assert.Equal(t, 4, s.Catalog.FetchConcurrency)
	assert.True(t, s.Download.CreatePlaylist)
	assert.Equal(t, "pls", s.Download.PlaylistFormat)
	assert.True(t, s.Download.M3UExtended)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mirror"), s.Download.Path)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[github\nowner="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TokenFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canciones.toml")
	require.NoError(t, os.WriteFile(path, []byte("[github]\ntoken = \"from-file\"\n"), 0o644))

	t.Setenv(TokenEnv, "from-env")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.GitHub.Token)
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.ValidateRepository())
	assert.NoError(t, s.ValidateDiscord())

	err := s.ValidatePublish()
	require.Error(t, err)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "github.token", ce.Key)

	s.GitHub.Token = "ghp_real"
	assert.NoError(t, s.ValidatePublish())

	s.Discord.ClientID = "YOUR_CLIENT_ID"
	s.GitHub.Owner = " "
	err = s.ValidatePublish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord.client_id still holds a placeholder value")
	assert.Contains(t, err.Error(), "github.owner is not set")
}
