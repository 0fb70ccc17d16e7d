package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegaspygames/canciones/internal/config"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

type stubLoader []model.Song

func (l stubLoader) LoadCatalog(ctx context.Context) ([]model.Song, error) {
	return append([]model.Song(nil), l...), nil
}

func testSettings(dir string) *config.DownloadSettings {
	s := config.DefaultSettings().Download
	s.Path = dir
	s.MaxRetries = 3
	s.RetryCooldown = 0
	s.ModifyTags = false
	s.SaveCoverArtInTags = false
	s.CreatePlaylist = true
	s.PlaylistFileName = "canciones"
	return &s
}

func TestManager_Mirror(t *testing.T) {
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/a.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("aaaa"))
	})
	mux.HandleFunc("/b.wav", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("bbbbbb"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	songs := stubLoader{
		{ID: "1", Title: "A", File: srv.URL + "/a.wav", Size: 4, Genre: "Rock", DownloadName: "Song.wav"},
		{ID: "2", Title: "B", File: srv.URL + "/b.wav", Size: 6, Genre: "Rock", DownloadName: "Song.wav"},
		{ID: "3", Title: "C", File: srv.URL + "/c.wav", Genre: "Jazz", DownloadName: "c.wav"},
	}

	m := NewManager(testSettings(dir), songs, nil, nil)

	require.NoError(t, m.Initialize(context.Background(), model.Query{Genre: "Rock"}))
	require.Len(t, m.Songs(), 2)
	assert.Equal(t, "Song.wav", m.Songs()[0].DownloadName)
	assert.Equal(t, "Song (2).wav", m.Songs()[1].DownloadName)

	require.NoError(t, m.StartDownloads(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "Song.wav"))
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "Song (2).wav"))
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", string(data))

	received, total, files, filesTotal := m.GetProgress()
	assert.Equal(t, int64(10), received)
	assert.Equal(t, int64(10), total)
	assert.Equal(t, int32(2), files)
	assert.Equal(t, int32(2), filesTotal)

	playlist, err := os.ReadFile(m.PlaylistPath())
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n#EXTINF:-1,A\nSong.wav\n#EXTINF:-1,B\nSong (2).wav\n", string(playlist))
	assert.Equal(t, filepath.Join(dir, "canciones.m3u"), m.PlaylistPath())
}

func TestManager_SkipsExisting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("new content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.mp3"), make([]byte, 100), 0o644))

	settings := testSettings(dir)
	settings.CreatePlaylist = false
	m := NewManager(settings, stubLoader{{Title: "X", File: srv.URL + "/x.mp3", Size: 102, DownloadName: "x.mp3"}}, nil, nil)

	require.NoError(t, m.Initialize(context.Background(), model.Query{}))
	require.NoError(t, m.StartDownloads(context.Background()))
	assert.Zero(t, hits.Load())
}

func TestManager_FailedSongIsReported(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var warned bool
	settings := testSettings(t.TempDir())
	settings.MaxRetries = 1
	m := NewManager(settings, stubLoader{{Title: "Gone", File: srv.URL + "/gone.mp3", Size: 1, DownloadName: "gone.mp3"}}, nil,
		func(e progress.Event) {
			warned = warned || e.Level == progress.LevelError
		})

	require.NoError(t, m.Initialize(context.Background(), model.Query{}))
	require.NoError(t, m.StartDownloads(context.Background()))
	assert.True(t, warned)
	_, _, files, filesTotal := m.GetProgress()
	assert.Equal(t, int32(0), files)
	assert.Equal(t, int32(1), filesTotal)
}
