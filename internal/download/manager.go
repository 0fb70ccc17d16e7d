package download

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thegaspygames/canciones/internal/audio"
	"github.com/thegaspygames/canciones/internal/config"
	httpc "github.com/thegaspygames/canciones/internal/http"
	ioutils "github.com/thegaspygames/canciones/internal/io"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

// Loader produces the catalog to mirror.
type Loader interface {
	LoadCatalog(ctx context.Context) ([]model.Song, error)
}

// Manager mirrors the catalog into a local directory.
type Manager struct {
	settings     *config.DownloadSettings
	loader       Loader
	httpClient   *httpc.Client
	tagger       *audio.Tagger
	playlist     *audio.PlaylistCreator
	imageService *ioutils.ImageService

	songs           []model.Song // DownloadName rewritten to the local file name
	totalBytes      int64
	receivedBytes   int64
	totalFiles      int32
	downloadedFiles int32

	onProgress progress.Func
	mu         sync.RWMutex
}

// NewManager creates a new download Manager. A nil httpClient gets a
// default client.
func NewManager(settings *config.DownloadSettings, loader Loader, httpClient *httpc.Client, onProgress progress.Func) *Manager {
	if httpClient == nil {
		httpClient = httpc.NewClient()
	}
	return &Manager{
		settings:     settings,
		loader:       loader,
		httpClient:   httpClient,
		tagger:       audio.NewTagger(audio.DefaultTagConfig()),
		playlist:     audio.NewPlaylistCreator(audio.ParsePlaylistFormat(settings.PlaylistFormat), settings.M3UExtended),
		imageService: ioutils.NewImageService(),
		onProgress:   onProgress,
	}
}

// Initialize loads the catalog, keeps the songs matching q and assigns
// each a unique local file name.
func (m *Manager) Initialize(ctx context.Context, q model.Query) error {
	songs, err := m.loader.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	songs = model.Filter(songs, q)

	used := make(map[string]bool, len(songs))
	for i := range songs {
		songs[i].DownloadName = localName(songs[i], used)
	}

	m.mu.Lock()
	m.songs = songs
	m.mu.Unlock()

	m.calculateTotals(ctx)
	m.onProgress.Emit(progress.LevelInfo, fmt.Sprintf("Found %d songs to mirror", len(songs)))
	return nil
}

// localName returns a sanitized file name for s that is not yet in used.
func localName(s model.Song, used map[string]bool) string {
	name := ioutils.SanitizeFileName(s.DownloadName)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; used[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	used[strings.ToLower(name)] = true
	return name
}

// StartDownloads mirrors every initialized song, then writes the playlist
// when enabled. Failures of single songs are reported, not returned.
func (m *Manager) StartDownloads(ctx context.Context) error {
	if err := ioutils.EnsureDir(m.settings.Path); err != nil {
		return fmt.Errorf("create %s: %w", m.settings.Path, err)
	}

	songs := m.Songs()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.settings.MaxConcurrent))

	var successCount int32
	for _, song := range songs {
		g.Go(func() error {
			if err := m.downloadSong(ctx, song); err != nil {
				m.onProgress.Emit(progress.LevelError, fmt.Sprintf("Error downloading %s: %v", song.Title, err))
				return nil // Continue with other songs
			}
			atomic.AddInt32(&successCount, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.settings.CreatePlaylist && len(songs) > 0 {
		m.writePlaylist(ctx, songs)
	}

	if int(successCount) == len(songs) {
		m.onProgress.Emit(progress.LevelSuccess, fmt.Sprintf("Mirrored %d songs to %s", len(songs), m.settings.Path))
	} else {
		m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Mirrored %d of %d songs, some failed", successCount, len(songs)))
	}
	return nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received, total int64, filesReceived, filesTotal int32) {
	return atomic.LoadInt64(&m.receivedBytes), atomic.LoadInt64(&m.totalBytes),
		atomic.LoadInt32(&m.downloadedFiles), atomic.LoadInt32(&m.totalFiles)
}

// Songs returns the initialized songs with their local file names.
func (m *Manager) Songs() []model.Song {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Song(nil), m.songs...)
}

// PlaylistPath returns where the playlist is written.
func (m *Manager) PlaylistPath() string {
	name := ioutils.SanitizeFileName(m.settings.PlaylistFileName)
	return filepath.Join(m.settings.Path, name+"."+m.playlist.Format().Extension())
}

func (m *Manager) calculateTotals(ctx context.Context) {
	var total int64
	songs := m.Songs()
	for _, s := range songs {
		size := s.Size
		if size <= 0 {
			size, _ = m.httpClient.GetFileSize(ctx, s.File)
		}
		total += size
	}
	atomic.StoreInt64(&m.totalBytes, total)
	atomic.StoreInt32(&m.totalFiles, int32(len(songs)))
}

func (m *Manager) downloadSong(ctx context.Context, song model.Song) error {
	dest := filepath.Join(m.settings.Path, song.DownloadName)

	expected := song.Size
	if expected <= 0 {
		expected, _ = m.httpClient.GetFileSize(ctx, song.File)
	}
	if ioutils.SizeWithin(dest, expected, m.settings.AllowedFileSizeDifference) {
		m.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Skipping existing: %s", song.DownloadName))
		atomic.AddInt64(&m.receivedBytes, expected)
		atomic.AddInt32(&m.downloadedFiles, 1)
		return nil
	}

	tries := max(1, m.settings.MaxRetries)
	var err error
	for try := 0; try < tries; try++ {
		var written int64
		err = m.httpClient.DownloadFile(ctx, song.File, dest, func(w, _ int64) {
			atomic.AddInt64(&m.receivedBytes, w-written)
			written = w
		})
		if err == nil {
			break
		}
		atomic.AddInt64(&m.receivedBytes, -written)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if try+1 < tries {
			m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Retry %d/%d for %s", try+1, tries-1, song.Title))
			m.waitForRetry(ctx, try)
		}
	}
	if err != nil {
		return err
	}

	atomic.AddInt32(&m.downloadedFiles, 1)

	if strings.EqualFold(filepath.Ext(dest), ".mp3") && (m.settings.ModifyTags || m.settings.SaveCoverArtInTags) {
		var artwork []byte
		if m.settings.SaveCoverArtInTags {
			artwork = m.downloadCover(ctx, song)
		}
		if err := m.tagger.SaveTags(dest, song, artwork); err != nil {
			m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Error tagging %s: %v", song.Title, err))
		}
	}

	m.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Downloaded: %s", song.DownloadName))
	return nil
}

// downloadCover returns the prepared cover for song, or nil when it cannot
// be fetched or decoded.
func (m *Manager) downloadCover(ctx context.Context, song model.Song) []byte {
	if song.Cover == "" {
		return nil
	}

	var data []byte
	var err error
	for try := 0; try < max(1, m.settings.MaxRetries); try++ {
		data, err = m.httpClient.DownloadBytes(ctx, song.Cover)
		if err == nil || ctx.Err() != nil {
			break
		}
		m.waitForRetry(ctx, try)
	}
	if err != nil {
		m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Error downloading cover for %s: %v", song.Title, err))
		return nil
	}

	prepared, err := m.imageService.PrepareCover(ctx, data, m.settings.CoverArtInTagsMaxSize,
		m.settings.CoverArtInTagsResize, m.settings.ConvertCoverArtToJPG)
	if err != nil {
		m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Error preparing cover for %s: %v", song.Title, err))
		return nil
	}
	return prepared
}

func (m *Manager) writePlaylist(ctx context.Context, songs []model.Song) {
	path := m.PlaylistPath()
	content := m.playlist.CreatePlaylist(m.settings.PlaylistFileName, songs)
	if err := ioutils.WriteFile(ctx, path, []byte(content)); err != nil {
		m.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Error creating playlist: %v", err))
		return
	}
	m.onProgress.Emit(progress.LevelSuccess, fmt.Sprintf("Created playlist %s", filepath.Base(path)))
}

func (m *Manager) waitForRetry(ctx context.Context, tries int) {
	cooldown := m.settings.RetryCooldown * math.Pow(m.settings.RetryExponent, float64(tries))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}
