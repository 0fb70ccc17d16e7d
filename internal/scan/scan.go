package scan

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	ioutils "github.com/thegaspygames/canciones/internal/io"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

// Extensions lists the audio file extensions picked up by Generate.
var Extensions = []string{".mp3", ".wav", ".ogg"}

// Options maps local files to repository paths.
type Options struct {
	// MusicDir is the repository directory the files are published under.
	MusicDir string

	// CoverDir is the repository directory holding <id>.jpg covers.
	CoverDir string
}

// DefaultOptions returns the standard repository layout.
func DefaultOptions() Options {
	return Options{MusicDir: "music", CoverDir: "assets/covers"}
}

// Generate builds a catalog from the audio files directly inside dir.
//
// Titles, genres and AI model labels come from the file tags when present
// (the model from the comment tag); the date is the file modification day.
// A missing dir is created and yields an empty catalog.
func Generate(ctx context.Context, dir string, opts Options, onProgress progress.Func) (model.Catalog, error) {
	if err := ioutils.EnsureDir(dir); err != nil {
		return model.Catalog{}, fmt.Errorf("create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("read %s: %w", dir, err)
	}

	cat := model.Catalog{Songs: []model.Song{}}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return model.Catalog{}, err
		}
		if e.IsDir() || !isAudio(e.Name()) {
			continue
		}

		s, err := readSong(filepath.Join(dir, e.Name()), e.Name(), opts)
		if err != nil {
			onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Error processing %s: %v", e.Name(), err))
			continue
		}
		cat.Songs = append(cat.Songs, s)
		onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Processed %s", e.Name()))
	}

	model.SortByDateDesc(cat.Songs)
	onProgress.Emit(progress.LevelSuccess, fmt.Sprintf("Found %d songs", len(cat.Songs)))
	return cat, nil
}

// WriteCatalog writes cat to path in the repository JSON layout.
func WriteCatalog(ctx context.Context, path string, cat model.Catalog) error {
	data, err := model.MarshalDocument(cat)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := ioutils.EnsureDir(dir); err != nil {
			return err
		}
	}
	return ioutils.WriteFile(ctx, path, data)
}

func readSong(fullPath, name string, opts Options) (model.Song, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return model.Song{}, err
	}

	id := model.StableID(name)
	s := model.Song{
		ID:      id,
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		File:    path.Join(opts.MusicDir, name),
		Cover:   path.Join(opts.CoverDir, id+".jpg"),
		Date:    info.ModTime().Format(model.DateLayout),
		Size:    info.Size(),
		Genre:   model.UnknownGenre,
		AIModel: model.UnknownModel,
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return model.Song{}, err
	}
	defer f.Close()

	// Untagged files keep the defaults.
	m, err := tag.ReadFrom(f)
	if err != nil {
		return s, nil
	}
	if t := strings.TrimSpace(m.Title()); t != "" {
		s.Title = t
	}
	if g := strings.TrimSpace(m.Genre()); g != "" {
		s.Genre = g
	}
	if c := strings.TrimSpace(m.Comment()); c != "" {
		s.AIModel = c
	}
	return s, nil
}

func isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
