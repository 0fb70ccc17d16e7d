package model

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultCover is the repository path of the placeholder cover art.
	DefaultCover = "assets/default-cover.png"

	// UnknownGenre is stored when a song carries no genre.
	UnknownGenre = "Sin género"

	// UnknownModel is stored when a song carries no AI model label.
	UnknownModel = "IA"

	// DateLayout is the calendar date format used for Song.Date.
	DateLayout = "2006-01-02"
)

// Song is the unit of catalog data.
//
// The same shape is stored in the index file, in the denormalized manifest
// and, one per file, in the metadata directory. Paths in File and Cover are
// repository-relative in stored records and absolute URLs once a record has
// been through Normalize.
//
// Example record:
//
//	{
//	  "id": "0b6a4c1e-...",
//	  "title": "Noche de Lluvia",
//	  "file": "music/noche-de-lluvia-1712345678901.mp3",
//	  "cover": "assets/covers/noche-de-lluvia-1712345678901.png",
//	  "date": "2024-04-05",
//	  "size": 4812331,
//	  "genre": "Lo-fi",
//	  "aiModel": "Suno v3",
//	  "downloadName": "Noche de Lluvia.mp3",
//	  "metadataPath": "music-metadata/noche-de-lluvia-1712345678901.json"
//	}
type Song struct {
	// ID is unique within a catalog.
	ID string `json:"id"`

	// Title is the display name.
	Title string `json:"title"`

	// File is the path or URL of the audio asset. Records with an empty
	// File are never part of an aggregated catalog.
	File string `json:"file"`

	// Cover is the path or URL of the cover art.
	Cover string `json:"cover,omitempty"`

	// Date is the publication date in DateLayout form.
	Date string `json:"date,omitempty"`

	// Size is the byte length of the audio asset, zero when unknown.
	Size int64 `json:"size,omitempty"`

	Genre   string `json:"genre,omitempty"`
	AIModel string `json:"aiModel,omitempty"`

	// DownloadName is the suggested local file name for the audio asset.
	DownloadName string `json:"downloadName,omitempty"`

	// MetadataPath is the repository path of the record's own metadata file.
	MetadataPath string `json:"metadataPath,omitempty"`
}

// Resolver turns a repository-relative path into a fetchable URL.
type Resolver interface {
	Resolve(path, fallback string) string
}

// Normalize validates a stored record and resolves its asset paths.
//
// The second return value is false when the record has no usable File and
// must be dropped. Missing optional fields are filled in:
//   - Cover falls back to the resolved DefaultCover
//   - Genre and AIModel fall back to UnknownGenre and UnknownModel
//   - Title falls back to the file name without extension
//   - ID falls back to StableID(File)
//   - DownloadName falls back to the base name of File
func Normalize(s Song, r Resolver) (Song, bool) {
	file := strings.TrimSpace(s.File)
	if file == "" {
		return Song{}, false
	}
	resolved := r.Resolve(file, "")
	if resolved == "" {
		return Song{}, false
	}

	base := baseName(file)

	out := s
	out.File = resolved
	out.Cover = r.Resolve(strings.TrimSpace(s.Cover), r.Resolve(DefaultCover, DefaultCover))
	if strings.TrimSpace(out.Title) == "" {
		out.Title = strings.TrimSuffix(base, path.Ext(base))
	}
	if strings.TrimSpace(out.ID) == "" {
		out.ID = StableID(file)
	}
	if strings.TrimSpace(out.Genre) == "" {
		out.Genre = UnknownGenre
	}
	if strings.TrimSpace(out.AIModel) == "" {
		out.AIModel = UnknownModel
	}
	if strings.TrimSpace(out.DownloadName) == "" {
		out.DownloadName = base
	}
	return out, true
}

// StableID derives a short deterministic identifier from a name: the first
// eight hex characters of its MD5 digest.
func StableID(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])[:8]
}

// ParsedDate returns the song date, or the zero time if it is missing or
// not a recognizable date.
func (s Song) ParsedDate() time.Time {
	d := strings.TrimSpace(s.Date)
	if d == "" {
		return time.Time{}
	}
	for _, layout := range []string{DateLayout, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, d); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SortByDateDesc stable-sorts songs newest first. Songs without a valid
// date sort after every dated song.
func SortByDateDesc(songs []Song) {
	sort.SliceStable(songs, func(i, j int) bool {
		return songs[i].ParsedDate().After(songs[j].ParsedDate())
	})
}

// Collides reports whether two records refer to the same song, by File or
// by a non-empty ID.
func (s Song) Collides(other Song) bool {
	if s.File != "" && s.File == other.File {
		return true
	}
	return s.ID != "" && s.ID == other.ID
}

// Upsert removes every record colliding with s and prepends s. The rest of
// the order is preserved, so the result is newest-first by insertion rather
// than re-sorted.
func Upsert(songs []Song, s Song) []Song {
	out := make([]Song, 0, len(songs)+1)
	out = append(out, s)
	for _, existing := range songs {
		if existing.Collides(s) {
			continue
		}
		out = append(out, existing)
	}
	return out
}

func baseName(file string) string {
	p := file
	if u, err := url.Parse(file); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}
