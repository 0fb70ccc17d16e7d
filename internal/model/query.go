package model

import (
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// All matches every genre or model in a Query.
const All = "all"

// DefaultPerPage is the gallery page size.
const DefaultPerPage = 24

// Query selects songs from a catalog. Empty Genre or Model behave like All.
type Query struct {
	Search string
	Genre  string
	Model  string
}

// Matches reports whether s satisfies the query. Search is a
// case-insensitive substring match on the title; Genre and Model are exact.
func (q Query) Matches(s Song) bool {
	if q.Search != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(q.Search)) {
		return false
	}
	if q.Genre != "" && q.Genre != All && s.Genre != q.Genre {
		return false
	}
	if q.Model != "" && q.Model != All && s.AIModel != q.Model {
		return false
	}
	return true
}

// Filter returns the songs matching q, preserving order.
func Filter(songs []Song, q Query) []Song {
	out := make([]Song, 0, len(songs))
	for _, s := range songs {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Page is one slice of a filtered catalog.
type Page struct {
	Songs  []Song
	Number int // 1-based
	Total  int // number of pages, 0 for an empty catalog
	Count  int // number of songs across all pages
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Number < p.Total }

// Paginate returns page number (1-based) of songs. The page number is
// clamped into [1, total pages].
func Paginate(songs []Song, number, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := (len(songs) + perPage - 1) / perPage
	if number > total {
		number = total
	}
	if number < 1 {
		number = 1
	}

	start := (number - 1) * perPage
	end := min(start+perPage, len(songs))
	if start > end {
		start = end
	}

	return Page{
		Songs:  songs[start:end],
		Number: number,
		Total:  total,
		Count:  len(songs),
	}
}

// Genres returns the distinct genres in songs, sorted.
func Genres(songs []Song) []string {
	return distinct(songs, func(s Song) string { return s.Genre })
}

// Models returns the distinct AI model labels in songs, sorted.
func Models(songs []Song) []string {
	return distinct(songs, func(s Song) string { return s.AIModel })
}

func distinct(songs []Song, key func(Song) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range songs {
		k := key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FormatSize renders a byte count for display, e.g. "4.6 MiB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
