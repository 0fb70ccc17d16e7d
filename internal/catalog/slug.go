package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackSlug names uploads whose title has no usable characters.
const FallbackSlug = "cancion"

// Slugify lower-cases s, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single dash.
//
//	Slugify("Canción de Otoño!") // "cancion-de-otono"
//	Slugify("  ")                // ""
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BaseName returns the slug of title, or FallbackSlug, suffixed with the
// given unix millisecond timestamp.
func BaseName(title string, millis int64) string {
	slug := Slugify(title)
	if slug == "" {
		slug = FallbackSlug
	}
	return slug + "-" + formatInt(millis)
}
