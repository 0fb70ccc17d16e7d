// Package assets maps repository-relative paths to fetchable URLs.
package assets

import (
	"net/url"
	"strings"
)

// DefaultRawBaseURL serves raw file contents for GitHub repositories.
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// Resolver builds raw-content URLs for one repository branch.
type Resolver struct {
	RawBaseURL string
	Owner      string
	Repo       string
	Branch     string
}

// NewResolver creates a Resolver for owner/repo@branch using the default
// raw-content host.
func NewResolver(owner, repo, branch string) *Resolver {
	return &Resolver{
		RawBaseURL: DefaultRawBaseURL,
		Owner:      owner,
		Repo:       repo,
		Branch:     branch,
	}
}

// Resolve returns a URL for path.
//
//   - an empty path resolves to fallback
//   - an absolute http(s) URL is returned unchanged
//   - anything else is a slash-separated repository path; every segment is
//     percent-encoded on its own so separators survive
//
// Example:
//
//	r := NewResolver("thegaspygames", "canciones", "main")
//	r.Resolve("music/song one.mp3", "")
//	// https://raw.githubusercontent.com/thegaspygames/canciones/main/music/song%20one.mp3
func (r *Resolver) Resolve(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return fallback
	}
	if IsAbsoluteURL(path) {
		return path
	}

	base := strings.TrimSuffix(r.RawBaseURL, "/")
	if base == "" {
		base = DefaultRawBaseURL
	}

	var b strings.Builder
	b.WriteString(base)
	for _, seg := range []string{r.Owner, r.Repo, r.Branch} {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

// IsAbsoluteURL reports whether s starts with an http or https scheme.
func IsAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
