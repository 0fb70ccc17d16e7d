package github

import (
	"encoding/base64"
	"strings"
)

// File is a repository file as returned by the contents API.
type File struct {
	Path string
	SHA  string

	// Content is the base64 payload exactly as the API returned it
	// (possibly wrapped across lines).
	Content string
}

// Bytes decodes the base64 content.
func (f *File) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(f.Content), ""))
}

// Entry is one item of a directory listing.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file", "dir", "symlink", "submodule"
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool {
	return e.Type == "file"
}

// CommitResult is the outcome of a create or update.
type CommitResult struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}
