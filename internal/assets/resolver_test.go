package assets

import (
	"net/url"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver("thegaspygames", "canciones", "main")
	const prefix = "https://raw.githubusercontent.com/thegaspygames/canciones/main/"

	tests := []struct {
		name     string
		path     string
		fallback string
		want     string
	}{
		{"empty returns fallback", "", "assets/default-cover.png", "assets/default-cover.png"},
		{"blank returns fallback", "  ", "fb", "fb"},
		{"absolute https", "https://cdn.example/a b.mp3", "", "https://cdn.example/a b.mp3"},
		{"absolute http upper-case", "HTTP://cdn.example/x", "", "HTTP://cdn.example/x"},
		{"space is escaped per segment", "music/song one.mp3", "", prefix + "music/song%20one.mp3"},
		{"unicode and reserved chars", "music/canción #1?.mp3", "", prefix + "music/canci%C3%B3n%20%231%3F.mp3"},
		{"leading slash and dot", "/./assets/covers/x.png", "", prefix + "assets/covers/x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.path, tt.fallback); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveProducesValidURL(t *testing.T) {
	r := NewResolver("o", "r", "main")
	got := r.Resolve("music/song one.mp3", "")

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", got, err)
	}
	if u.Path != "/o/r/main/music/song one.mp3" {
		t.Errorf("decoded path = %q", u.Path)
	}
}

func TestResolver_CustomBase(t *testing.T) {
	r := &Resolver{RawBaseURL: "http://127.0.0.1:8080/", Owner: "o", Repo: "r", Branch: "dev"}
	if got, want := r.Resolve("a/b.json", ""), "http://127.0.0.1:8080/o/r/dev/a/b.json"; got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
