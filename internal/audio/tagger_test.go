package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"

	"github.com/thegaspygames/canciones/internal/model"
)

func TestTagger_SaveTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte{0xff, 0xfb, 0x90, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	song := model.Song{Title: "Canción", Genre: "Lo-fi", AIModel: "Suno v3", Date: "2024-04-05"}
	artwork := []byte{0xff, 0xd8, 0xff, 0xd9}

	if err := NewTagger(nil).SaveTags(path, song, artwork); err != nil {
		t.Fatalf("SaveTags() error = %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()

	if got := tag.Title(); got != "Canción" {
		t.Errorf("Title = %q", got)
	}
	if got := tag.Genre(); got != "Lo-fi" {
		t.Errorf("Genre = %q", got)
	}
	if got := tag.GetTextFrame("TDRC").Text; got != "2024-04-05" {
		t.Errorf("TDRC = %q", got)
	}

	comments := tag.GetFrames(tag.CommonID("Comments"))
	if len(comments) != 1 {
		t.Fatalf("got %d comment frames, want 1", len(comments))
	}
	if cf, ok := comments[0].(id3v2.CommentFrame); !ok || cf.Text != "Suno v3" {
		t.Errorf("comment = %#v", comments[0])
	}

	pics := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pics) != 1 {
		t.Fatalf("got %d pictures, want 1", len(pics))
	}
}

func TestTagger_ModifyTagsOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultTagConfig()
	cfg.ModifyTags = false
	if err := NewTagger(cfg).SaveTags(path, model.Song{Title: "ignored"}, nil); err != nil {
		t.Fatal(err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()
	if tag.Title() != "" {
		t.Errorf("Title = %q, want empty", tag.Title())
	}
}
