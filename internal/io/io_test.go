package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Canción: Parte 1/2", "Canción_ Parte 1_2"},
		{"Track...", "Track"},
		{"Name   with  spaces ", "Name with spaces"},
		{"  ", "untitled"},
		{"...", "untitled"},
		{"a\tb\nc", "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := strings.Repeat("ñ", 150)
	got := SanitizeFileName(long)
	if len(got) > maxNameByteSize || !strings.HasPrefix(long, got) {
		t.Errorf("long name not cut on a rune boundary: %d bytes", len(got))
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "songs.json")

	if err := WriteFile(context.Background(), path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(context.Background(), path, []byte("two")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := WriteFile(ctx, path, []byte("three")); err == nil {
		t.Error("WriteFile with cancelled context should fail")
	}
}

func TestSizeWithin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(path, make([]byte, 1000), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		expected int64
		want     bool
	}{
		{1000, true},
		{1040, true},
		{960, true},
		{1100, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := SizeWithin(path, tt.expected, 0.05); got != tt.want {
			t.Errorf("SizeWithin(%d) = %v, want %v", tt.expected, got, tt.want)
		}
	}
	if SizeWithin(path+".missing", 1000, 0.05) {
		t.Error("missing file should not match")
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageService_ResizeImage(t *testing.T) {
	svc := NewImageService()

	out, err := svc.ResizeImage(context.Background(), testPNG(t, 300, 200), 150, 150)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 150 || b.Dy() != 100 {
		t.Errorf("size = %dx%d, want 150x100", b.Dx(), b.Dy())
	}
}

func TestImageService_PrepareCover(t *testing.T) {
	svc := NewImageService()
	src := testPNG(t, 40, 40)

	same, err := svc.PrepareCover(context.Background(), src, 1000, false, false)
	if err != nil || !bytes.Equal(same, src) {
		t.Error("PrepareCover without options should return the input")
	}

	converted, err := svc.PrepareCover(context.Background(), src, 0, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(converted)); err != nil {
		t.Errorf("converted cover is not JPEG: %v", err)
	}

	if _, err := svc.PrepareCover(context.Background(), []byte("not an image"), 100, true, true); err == nil {
		t.Error("PrepareCover should fail on undecodable data")
	}
}
