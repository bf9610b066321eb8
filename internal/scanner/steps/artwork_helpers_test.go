package steps

import (
	"os"
	"path/filepath"
	"testing"

	"lms/internal/config"
)

func TestFindArtworkFilePrefersConfiguredName(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "back.jpg"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644)

	cfg := config.ArtworkConfig{MaxFileSize: 1024, PreferredFileNames: []string{"cover", "front"}}
	path, ok := findArtworkFile(dir, cfg)
	if !ok {
		t.Fatal("expected a match")
	}
	if filepath.Base(path) != "cover.jpg" {
		t.Fatalf("got %q, want cover.jpg", filepath.Base(path))
	}
}

func TestFindArtworkFileRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("0123456789"), 0o644)

	cfg := config.ArtworkConfig{MaxFileSize: 5, PreferredFileNames: []string{"cover"}}
	if _, ok := findArtworkFile(dir, cfg); ok {
		t.Fatal("expected oversized file to be rejected")
	}
}

func TestFindArtworkFileIgnoresUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	cfg := config.ArtworkConfig{MaxFileSize: 1024}
	if _, ok := findArtworkFile(dir, cfg); ok {
		t.Fatal("expected .txt to be ignored")
	}
}

func TestFindArtworkFileNoMatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ArtworkConfig{MaxFileSize: 1024}
	if _, ok := findArtworkFile(dir, cfg); ok {
		t.Fatal("expected no match in an empty directory")
	}
}
