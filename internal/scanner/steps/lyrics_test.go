package steps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindLyricsSiblingPrefersLRC(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "song.mp3")
	os.WriteFile(filepath.Join(dir, "song.lrc"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "song.txt"), []byte("x"), 0o644)

	path, ok := findLyricsSibling(track)
	if !ok {
		t.Fatal("expected a match")
	}
	if filepath.Ext(path) != ".lrc" {
		t.Fatalf("got %q, want .lrc to be preferred", path)
	}
}

func TestFindLyricsSiblingFallsBackToTxt(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "song.mp3")
	os.WriteFile(filepath.Join(dir, "song.txt"), []byte("x"), 0o644)

	path, ok := findLyricsSibling(track)
	if !ok {
		t.Fatal("expected a match")
	}
	if filepath.Ext(path) != ".txt" {
		t.Fatalf("got %q, want .txt", path)
	}
}

func TestFindLyricsSiblingNone(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "song.mp3")
	if _, ok := findLyricsSibling(track); ok {
		t.Fatal("expected no match")
	}
}

func TestStripLRCTimestamps(t *testing.T) {
	in := "[00:12.34][00:12.50]Hello there\n[00:15.00]Second line\nplain line\n"
	out := stripLRCTimestamps(in)
	if strings.Contains(out, "[") {
		t.Fatalf("expected no bracket markers left, got %q", out)
	}
	if !strings.Contains(out, "Hello there") || !strings.Contains(out, "Second line") || !strings.Contains(out, "plain line") {
		t.Fatalf("expected text content preserved, got %q", out)
	}
}
