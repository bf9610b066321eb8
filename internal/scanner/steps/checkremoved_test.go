package steps

import (
	"os"
	"path/filepath"
	"testing"

	"lms/internal/scanner"
)

func TestRemovedBecauseMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.mp3")
	if !removedBecause(path, []string{dir}) {
		t.Fatal("expected a missing file to be treated as removed")
	}
}

func TestRemovedBecauseOutsideRoots(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	if !removedBecause(path, []string{other}) {
		t.Fatal("expected a path outside every root to be treated as removed")
	}
}

func TestRemovedBecauseInsideRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	os.WriteFile(path, []byte("x"), 0o644)

	if removedBecause(path, []string{dir}) {
		t.Fatal("did not expect a present, in-root file to be treated as removed")
	}
}

func TestRemovedBecauseLmsIgnoreAncestor(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "album")
	os.MkdirAll(sub, 0o755)
	path := filepath.Join(sub, "track.mp3")
	os.WriteFile(path, []byte("x"), 0o644)
	os.WriteFile(filepath.Join(sub, scanner.IgnoreMarkerFile), []byte(""), 0o644)

	if !removedBecause(path, []string{dir}) {
		t.Fatal("expected a file under a .lmsignore directory to be treated as removed")
	}
}

func TestRemovedBecauseNotRegularFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	os.MkdirAll(sub, 0o755)

	if !removedBecause(sub, []string{dir}) {
		t.Fatal("expected a directory passed as a track path to be treated as removed")
	}
}
