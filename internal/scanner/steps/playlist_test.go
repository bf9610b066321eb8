package steps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePLS(t *testing.T) {
	content := "[playlist]\n" +
		"NumberOfEntries=2\n" +
		"File1=track1.mp3\n" +
		"Title1=Track One\n" +
		"Length1=180\n" +
		"File2=/abs/path/track2.mp3\n" +
		"Title2=Track Two\n" +
		"Length2=200\n" +
		"Version=2\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "list.pls")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	entries, err := parsePLS(f)
	if err != nil {
		t.Fatalf("parsePLS: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0] != "track1.mp3" {
		t.Fatalf("entries[0] = %q", entries[0])
	}
	if entries[1] != "/abs/path/track2.mp3" {
		t.Fatalf("entries[1] = %q", entries[1])
	}
}

func TestParsePLSIgnoresNonFileKeys(t *testing.T) {
	content := "[playlist]\nNumberOfEntries=0\nVersion=2\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pls")
	os.WriteFile(path, []byte(content), 0o644)
	fh, _ := os.Open(path)
	defer fh.Close()

	entries, err := parsePLS(fh)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}
