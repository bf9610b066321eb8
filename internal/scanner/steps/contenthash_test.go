package steps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestXXHasherDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.flac")
	if err := os.WriteFile(path, []byte("some audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := XXHasher{}
	a, err := h.Hash(path)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash(path)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a != b {
		t.Fatal("hashing the same file twice produced different digests")
	}
}

func TestXXHasherDiffersOnContent(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.flac")
	p2 := filepath.Join(dir, "b.flac")
	os.WriteFile(p1, []byte("content one"), 0o644)
	os.WriteFile(p2, []byte("content two"), 0o644)

	h := XXHasher{}
	a, err := h.Hash(p1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash(p2)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("different file contents hashed to the same digest")
	}
}

func TestXXHasherMissingFile(t *testing.T) {
	h := XXHasher{}
	if _, err := h.Hash(filepath.Join(t.TempDir(), "missing.flac")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
