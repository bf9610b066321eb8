package steps

import "testing"

func TestNormalizeArtistNameCaseInsensitive(t *testing.T) {
	if normalizeArtistName("Björk") != normalizeArtistName("BJÖRK") {
		t.Fatal("expected case to be folded")
	}
}

func TestNormalizeArtistNameDistinctNames(t *testing.T) {
	if normalizeArtistName("Sigur Rós") == normalizeArtistName("Air") {
		t.Fatal("distinct artist names normalized to the same key")
	}
}
