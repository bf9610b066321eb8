package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pemistahl/lingua-go"

	"lms/internal/scanerrors"
	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// lyricsExtensions is probed in order; the first sibling found wins.
var lyricsExtensions = []string{".lrc", ".txt"}

// AssociateExternalLyrics looks for a same-basename .lrc or .txt file next to each
// track missing one, and tags the lyrics text with a detected language. Synced
// (.lrc) timing markers are left in the stored text untouched; lyrics display is an
// out-of-scope external concern, only association and language detection happen
// here.
type AssociateExternalLyrics struct {
	detector lingua.LanguageDetector
}

// NewAssociateExternalLyrics builds the language detector once; constructing it is
// expensive enough (loads per-language n-gram models) that it must not happen per file.
func NewAssociateExternalLyrics() AssociateExternalLyrics {
	return AssociateExternalLyrics{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build(),
	}
}

func (AssociateExternalLyrics) Kind() scanstats.Step { return scanstats.AssociateExternalLyrics }

func (s AssociateExternalLyrics) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	tracks, err := session.ListTrackPathsWithoutLyrics(ctx)
	if err != nil {
		return fmt.Errorf("steps: list tracks without lyrics: %w", err)
	}

	for i, t := range tracks {
		if sc.Cancelled() {
			return nil
		}

		path, ok := findLyricsSibling(t.Path)
		if !ok {
			sc.PublishProgress(scanstats.AssociateExternalLyrics, len(tracks), i+1)
			continue
		}

		text, err := os.ReadFile(path)
		if err != nil {
			sc.Stats.AddError(scanerrors.LyricsFile(path, err))
			sc.PublishProgress(scanstats.AssociateExternalLyrics, len(tracks), i+1)
			continue
		}

		language := ""
		if lang, ok := s.detector.DetectLanguageOf(stripLRCTimestamps(string(text))); ok {
			language = strings.ToLower(lang.IsoCode639_1().String())
		}

		if err := session.SetTrackLyrics(ctx, t.ID, path, language); err != nil {
			sc.Stats.AddError(scanerrors.LyricsFile(path, err))
		}
		sc.PublishProgress(scanstats.AssociateExternalLyrics, len(tracks), i+1)
	}
	return nil
}

// findLyricsSibling looks for <base>.lrc then <base>.txt next to trackPath.
func findLyricsSibling(trackPath string) (string, bool) {
	base := strings.TrimSuffix(trackPath, filepath.Ext(trackPath))
	for _, ext := range lyricsExtensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// stripLRCTimestamps removes leading [mm:ss.xx] markers before language detection, so
// an .lrc file's bracketed timing doesn't dilute the n-gram signal.
func stripLRCTimestamps(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for strings.HasPrefix(line, "[") {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				break
			}
			line = line[end+1:]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
