package steps

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"lms/internal/models"
	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// ReconciliateArtists merges artist rows that share a MusicBrainz id but whose names
// differ only by Unicode normalization (accents, case, compatibility forms), e.g.
// "Björk" scanned from one file's tags and "BJORK" from another's, both resolving to
// the same mbArtistId.
type ReconciliateArtists struct{}

func (ReconciliateArtists) Kind() scanstats.Step { return scanstats.ReconciliateArtists }

func (ReconciliateArtists) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	artists, err := session.ListArtistsWithMBID(ctx)
	if err != nil {
		return fmt.Errorf("steps: list artists with mbid: %w", err)
	}

	byMBID := make(map[string][]int)
	for i, a := range artists {
		byMBID[a.MBArtistID] = append(byMBID[a.MBArtistID], i)
	}

	total := 0
	processed := 0
	for _, idxs := range byMBID {
		if len(idxs) > 1 {
			total++
		}
	}

	for _, idxs := range byMBID {
		if len(idxs) < 2 {
			continue
		}
		if sc.Cancelled() {
			return nil
		}

		// Within one mbArtistId, only merge the rows whose names agree once
		// normalized: a shared id with wildly different names is more likely a
		// tagging mistake than the same artist.
		byNormalizedName := make(map[string][]int)
		for _, i := range idxs {
			key := normalizeArtistName(artists[i].Name)
			byNormalizedName[key] = append(byNormalizedName[key], i)
		}

		for _, nameIdxs := range byNormalizedName {
			if len(nameIdxs) < 2 {
				continue
			}
			canonical := artists[nameIdxs[0]].ID
			var duplicates []models.ArtistID
			for _, i := range nameIdxs[1:] {
				duplicates = append(duplicates, artists[i].ID)
			}
			if err := session.MergeArtists(ctx, canonical, duplicates); err != nil {
				return fmt.Errorf("steps: merge artists for mbid %q: %w", artists[idxs[0]].MBArtistID, err)
			}
		}
		processed++
		sc.PublishProgress(scanstats.ReconciliateArtists, total, processed)
	}

	return nil
}

// normalizeArtistName folds case and collapses compatibility/combining-mark forms, so
// "Björk" and "bjork" compare equal regardless of which accent representation or case
// a tag reader produced.
func normalizeArtistName(name string) string {
	folded := cases.Fold().String(name)
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFKD.String(folded))
}
