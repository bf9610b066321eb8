package steps

import (
	"context"
	"fmt"

	"lms/internal/scanner"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// RemoveOrphanedDbEntries sweeps clusters, artists, releases, and artworks
// referenced by no track (in that dependency order), each in its own transaction.
type RemoveOrphanedDbEntries struct{}

func (RemoveOrphanedDbEntries) Kind() scanstats.Step { return scanstats.RemoveOrphanedDbEntries }

func (RemoveOrphanedDbEntries) Process(ctx context.Context, sc *scanner.ScanContext) error {
	sweeps := []struct {
		name string
		run  func(*store.Session) (int64, error)
	}{
		{"clusters", func(s *store.Session) (int64, error) { return s.DeleteOrphanClusters(ctx) }},
		{"artists", func(s *store.Session) (int64, error) { return s.DeleteOrphanArtists(ctx) }},
		{"releases", func(s *store.Session) (int64, error) { return s.DeleteOrphanReleases(ctx) }},
		{"artworks", func(s *store.Session) (int64, error) { return s.DeleteOrphanArtworks(ctx) }},
	}

	for i, sweep := range sweeps {
		if sc.Cancelled() {
			return nil
		}
		err := sc.Store.WithTransaction(ctx, func(session *store.Session) error {
			_, err := sweep.run(session)
			return err
		})
		if err != nil {
			return fmt.Errorf("steps: remove orphaned %s: %w", sweep.name, err)
		}
		sc.PublishProgress(scanstats.RemoveOrphanedDbEntries, len(sweeps), i+1)
	}
	return nil
}
