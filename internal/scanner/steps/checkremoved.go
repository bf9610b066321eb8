package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lms/internal/models"
	"lms/internal/scanner"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// CheckForRemovedFiles drops any Track whose file no longer exists, is no longer a
// regular file, or no longer lies under any configured MediaLibrary root. Unlike
// ScanFiles, this runs once per scan across the whole catalog, not per library,
// since a file may have been removed from one library while the Track row still
// references it.
type CheckForRemovedFiles struct {
	BatchSize int
}

func (CheckForRemovedFiles) Kind() scanstats.Step { return scanstats.CheckForRemovedFiles }

func (s CheckForRemovedFiles) Process(ctx context.Context, sc *scanner.ScanContext) error {
	libs, err := sc.Store.Read().ListMediaLibraries(ctx)
	if err != nil {
		return fmt.Errorf("steps: list media libraries: %w", err)
	}
	roots := make([]string, len(libs))
	for i, l := range libs {
		roots[i] = filepath.Clean(l.RootPath)
	}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 50
	}

	processed := 0
	var lastID models.TrackID
	for {
		if sc.Cancelled() {
			return nil
		}

		var pageLen int
		err := sc.Store.WithTransaction(ctx, func(session *store.Session) error {
			page, err := session.ListTrackPathsBatch(ctx, lastID, batch)
			if err != nil {
				return err
			}
			pageLen = len(page)
			for _, p := range page {
				if p.ID > lastID {
					lastID = p.ID
				}
				if sc.Cancelled() {
					return nil
				}
				if removedBecause(p.Path, roots) {
					if err := session.DeleteTrack(ctx, p.ID); err != nil {
						return err
					}
					sc.Stats.Deletions++
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("steps: check removed files batch: %w", err)
		}

		processed += pageLen
		sc.PublishProgress(scanstats.CheckForRemovedFiles, 0, processed)

		if pageLen < batch {
			break
		}
	}
	return nil
}

// removedBecause reports whether path should be treated as removed: missing, not a
// regular file, or no longer inside any library root after lexical normalization and
// .lmsignore filtering.
func removedBecause(path string, roots []string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return true
	}

	clean := filepath.Clean(path)
	inRoot := false
	for _, root := range roots {
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			inRoot = true
			break
		}
	}
	if !inRoot {
		return true
	}

	dir := filepath.Dir(clean)
	for {
		if _, err := os.Stat(filepath.Join(dir, scanner.IgnoreMarkerFile)); err == nil {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}
