package steps

import (
	"context"
	"fmt"

	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// CheckForDuplicatedFiles groups tracks by content hash and by MusicBrainz track id
// (when present); every group larger than one contributes a Duplicate entry per
// non-first member. Hashes and MBIDs are compared exactly, no fuzzy matching.
type CheckForDuplicatedFiles struct{}

func (CheckForDuplicatedFiles) Kind() scanstats.Step { return scanstats.CheckForDuplicatedFiles }

func (CheckForDuplicatedFiles) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	hashGroups, err := session.GroupTracksByContentHash(ctx)
	if err != nil {
		return fmt.Errorf("steps: group by content hash: %w", err)
	}
	for _, g := range hashGroups {
		if sc.Cancelled() {
			return nil
		}
		for _, id := range g.TrackIDs[1:] {
			sc.Stats.AddDuplicate(scanstats.Duplicate{TrackID: id, Reason: scanstats.SameHash})
		}
	}

	mbidGroups, err := session.GroupTracksByMBTrackID(ctx)
	if err != nil {
		return fmt.Errorf("steps: group by mb track id: %w", err)
	}
	for _, g := range mbidGroups {
		if sc.Cancelled() {
			return nil
		}
		for _, id := range g.TrackIDs[1:] {
			sc.Stats.AddDuplicate(scanstats.Duplicate{TrackID: id, Reason: scanstats.SameTrackMBID})
		}
	}

	sc.PublishProgress(scanstats.CheckForDuplicatedFiles, len(hashGroups)+len(mbidGroups), len(hashGroups)+len(mbidGroups))
	return nil
}
