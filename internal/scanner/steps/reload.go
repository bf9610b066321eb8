package steps

import (
	"context"
	"fmt"

	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// ReloadSimilarityEngine force-reloads the recommendation engine iff the scan
// changed anything; otherwise the engine's existing cache is still valid and
// retraining would waste a full pass over track features.
type ReloadSimilarityEngine struct{}

func (ReloadSimilarityEngine) Kind() scanstats.Step { return scanstats.ReloadSimilarityEngine }

func (ReloadSimilarityEngine) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if !sc.Stats.Changed() {
		sc.PublishProgress(scanstats.ReloadSimilarityEngine, 1, 1)
		return nil
	}
	if sc.ReloadEngine == nil {
		return nil
	}
	if err := sc.ReloadEngine(ctx, true); err != nil {
		return fmt.Errorf("steps: reload similarity engine: %w", err)
	}
	sc.PublishProgress(scanstats.ReloadSimilarityEngine, 1, 1)
	return nil
}
