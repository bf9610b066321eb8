package steps

import (
	"context"

	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// FetchTrackFeatures is a no-op and writes no TrackFeatures rows: no acoustic
// analyzer is part of this system, and TrackFeatures is data the recommendation
// engine trains on, not data the scanner derives. It stays in the step enum as a
// documented no-op so a future external feature-extraction service has a slot to
// plug into without changing the pipeline's step ordering.
type FetchTrackFeatures struct{}

func (FetchTrackFeatures) Kind() scanstats.Step { return scanstats.FetchTrackFeatures }

func (FetchTrackFeatures) Process(ctx context.Context, sc *scanner.ScanContext) error {
	sc.PublishProgress(scanstats.FetchTrackFeatures, 1, 1)
	return nil
}
