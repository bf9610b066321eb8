package steps

import (
	"context"
	"fmt"

	"lms/internal/scanner"
	"lms/internal/scanstats"
)

// ComputeClusterStats recomputes each Cluster's cached track count. Idempotent:
// rerunning it against an unchanged catalog is a no-op.
type ComputeClusterStats struct{}

func (ComputeClusterStats) Kind() scanstats.Step { return scanstats.ComputeClusterStats }

func (ComputeClusterStats) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if err := sc.Store.Read().RecomputeClusterTrackCounts(ctx); err != nil {
		return fmt.Errorf("steps: compute cluster stats: %w", err)
	}
	sc.PublishProgress(scanstats.ComputeClusterStats, 1, 1)
	return nil
}

// UpdateLibraryFields recomputes each MediaLibrary's cached track count.
type UpdateLibraryFields struct{}

func (UpdateLibraryFields) Kind() scanstats.Step { return scanstats.UpdateLibraryFields }

func (UpdateLibraryFields) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if err := sc.Store.Read().RecomputeLibraryTrackCounts(ctx); err != nil {
		return fmt.Errorf("steps: update library fields: %w", err)
	}
	sc.PublishProgress(scanstats.UpdateLibraryFields, 1, 1)
	return nil
}

// RecreateViews refreshes the catalog's materialized views.
type RecreateViews struct{}

func (RecreateViews) Kind() scanstats.Step { return scanstats.RecreateViews }

func (RecreateViews) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if err := sc.Store.Read().RefreshCatalogViews(ctx); err != nil {
		return fmt.Errorf("steps: recreate views: %w", err)
	}
	sc.PublishProgress(scanstats.RecreateViews, 1, 1)
	return nil
}

// Compact reclaims dead tuple space. Runs against a pool-bound Session rather than
// a transaction: Postgres refuses VACUUM inside one.
type Compact struct{}

func (Compact) Kind() scanstats.Step { return scanstats.Compact }

func (Compact) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if err := sc.Store.Read().Compact(ctx); err != nil {
		return fmt.Errorf("steps: compact: %w", err)
	}
	sc.PublishProgress(scanstats.Compact, 1, 1)
	return nil
}

// Optimize rebuilds catalog indexes. Like Compact, runs outside a transaction.
type Optimize struct{}

func (Optimize) Kind() scanstats.Step { return scanstats.Optimize }

func (Optimize) Process(ctx context.Context, sc *scanner.ScanContext) error {
	if err := sc.Store.Read().Optimize(ctx); err != nil {
		return fmt.Errorf("steps: optimize: %w", err)
	}
	sc.PublishProgress(scanstats.Optimize, 1, 1)
	return nil
}
