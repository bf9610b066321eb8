// Package scanner implements the media scanner pipeline: a ScannerService that
// schedules and drives an ordered ScanStep pipeline over one MediaLibrary root at a
// time, publishing progress and errors to observers.
package scanner

import (
	"context"
	"sync/atomic"

	"lms/internal/config"
	"lms/internal/models"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// IgnoreMarkerFile, if present in a directory, excludes that directory and all its
// descendants from ScanFiles.
const IgnoreMarkerFile = ".lmsignore"

// ScanContext lives only for the duration of one scan run. The pipeline exclusively
// owns it; steps mutate it sequentially, never concurrently.
type ScanContext struct {
	Library   models.MediaLibrary
	ForceScan bool

	Stats *scanstats.ScanStats

	Store  *store.Store
	Config config.ScanConfig

	// Cancel is checked by every step at its declared checkpoints (before each file,
	// each batch commit, each orphan-sweep sub-iteration).
	Cancel *atomic.Bool

	// OnProgress is invoked at least every ProgressStride processed elements within a
	// step.
	OnProgress func(scanstats.StepStats)

	// ReloadEngine is wired by ScannerService to recommendation.Engine.Load, kept as a
	// plain func so this package never imports the recommendation engine directly.
	ReloadEngine func(ctx context.Context, forceReload bool) error

	stepIndex int
	stepCount int
}

// Cancelled reports whether the shared abort flag has been set.
func (c *ScanContext) Cancelled() bool {
	return c.Cancel.Load()
}

// PublishProgress builds and emits one StepStats snapshot for the current step. Steps
// call this at least every ProgressStride processed elements.
func (c *ScanContext) PublishProgress(step scanstats.Step, total, processed int) {
	if c.OnProgress == nil {
		return
	}
	c.OnProgress(scanstats.StepStats{
		StartTime:      c.Stats.StartTime,
		StepCount:      c.stepCount,
		StepIndex:      c.stepIndex,
		CurrentStep:    step,
		TotalElems:     total,
		ProcessedElems: processed,
	})
}
