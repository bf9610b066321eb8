package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"lms/internal/artwork"
)

// EngineReloader is the one recommendation.Engine method this package needs;
// kept narrow so jobs doesn't otherwise depend on the engine's internals.
type EngineReloader interface {
	Load(ctx context.Context, forceReload bool) error
}

// EngineRebuildHandler runs a recommendation engine reload outside the scan's
// own synchronous reload step (steps.ReloadSimilarityEngine), for a rebuild requested
// through the API's rebuild endpoint, so the HTTP request doesn't block on it.
type EngineRebuildHandler struct {
	engine EngineReloader
	logger *slog.Logger
}

func NewEngineRebuildHandler(engine EngineReloader, logger *slog.Logger) *EngineRebuildHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineRebuildHandler{engine: engine, logger: logger}
}

func (h *EngineRebuildHandler) Handle(ctx context.Context, job *Job) error {
	payload, ok := job.PayloadData.(EngineRebuildPayload)
	if !ok {
		return fmt.Errorf("jobs: unexpected payload type for engine rebuild job")
	}

	h.logger.Info("rebuilding recommendation engine", "force", payload.Force)
	if err := h.engine.Load(ctx, payload.Force); err != nil {
		return fmt.Errorf("jobs: engine rebuild: %w", err)
	}
	h.logger.Info("recommendation engine rebuilt")
	return nil
}

// CacheMaintenanceHandler logs the artwork cache's current size and hit/miss
// accounting without flushing anything (a scan's own ScanComplete already flushes
// on catalog change; this is observability, not eviction).
type CacheMaintenanceHandler struct {
	cache  *artwork.Cache
	logger *slog.Logger
}

func NewCacheMaintenanceHandler(cache *artwork.Cache, logger *slog.Logger) *CacheMaintenanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheMaintenanceHandler{cache: cache, logger: logger}
}

func (h *CacheMaintenanceHandler) Handle(ctx context.Context, job *Job) error {
	h.logger.Info("artwork cache stats",
		"size_bytes", h.cache.CurrentSize(),
		"hits", h.cache.Hits(),
		"misses", h.cache.Misses(),
	)
	return nil
}
