package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"lms/internal/artwork"
	"lms/internal/artwork/codec"
	"lms/internal/config"
	"lms/internal/database"
	"lms/internal/jobs"
	"lms/internal/recommendation"
	"lms/internal/scanner"
	"lms/internal/scanner/steps"
	"lms/internal/scanner/tagreader"
	"lms/internal/store"
	"lms/migrations"
)

// app holds every long-lived collaborator lmsd's subcommands wire together. Built
// once per process invocation; Close releases the database pool.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *database.DB
	store   *store.Store
	cache   *artwork.Cache
	artwork *artwork.Service
	engine  *recommendation.Engine
	scanner *scanner.Service
	jobs    *jobs.WorkerPool
}

func newApp(ctx context.Context) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("lmsd: load config: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("lmsd: connect database: %w", err)
	}

	if err := migrations.NewMigrator(db.Pool).Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("lmsd: run migrations: %w", err)
	}

	st := store.New(db)

	cache := artwork.NewCache(cfg.Artwork.MaxCacheSize, logger)
	artworkService := artwork.NewService(st, cache, codec.ImagingCodec{}, cfg.Artwork.MaxFileSize, cfg.Artwork.JPEGQuality)

	engine := recommendation.New(st, cfg.WorkingDir, recommendation.DefaultTrainSettings(), logger)

	perLibrary := scanner.NewPipeline(
		steps.ScanFiles{Reader: tagreader.DefaultReader{}, Hash: steps.XXHasher{}},
	)
	global := scanner.NewPipeline(
		steps.CheckForRemovedFiles{BatchSize: cfg.Scan.BatchSize},
		steps.RemoveOrphanedDbEntries{},
		steps.CheckForDuplicatedFiles{},
		steps.AssociateReleaseImages{Config: cfg.Artwork},
		steps.AssociateTrackImages{},
		steps.AssociateArtistImages{Config: cfg.Artwork},
		steps.NewAssociateExternalLyrics(),
		steps.AssociatePlayListTracks{},
		steps.ReconciliateArtists{},
		steps.FetchTrackFeatures{},
		steps.ComputeClusterStats{},
		steps.UpdateLibraryFields{},
		steps.RecreateViews{},
		steps.Compact{},
		steps.Optimize{},
		steps.ReloadSimilarityEngine{},
	)

	scannerService := scanner.NewService(st, cfg.Scan, perLibrary, global, artworkService, logger)
	scannerService.SetReloadFunc(engine.Load)

	workerPool := jobs.NewWorkerPool(cfg.Jobs.WorkerCount, db, logger)
	workerPool.RegisterHandler(jobs.JobTypeEngineRebuild, jobs.NewEngineRebuildHandler(engine, logger))
	workerPool.RegisterHandler(jobs.JobTypeCacheMaintenance, jobs.NewCacheMaintenanceHandler(cache, logger))

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   st,
		cache:   cache,
		artwork: artworkService,
		engine:  engine,
		scanner: scannerService,
		jobs:    workerPool,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
