package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"lms/internal/config"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// ArtworkFlusher is the one method ScannerService needs from internal/artwork's
// Service, kept as a narrow interface so this package doesn't import artwork
// directly.
type ArtworkFlusher interface {
	ScanComplete(changed bool)
}

// Service is the state machine driving the catalog scanner: NotScheduled /
// Scheduled / InProgress, driven by a periodic timer, an immediate-scan request
// channel (coalesced so a burst of requests runs at most one extra scan), a reload
// request channel, and optional filesystem watches. It is parameterized over every
// configured MediaLibrary and the store/config it needs to run a Pipeline.
type Service struct {
	store    *store.Store
	cfg      config.ScanConfig
	pipeline *Pipeline // runs once per MediaLibrary: discovery through per-library ScanFiles
	globals  *Pipeline // runs once per scan, catalog-wide: CheckForRemovedFiles onward
	artwork  ArtworkFlusher
	onReload func(ctx context.Context, forceReload bool) error
	logger   *slog.Logger

	bus *eventBus

	mu                sync.Mutex
	state             State
	nextScheduledScan *time.Time
	lastStats         *scanstats.ScanStats
	currentStep       *scanstats.StepStats
	cancel            *atomic.Bool

	requestCh chan scanRequest
	reloadCh  chan struct{}
}

type scanRequest struct {
	force bool
}

// NewService wires a Pipeline run once per configured MediaLibrary (discovery
// through per-library ScanFiles) and a second Pipeline of catalog-wide steps run once
// after all libraries finish (orphan removal through engine reload): only ScanFiles
// is meaningfully per-library, everything from CheckForRemovedFiles onward already
// operates across the whole catalog.
func NewService(st *store.Store, cfg config.ScanConfig, perLibrary *Pipeline, global *Pipeline, artwork ArtworkFlusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		cfg:       cfg,
		pipeline:  perLibrary,
		globals:   global,
		artwork:   artwork,
		logger:    logger,
		bus:       newEventBus(logger),
		requestCh: make(chan scanRequest, 1),
		reloadCh:  make(chan struct{}, 1),
	}
}

func (s *Service) Subscribe(l Listener) {
	s.bus.Subscribe(l)
}

// SetReloadFunc wires the recommendation engine's Load method in, avoiding an import
// cycle between internal/scanner and internal/recommendation (recommendation already
// depends on internal/store, and scanner would otherwise need to depend on
// recommendation just for this one call).
func (s *Service) SetReloadFunc(fn func(ctx context.Context, forceReload bool) error) {
	s.onReload = fn
}

// Run starts the scheduling loop; it blocks until ctx is cancelled. Call it from its
// own goroutine.
func (s *Service) Run(ctx context.Context) {
	watcher, err := s.startWatch()
	if err != nil {
		s.logger.Warn("scanner: filesystem watch disabled", "error", err)
	}
	defer func() {
		if watcher != nil {
			watcher.Close()
		}
	}()

	timer := time.NewTimer(s.scheduleNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			s.runScan(ctx, false)
			timer.Reset(s.scheduleNext())

		case req := <-s.requestCh:
			s.runScan(ctx, req.force)
			timer.Reset(s.scheduleNext())

		case <-s.reloadCh:
			s.RequestStop()
			if watcher != nil {
				watcher.Close()
				watcher = nil
			}
			if w, err := s.startWatch(); err != nil {
				s.logger.Warn("scanner: filesystem watch disabled", "error", err)
			} else {
				watcher = w
			}
			timer.Reset(s.scheduleNext())

		case event, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.RequestImmediateScan(false)
			}
		}
	}
}

func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

func (s *Service) startWatch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	libs, err := s.store.Read().ListMediaLibraries(context.Background())
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, lib := range libs {
		if err := w.Add(lib.RootPath); err != nil {
			s.logger.Warn("scanner: watch add failed", "path", lib.RootPath, "error", err)
		}
	}
	return w, nil
}

// scheduleNext computes and publishes the next scheduled run, returning how long the
// service's timer should sleep before waking to check again.
func (s *Service) scheduleNext() time.Duration {
	next, ok := nextRun(s.cfg.UpdatePeriod, s.cfg.UpdateStartTime, time.Now())
	s.mu.Lock()
	if ok {
		s.nextScheduledScan = &next
		s.state = Scheduled
	} else {
		s.nextScheduledScan = nil
		if s.state != InProgress {
			s.state = NotScheduled
		}
	}
	s.mu.Unlock()

	if !ok {
		// Never: still wake periodically so RequestImmediateScan's timer.Reset calls
		// don't pile up indefinitely and a later config reload is picked up.
		return time.Hour
	}
	s.bus.scheduled(next)
	if d := time.Until(next); d > 0 {
		return d
	}
	return time.Minute
}

// RequestImmediateScan coalesces bursts of requests: if one is already pending, a
// second non-forced call before it's drained is simply dropped; a forced call
// replaces whatever is pending so force is never lost.
func (s *Service) RequestImmediateScan(force bool) {
	req := scanRequest{force: force}
	select {
	case s.requestCh <- req:
		return
	default:
	}
	if !force {
		return
	}
	select {
	case <-s.requestCh:
	default:
	}
	select {
	case s.requestCh <- req:
	default:
	}
}

// RequestReload re-reads the configured MediaLibrary set from the database,
// cancelling any in-flight scan and rebuilding the filesystem watch list against the
// fresh set, then returns the service to Scheduled(next boundary) or NotScheduled.
// Coalesced like RequestImmediateScan: a reload already pending absorbs a second
// request.
func (s *Service) RequestReload() {
	s.RequestStop()
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// RequestStop cooperatively cancels the in-progress scan, if any; a no-op otherwise.
func (s *Service) RequestStop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel.Store(true)
	}
}

func (s *Service) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:             s.state,
		NextScheduledScan: s.nextScheduledScan,
		LastCompleteStats: s.lastStats,
		CurrentStepStats:  s.currentStep,
	}
}

func (s *Service) runScan(ctx context.Context, force bool) {
	cancel := &atomic.Bool{}
	s.mu.Lock()
	s.state = InProgress
	s.cancel = cancel
	s.currentStep = nil
	s.mu.Unlock()
	s.bus.started()

	libs, err := s.store.Read().ListMediaLibraries(ctx)
	if err != nil {
		s.logger.Error("scanner: list media libraries", "error", err)
		s.mu.Lock()
		s.state = NotScheduled
		s.mu.Unlock()
		return
	}

	stats := scanstats.NewScanStats(time.Now())
	onProgress := func(ss scanstats.StepStats) {
		s.mu.Lock()
		s.currentStep = &ss
		s.mu.Unlock()
		s.bus.inProgress(ss)
	}

	var runErr error
	for _, lib := range libs {
		if cancel.Load() {
			break
		}
		// A library can be deleted mid-scan by a concurrent RequestReload; re-check its
		// continued existence before spending a pass on it so a stale root never gets
		// scanned into a reload that already dropped it.
		if exists, err := s.store.Read().MediaLibraryExists(ctx, lib.ID); err != nil {
			s.logger.Error("scanner: check library existence", "library", lib.ID, "error", err)
			break
		} else if !exists {
			continue
		}
		sc := &ScanContext{
			Library:    lib,
			ForceScan:  force,
			Stats:      stats,
			Store:      s.store,
			Config:     s.cfg,
			Cancel:     cancel,
			OnProgress: onProgress,
		}
		if err := s.pipeline.Run(ctx, sc); err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil && !cancel.Load() {
		sc := &ScanContext{
			Stats:        stats,
			Store:        s.store,
			Config:       s.cfg,
			Cancel:       cancel,
			OnProgress:   onProgress,
			ReloadEngine: s.onReload,
		}
		if len(libs) > 0 {
			sc.Library = libs[0]
		}
		runErr = s.globals.Run(ctx, sc)
	}

	stats.StopTime = time.Now()
	changed := stats.Changed()

	if runErr != nil {
		s.logger.Error("scanner: scan aborted", "error", runErr)
	}

	if s.artwork != nil {
		s.artwork.ScanComplete(changed)
	}

	s.mu.Lock()
	s.lastStats = stats
	s.state = NotScheduled
	s.cancel = nil
	s.mu.Unlock()

	s.bus.complete(stats, changed)
}
