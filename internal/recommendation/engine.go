package recommendation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"lms/internal/models"
	"lms/internal/som"
	"lms/internal/store"
)

// Engine trains a SOM from track feature vectors and answers similarity queries.
// Exactly one of Load's outcomes (cache hit, trained, or "nothing to classify")
// leaves the Engine usable; readers obtain results only through the query methods,
// which take a read lock.
type Engine struct {
	store      *store.Store
	workingDir string
	settings   TrainSettings
	logger     *slog.Logger

	mu                 sync.RWMutex
	network            *som.Network
	networkMedian      float64
	trackPositions     map[models.TrackID][]som.Position
	trackMatrix        map[som.Position][]models.TrackID
	releasePositions   map[models.ReleaseID][]som.Position
	releaseMatrix      map[som.Position][]models.ReleaseID
	artistPositions    map[models.ArtistID][]som.Position
	artistMatrix       map[models.TrackArtistLinkType]map[som.Position][]models.ArtistID

	loadCancelled atomic.Bool
}

func New(st *store.Store, workingDir string, settings TrainSettings, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, workingDir: workingDir, settings: settings, logger: logger}
}

// RequestCancelLoad requests cooperative cancellation of an in-progress Load; the
// training loop checks this once per iteration and once per sample.
func (e *Engine) RequestCancelLoad() {
	e.loadCancelled.Store(true)
}

// Load trains (or loads a cached) network and rebuilds the post-load indexes. If
// forceReload is false and a valid cache exists, it is used directly; otherwise the
// engine retrains from the catalog's TrackFeatures rows.
func (e *Engine) Load(ctx context.Context, forceReload bool) error {
	e.loadCancelled.Store(false)

	if !forceReload {
		if network, positions, ok := e.tryLoadFromCache(); ok {
			return e.finishLoad(ctx, network, positions)
		}
	}

	return e.loadFromTraining(ctx)
}

func (e *Engine) tryLoadFromCache() (*som.Network, map[models.TrackID][]som.Position, bool) {
	network, ok := som.ReadNetwork(e.workingDir, 1, 2)
	if !ok {
		return nil, nil, false
	}
	positions, ok := som.ReadTrackPositions(e.workingDir)
	if !ok {
		return nil, nil, false
	}
	return network, positions, true
}

func (e *Engine) loadFromTraining(ctx context.Context) error {
	allFeatures, err := e.store.Read().ListTrackFeatures(ctx)
	if err != nil {
		return fmt.Errorf("recommendation: list track features: %w", err)
	}

	samples, trackIDs, weights, dim := e.buildSamples(allFeatures)
	if len(samples) == 0 {
		e.logger.Info("nothing to classify, leaving previous network untouched")
		return nil
	}

	normalize(samples)

	width := maxInt(2, int(math.Sqrt(float64(len(samples))/e.settings.SamplesPerNeuron)))
	height := width

	network := som.New(width, height, dim, rand.New(rand.NewPCG(uint64(len(samples)), uint64(dim))))
	if err := network.SetDataWeights(weights); err != nil {
		return fmt.Errorf("recommendation: set data weights: %w", err)
	}

	network.Train(samples, e.settings.IterationCount, func(iter som.CurrentIteration) {
		e.logger.Debug("training iteration", "iteration", iter.IDIteration, "total", iter.IterationCount)
	}, e.loadCancelled.Load)

	positions := make(map[models.TrackID][]som.Position, len(samples))
	for i, sample := range samples {
		pos := network.ClosestRefVectorPosition(sample)
		positions[trackIDs[i]] = append(positions[trackIDs[i]], pos)
	}

	if err := som.WriteNetwork(e.workingDir, network); err != nil {
		e.logger.Error("failed to write network cache, invalidating", "error", err)
		som.Invalidate(e.workingDir)
	} else if err := som.WriteTrackPositions(e.workingDir, positions); err != nil {
		e.logger.Error("failed to write track positions cache, invalidating", "error", err)
		som.Invalidate(e.workingDir)
	}

	return e.finishLoad(ctx, network, positions)
}

// buildSamples concatenates each track's requested feature vectors in
// featureSettings order into one InputVector of length D = Σ Dⱼ, skipping tracks
// with a dimension mismatch on any requested feature. The per-dimension weight
// vector gives each feature j's components (1/Dⱼ)·weightⱼ.
func (e *Engine) buildSamples(all []models.TrackFeatures) ([]som.InputVector, []models.TrackID, som.InputVector, int) {
	dims := make(map[string]int)
	for _, tf := range all {
		for _, fs := range e.settings.FeatureSettings {
			if v, ok := tf.FeatureMap[fs.Name]; ok && dims[fs.Name] == 0 {
				dims[fs.Name] = len(v)
			}
		}
	}

	total := 0
	for _, fs := range e.settings.FeatureSettings {
		total += dims[fs.Name]
	}
	if total == 0 {
		return nil, nil, nil, 0
	}

	weights := make(som.InputVector, total)
	offset := 0
	for _, fs := range e.settings.FeatureSettings {
		d := dims[fs.Name]
		for i := 0; i < d; i++ {
			weights[offset+i] = fs.Weight / float64(d)
		}
		offset += d
	}

	var samples []som.InputVector
	var trackIDs []models.TrackID
	for _, tf := range all {
		sample := make(som.InputVector, 0, total)
		mismatched := false
		for _, fs := range e.settings.FeatureSettings {
			v, ok := tf.FeatureMap[fs.Name]
			if !ok || len(v) != dims[fs.Name] {
				e.logger.Warn("feature dimension mismatch, skipping track", "track_id", tf.TrackID, "feature", fs.Name)
				mismatched = true
				break
			}
			sample = append(sample, v...)
		}
		if mismatched {
			continue
		}
		samples = append(samples, sample)
		trackIDs = append(trackIDs, tf.TrackID)
	}

	return samples, trackIDs, weights, total
}

// normalize applies the per-dimension z-score transform required before training
// (σⱼ = 0 is treated as 1). The resulting normalized samples are what gets
// persisted as positions; the engine never re-derives (μ, σ) at query time.
func normalize(samples []som.InputVector) {
	if len(samples) == 0 {
		return
	}
	dim := len(samples[0])
	mean := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(samples))
	}

	stddev := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			d := v - mean[i]
			stddev[i] += d * d
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / float64(len(samples)))
		if stddev[i] == 0 {
			stddev[i] = 1
		}
	}

	for _, s := range samples {
		for i := range s {
			s[i] = (s[i] - mean[i]) / stddev[i]
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
