// Package recommendation drives the SOM-backed similarity engine: it trains (or
// loads a cached) network from track feature vectors and answers "similar
// tracks/releases/artists" queries.
package recommendation

// FeatureSetting is one entry of the ordered feature-name → weight mapping used to
// build training samples. Dimensionality is discovered from the data at load time
// rather than declared statically.
type FeatureSetting struct {
	Name   string
	Weight float64
}

// DefaultFeatureSettings is the default feature set.
func DefaultFeatureSettings() []FeatureSetting {
	return []FeatureSetting{
		{Name: "spectral_energyband_high.mean", Weight: 1},
		{Name: "spectral_rolloff.median", Weight: 1},
		{Name: "spectral_contrast_valleys.var", Weight: 1},
		{Name: "erbbands.mean", Weight: 1},
		{Name: "gfcc.mean", Weight: 1},
	}
}

// TrainSettings configures engine training, not user-surfaced.
type TrainSettings struct {
	IterationCount   int
	SamplesPerNeuron float64
	FeatureSettings  []FeatureSetting
}

// DefaultTrainSettings returns the engine's default training configuration.
func DefaultTrainSettings() TrainSettings {
	return TrainSettings{
		IterationCount:   10,
		SamplesPerNeuron: 4,
		FeatureSettings:  DefaultFeatureSettings(),
	}
}
