package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lms/internal/config"
	"lms/internal/models"
	"lms/internal/scanerrors"
	"lms/internal/scanner"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// artworkCandidate is an external image file found while resolving a Release's or
// Artist's artwork, ranked by preferred-name precedence.
type artworkCandidate struct {
	path string
	rank int // lower is more preferred; len(preferredNames) means "any supported file"
}

func findArtworkFile(dir string, cfg config.ArtworkConfig) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	supported := map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {}}

	var best *artworkCandidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := supported[ext]; !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil || info.Size() > cfg.MaxFileSize {
			continue
		}

		base := strings.ToLower(strings.TrimSuffix(e.Name(), ext))
		rank := len(cfg.PreferredFileNames)
		for i, pref := range cfg.PreferredFileNames {
			if base == strings.ToLower(pref) {
				rank = i
				break
			}
		}

		if best == nil || rank < best.rank {
			best = &artworkCandidate{path: path, rank: rank}
		}
	}

	if best == nil {
		return "", false
	}
	return best.path, true
}

// AssociateReleaseImages looks for an external cover file in the directory of each
// artworkless Release's first track and, if none matches there, in that directory's
// parent. The parent is searched for every release, not only multi-disc ones, and the
// directories of the release's other tracks are not searched. A release with no match
// keeps no artwork; AssociateTrackImages gives embedded artwork only to tracks that
// have no release.
type AssociateReleaseImages struct {
	Config config.ArtworkConfig
}

func (AssociateReleaseImages) Kind() scanstats.Step { return scanstats.AssociateReleaseImages }

func (s AssociateReleaseImages) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	releases, err := session.ListReleasesWithoutArtwork(ctx)
	if err != nil {
		return fmt.Errorf("steps: list releases without artwork: %w", err)
	}

	for i, releaseID := range releases {
		if sc.Cancelled() {
			return nil
		}

		trackPath, err := session.FirstTrackPathOfRelease(ctx, releaseID)
		if err != nil {
			return fmt.Errorf("steps: first track of release %d: %w", releaseID, err)
		}
		if trackPath == "" {
			continue
		}

		dir := filepath.Dir(trackPath)
		path, ok := findArtworkFile(dir, s.Config)
		if !ok {
			path, ok = findArtworkFile(filepath.Dir(dir), s.Config)
		}
		if !ok {
			continue
		}

		if err := associateFile(ctx, sc.Store, path, func(wtx *store.Session, artworkID models.ArtworkID) error {
			return wtx.SetReleaseArtwork(ctx, releaseID, artworkID)
		}); err != nil {
			sc.Stats.AddError(artworkErr(path, err))
		}
		sc.PublishProgress(scanstats.AssociateReleaseImages, len(releases), i+1)
	}
	return nil
}

// AssociateTrackImages associates per-track (disc/media-specific) artwork, beyond
// whatever AssociateReleaseImages already resolved at the release level. Most tracks
// never need their own row here; this only fires when HasEmbeddedArtwork is true and
// the track has no release (so no release-level cover could apply).
type AssociateTrackImages struct{}

func (AssociateTrackImages) Kind() scanstats.Step { return scanstats.AssociateTrackImages }

func (AssociateTrackImages) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	tracks, err := session.ListUnreleasedTracksWithEmbeddedArtwork(ctx)
	if err != nil {
		return fmt.Errorf("steps: list tracks with embedded artwork: %w", err)
	}

	for i, trackID := range tracks {
		if sc.Cancelled() {
			return nil
		}
		err := sc.Store.WithTransaction(ctx, func(wtx *store.Session) error {
			artworkID, err := wtx.CreateArtwork(ctx, models.ArtworkSource{Kind: models.ArtworkSourceTrackEmbedded, EmbeddedTrack: trackID})
			if err != nil {
				return err
			}
			return wtx.SetTrackArtwork(ctx, trackID, artworkID)
		})
		if err != nil {
			sc.Stats.AddError(artworkErr(fmt.Sprintf("track %d", trackID), err))
		}
		sc.PublishProgress(scanstats.AssociateTrackImages, len(tracks), i+1)
	}
	return nil
}

// AssociateArtistImages resolves each artist without artwork to an external file
// found in the directory of their first-seen track, the same convention
// AssociateReleaseImages uses.
type AssociateArtistImages struct {
	Config config.ArtworkConfig
}

func (AssociateArtistImages) Kind() scanstats.Step { return scanstats.AssociateArtistImages }

func (s AssociateArtistImages) Process(ctx context.Context, sc *scanner.ScanContext) error {
	session := sc.Store.Read()

	artists, err := session.ListArtistsWithoutArtwork(ctx)
	if err != nil {
		return fmt.Errorf("steps: list artists without artwork: %w", err)
	}

	for i, artistID := range artists {
		if sc.Cancelled() {
			return nil
		}
		trackPath, err := session.FirstTrackPathOfArtist(ctx, artistID)
		if err != nil {
			return fmt.Errorf("steps: first track of artist %d: %w", artistID, err)
		}
		if trackPath == "" {
			continue
		}

		path, ok := findArtworkFile(filepath.Dir(trackPath), s.Config)
		if !ok {
			continue
		}

		if err := associateFile(ctx, sc.Store, path, func(wtx *store.Session, artworkID models.ArtworkID) error {
			return wtx.SetArtistArtwork(ctx, artistID, artworkID)
		}); err != nil {
			sc.Stats.AddError(artworkErr(path, err))
		}
		sc.PublishProgress(scanstats.AssociateArtistImages, len(artists), i+1)
	}
	return nil
}

func associateFile(ctx context.Context, st *store.Store, path string, set func(*store.Session, models.ArtworkID) error) error {
	return st.WithTransaction(ctx, func(wtx *store.Session) error {
		artworkID, err := wtx.CreateArtwork(ctx, models.ArtworkSource{Kind: models.ArtworkSourceFile, FilePath: path})
		if err != nil {
			return err
		}
		return set(wtx, artworkID)
	})
}

func artworkErr(path string, cause error) *scanerrors.Error { return scanerrors.ImageFile(path, cause) }
