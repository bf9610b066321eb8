// Package steps implements the concrete ScanStep pipeline stages, in their
// canonical execution order.
package steps

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"lms/internal/models"
	"lms/internal/scanerrors"
	"lms/internal/scanner"
	"lms/internal/scanner/tagreader"
	"lms/internal/scanstats"
	"lms/internal/store"
)

// ScanFiles walks a MediaLibrary root, honoring IgnoreMarkerFile, and upserts a Track
// for every regular file with a supported extension.
type ScanFiles struct {
	Reader tagreader.Reader
	Hash   ContentHasher
}

// ContentHasher computes Track.ContentHash for exact-duplicate detection.
type ContentHasher interface {
	Hash(path string) (models.ContentHash, error)
}

func (ScanFiles) Kind() scanstats.Step { return scanstats.ScanFiles }

func (s ScanFiles) Process(ctx context.Context, sc *scanner.ScanContext) error {
	paths, err := walkLibrary(sc.Library.RootPath, sc.Config.SupportedExtensions)
	if err != nil {
		return fmt.Errorf("steps: walk %q: %w", sc.Library.RootPath, err)
	}

	total := len(paths)
	processed := 0
	batch := sc.Config.BatchSize
	if batch <= 0 {
		batch = 50
	}

	for start := 0; start < len(paths); start += batch {
		if sc.Cancelled() {
			return nil
		}
		end := start + batch
		if end > len(paths) {
			end = len(paths)
		}

		err := sc.Store.WithTransaction(ctx, func(session *store.Session) error {
			for _, path := range paths[start:end] {
				if sc.Cancelled() {
					return nil
				}
				s.scanOne(ctx, session, sc, path)
				processed++
				if processed%sc.Config.ProgressStride == 0 {
					sc.PublishProgress(scanstats.ScanFiles, total, processed)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("steps: scan files batch commit: %w", err)
		}
	}

	sc.PublishProgress(scanstats.ScanFiles, total, processed)
	return nil
}

// scanOne bumps Scans alongside every Additions/Updates/Failures outcome, so Scans
// always equals additions+updates+failures; Skips is tracked separately and never
// counts toward it.
func (s ScanFiles) scanOne(ctx context.Context, session *store.Session, sc *scanner.ScanContext, path string) {
	info, err := os.Stat(path)
	if err != nil {
		sc.Stats.AddError(scanerrors.IO(path, err))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	existing, err := session.GetTrackByPath(ctx, path)
	if err != nil {
		sc.Stats.AddError(scanerrors.IO(path, err))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	unchanged := existing != nil &&
		existing.Size == info.Size() &&
		existing.LastWriteTime == info.ModTime().UnixNano()
	if unchanged && !sc.ForceScan {
		sc.Stats.Skips++
		return
	}

	parsed, err := s.Reader.Read(path)
	if err != nil {
		sc.Stats.AddError(scanerrors.AudioFile(path, err))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}
	if parsed.Title == "" {
		sc.Stats.AddError(scanerrors.NoAudioTrackFound(path))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	duration := parsed.Duration
	if duration <= 0 {
		sc.Stats.AddError(scanerrors.BadAudioDuration(path))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	hash, err := s.Hash.Hash(path)
	if err != nil {
		sc.Stats.AddError(scanerrors.IO(path, err))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	var releaseID *models.ReleaseID
	if parsed.Album != "" {
		totalDiscs := parsed.TotalDiscs
		if totalDiscs < 1 {
			totalDiscs = 1
		}
		id, err := session.GetOrCreateRelease(ctx, parsed.Album, nil, totalDiscs)
		if err != nil {
			sc.Stats.AddError(scanerrors.IO(path, err))
			sc.Stats.Failures++
			sc.Stats.Scans++
			return
		}
		releaseID = &id
	}

	track := models.Track{
		AbsolutePath:       path,
		LastWriteTime:      info.ModTime(),
		Size:               info.Size(),
		ContentHash:        hash,
		Duration:           duration,
		DiscNumber:         parsed.DiscNumber,
		TrackNumber:        parsed.TrackNumber,
		TotalTracks:        parsed.TotalTracks,
		Name:               parsed.Title,
		ReleaseID:          releaseID,
		MediaLibraryID:     sc.Library.ID,
		HasEmbeddedArtwork: parsed.HasEmbeddedArtwork,
	}

	trackID, err := session.UpsertTrack(ctx, track)
	if err != nil {
		sc.Stats.AddError(scanerrors.IO(path, err))
		sc.Stats.Failures++
		sc.Stats.Scans++
		return
	}

	links, err := trackArtistLinks(ctx, session, parsed)
	if err != nil {
		sc.Stats.AddError(scanerrors.ArtistInfoFile(path, err))
	} else if err := session.SetTrackReleaseArtists(ctx, trackID, links); err != nil {
		sc.Stats.AddError(scanerrors.IO(path, err))
	}

	if existing == nil {
		sc.Stats.Additions++
	} else {
		sc.Stats.Updates++
	}
	sc.Stats.Scans++
}

func trackArtistLinks(ctx context.Context, session *store.Session, parsed tagreader.ParsedTrack) ([]models.TrackArtistLink, error) {
	var links []models.TrackArtistLink

	if parsed.Artist != "" {
		id, err := session.GetOrCreateArtist(ctx, parsed.Artist, nil)
		if err != nil {
			return nil, err
		}
		links = append(links, models.TrackArtistLink{ArtistID: id, Role: models.LinkArtist})
	}
	if parsed.AlbumArtist != "" && parsed.AlbumArtist != parsed.Artist {
		id, err := session.GetOrCreateArtist(ctx, parsed.AlbumArtist, nil)
		if err != nil {
			return nil, err
		}
		links = append(links, models.TrackArtistLink{ArtistID: id, Role: models.LinkReleaseArtist})
	}
	if parsed.Composer != "" {
		id, err := session.GetOrCreateArtist(ctx, parsed.Composer, nil)
		if err != nil {
			return nil, err
		}
		links = append(links, models.TrackArtistLink{ArtistID: id, Role: models.LinkComposer})
	}
	return links, nil
}

// walkLibrary collects every regular file under root with a supported extension,
// skipping any directory containing scanner.IgnoreMarkerFile.
func walkLibrary(root string, extensions []string) ([]string, error) {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, err := os.Stat(filepath.Join(path, scanner.IgnoreMarkerFile)); err == nil {
				return fs.SkipDir
			}
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
