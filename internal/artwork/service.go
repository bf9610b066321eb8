// Package artwork resolves Track/Release/Artist entities to encoded image bytes,
// backed by a bounded, size-accounted cache and an on-disk/embedded image source.
package artwork

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"lms/internal/artwork/codec"
	"lms/internal/models"
	"lms/internal/store"
)

//go:embed default_release.svg
var defaultReleaseSVG []byte

//go:embed default_artist.svg
var defaultArtistSVG []byte

// Service resolves catalog entities to artwork bytes, delegating to Cache, a
// codec.ImageCodec, and the filesystem.
type Service struct {
	store       *store.Store
	cache       *Cache
	codec       codec.ImageCodec
	maxFileSize int64
	jpegQuality int
}

func NewService(st *store.Store, cache *Cache, c codec.ImageCodec, maxFileSize int64, jpegQuality int) *Service {
	if jpegQuality < 1 {
		jpegQuality = 1
	} else if jpegQuality > 100 {
		jpegQuality = 100
	}
	return &Service{store: st, cache: cache, codec: c, maxFileSize: maxFileSize, jpegQuality: jpegQuality}
}

// GetImage resolves a single artwork id to encoded bytes at the given size: cache
// probe, then decode the underlying source, resize, re-encode to JPEG, cache,
// return.
func (s *Service) GetImage(ctx context.Context, id models.ArtworkID, size codec.ImageSize) (codec.EncodedImage, bool, error) {
	desc := EntryDesc{ID: id, Size: size}
	if img, ok := s.cache.GetImage(desc); ok {
		return img, true, nil
	}

	raw, err := s.readSourceBytes(ctx, id)
	if err != nil {
		return codec.EncodedImage{}, false, err
	}
	if raw == nil {
		return codec.EncodedImage{}, false, nil
	}
	if int64(len(raw)) > s.maxFileSize {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: source for %d exceeds max file size", id)
	}

	encoded, err := s.codec.Resize(raw, size, s.jpegQuality)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: resize %d: %w", id, err)
	}

	s.cache.AddImage(desc, encoded)
	return encoded, true, nil
}

func (s *Service) readSourceBytes(ctx context.Context, id models.ArtworkID) ([]byte, error) {
	a, err := s.store.Read().GetArtwork(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artwork: load source %d: %w", id, err)
	}
	if a == nil {
		return nil, nil
	}

	switch a.Source.Kind {
	case models.ArtworkSourceFile:
		data, err := os.ReadFile(a.Source.FilePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("artwork: read %q: %w", a.Source.FilePath, err)
		}
		return data, nil
	case models.ArtworkSourceTrackEmbedded:
		return s.readEmbeddedPicture(ctx, a.Source.EmbeddedTrack, a.Source.EmbeddedIndex)
	default:
		return nil, fmt.Errorf("artwork: unknown source kind %d", a.Source.Kind)
	}
}

// readEmbeddedPicture extracts a track's embedded cover via dhowden/tag. dhowden/tag
// only exposes the first embedded picture frame, so any index other than 0 misses.
func (s *Service) readEmbeddedPicture(ctx context.Context, trackID models.TrackID, index int) ([]byte, error) {
	if index != 0 {
		return nil, nil
	}

	path, err := s.store.Read().GetTrackAbsolutePath(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artwork: open %q: %w", path, err)
	}
	defer f.Close()

	md, err := tag.ReadFrom(f)
	if err != nil {
		return nil, nil
	}
	pic := md.Picture()
	if pic == nil {
		return nil, nil
	}
	return pic.Data, nil
}

// GetTrackImage resolves a track to artwork by precedence: disc/media artwork (the
// track's own Artwork row) first, else the track's release's artwork, else nothing.
// allowReleaseFallback=false stops after the disc/media tier.
func (s *Service) GetTrackImage(ctx context.Context, trackID models.TrackID, size codec.ImageSize, allowReleaseFallback bool) (codec.EncodedImage, bool, error) {
	info, err := s.store.Read().GetTrackArtworkInfo(ctx, trackID)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: track image %d: %w", trackID, err)
	}
	if info == nil {
		return codec.EncodedImage{}, false, nil
	}

	if info.ArtworkID != nil {
		return s.GetImage(ctx, *info.ArtworkID, size)
	}
	if !allowReleaseFallback || info.ReleaseID == nil {
		return codec.EncodedImage{}, false, nil
	}
	return s.GetReleaseImage(ctx, *info.ReleaseID, size)
}

// GetReleaseImage prefers an Artwork row attached to the release, falling back to the
// first track in the release that carries embedded artwork.
func (s *Service) GetReleaseImage(ctx context.Context, releaseID models.ReleaseID, size codec.ImageSize) (codec.EncodedImage, bool, error) {
	session := s.store.Read()

	artworkID, err := session.GetReleaseArtworkID(ctx, releaseID)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: release image %d: %w", releaseID, err)
	}
	if artworkID != nil {
		return s.GetImage(ctx, *artworkID, size)
	}

	trackID, err := session.FirstEmbeddedTrackOfRelease(ctx, releaseID)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: release fallback %d: %w", releaseID, err)
	}
	if trackID == nil {
		return codec.EncodedImage{}, false, nil
	}

	raw, err := s.readEmbeddedPicture(ctx, *trackID, 0)
	if err != nil || raw == nil {
		return codec.EncodedImage{}, false, err
	}
	if int64(len(raw)) > s.maxFileSize {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: embedded source for release %d exceeds max file size", releaseID)
	}
	encoded, err := s.codec.Resize(raw, size, s.jpegQuality)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: resize release %d: %w", releaseID, err)
	}
	return encoded, true, nil
}

// GetArtistImage reads the Artist's own artwork handle, if any.
func (s *Service) GetArtistImage(ctx context.Context, artistID models.ArtistID, size codec.ImageSize) (codec.EncodedImage, bool, error) {
	artworkID, err := s.store.Read().GetArtistArtworkID(ctx, artistID)
	if err != nil {
		return codec.EncodedImage{}, false, fmt.Errorf("artwork: artist image %d: %w", artistID, err)
	}
	if artworkID == nil {
		return codec.EncodedImage{}, false, nil
	}
	return s.GetImage(ctx, *artworkID, size)
}

// GetDefaultReleaseImage returns the release placeholder SVG, loaded once at process
// start; never cached.
func (s *Service) GetDefaultReleaseImage() codec.EncodedImage {
	return codec.EncodedImage{MimeType: "image/svg+xml", Bytes: defaultReleaseSVG}
}

// GetDefaultArtistImage returns the artist placeholder SVG.
func (s *Service) GetDefaultArtistImage() codec.EncodedImage {
	return codec.EncodedImage{MimeType: "image/svg+xml", Bytes: defaultArtistSVG}
}

// ScanComplete flushes the cache whenever a completed scan changed the catalog, so
// subsequent GetImage calls are guaranteed to see fresh results rather than stale
// pre-scan entries.
func (s *Service) ScanComplete(changed bool) {
	if changed {
		s.cache.Flush()
	}
}

// PreferredFilename reports whether base (without extension) matches one of the
// configured preferred cover filenames, case-insensitively.
func PreferredFilename(base string, preferred []string) bool {
	base = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, p := range preferred {
		if base == strings.ToLower(p) {
			return true
		}
	}
	return false
}
