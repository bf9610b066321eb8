package steps

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ushis/m3u"

	"lms/internal/models"
	"lms/internal/scanerrors"
	"lms/internal/scanner"
	"lms/internal/scanstats"
	"lms/internal/store"
)

var playlistExtensions = map[string]struct{}{".m3u": {}, ".m3u8": {}, ".pls": {}}

// AssociatePlayListTracks discovers .m3u/.m3u8/.pls files under every configured
// MediaLibrary, resolves each entry to a known Track by absolute path, and upserts a
// Playlist row keyed by the file's own path. Entries that don't
// resolve raise PlayListFilePathMissing; a file where none resolve raises
// PlayListFileAllPathesMissing instead of creating an empty playlist.
type AssociatePlayListTracks struct{}

func (AssociatePlayListTracks) Kind() scanstats.Step { return scanstats.AssociatePlayListTracks }

func (AssociatePlayListTracks) Process(ctx context.Context, sc *scanner.ScanContext) error {
	libs, err := sc.Store.Read().ListMediaLibraries(ctx)
	if err != nil {
		return fmt.Errorf("steps: list media libraries: %w", err)
	}

	var files []string
	for _, lib := range libs {
		err := filepath.WalkDir(lib.RootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if _, ignored := os.Stat(filepath.Join(path, scanner.IgnoreMarkerFile)); ignored == nil {
					return fs.SkipDir
				}
				return nil
			}
			if _, ok := playlistExtensions[strings.ToLower(filepath.Ext(path))]; ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("steps: walk %q for playlists: %w", lib.RootPath, err)
		}
	}

	for i, path := range files {
		if sc.Cancelled() {
			return nil
		}
		err := sc.Store.WithTransaction(ctx, func(session *store.Session) error {
			return associatePlaylistFile(ctx, session, sc, path)
		})
		if err != nil {
			return fmt.Errorf("steps: associate playlist %q: %w", path, err)
		}
		sc.PublishProgress(scanstats.AssociatePlayListTracks, len(files), i+1)
	}
	return nil
}

func associatePlaylistFile(ctx context.Context, session *store.Session, sc *scanner.ScanContext, path string) error {
	entries, err := readPlaylistEntries(path)
	if err != nil {
		sc.Stats.AddError(scanerrors.PlayListFile(path, err))
		return nil
	}

	dir := filepath.Dir(path)
	var trackIDs []models.TrackID
	for _, entry := range entries {
		abs := entry
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(dir, abs)
		}
		abs = filepath.Clean(abs)

		id, err := session.ResolveTrackIDByAbsolutePath(ctx, abs)
		if err != nil {
			return err
		}
		if id == 0 {
			sc.Stats.AddError(scanerrors.PlayListFilePathMissing(path, entry))
			continue
		}
		trackIDs = append(trackIDs, id)
	}

	if len(entries) > 0 && len(trackIDs) == 0 {
		sc.Stats.AddError(scanerrors.PlayListFileAllPathesMissing(path))
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	_, err = session.UpsertPlaylist(ctx, models.Playlist{Name: name, SourcePath: path, TrackIDs: trackIDs})
	return err
}

// readPlaylistEntries dispatches to the m3u parser or the hand-rolled .pls reader
// depending on extension.
func readPlaylistEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".pls" {
		return parsePLS(f)
	}

	tracks, err := m3u.Parse(f)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.Path != "" {
			entries = append(entries, t.Path)
		}
	}
	return entries, nil
}

// parsePLS reads the `FileN=path` lines of a Shoutcast/Winamp .pls file, the only
// part of its ini-like format a track resolver needs.
func parsePLS(f *os.File) ([]string, error) {
	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(strings.ToLower(line), "file") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(line[:eq])
		if _, err := strconv.Atoi(key[len("file"):]); err != nil {
			continue
		}
		entries = append(entries, strings.TrimSpace(line[eq+1:]))
	}
	return entries, sc.Err()
}
