// Package store layers typed repository methods over internal/database, the
// concrete backing for the transactional read/write Session the pipeline treats as
// an external collaborator. No query builder, no ORM: raw SQL via pgx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lms/internal/database"
	"lms/internal/models"
)

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting every method below
// run either directly against the pool or inside a caller-managed transaction.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the top-level handle; Session pins a Queryer (pool or transaction) for a
// sequence of calls that must see a consistent view.
type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Session exposes the repository methods against a fixed Queryer. Scan steps obtain
// one per transaction via WithTransaction.
type Session struct {
	q Queryer
}

// WithTransaction runs fn inside one write transaction, backed by
// database.WithTransaction; the pipeline commits every ~50 files by calling this
// once per batch.
func (s *Store) WithTransaction(ctx context.Context, fn func(*Session) error) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&Session{q: tx})
	})
}

// Read returns a Session bound directly to the pool, for read-only work that does
// not need transactional isolation across multiple statements.
func (s *Store) Read() *Session {
	return &Session{q: s.db.Pool}
}

// --- MediaLibrary ---

func (s *Session) ListMediaLibraries(ctx context.Context) ([]models.MediaLibrary, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name, root_path FROM media_libraries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list media libraries: %w", err)
	}
	defer rows.Close()

	var libs []models.MediaLibrary
	for rows.Next() {
		var l models.MediaLibrary
		if err := rows.Scan(&l.ID, &l.Name, &l.RootPath); err != nil {
			return nil, fmt.Errorf("store: scan media library: %w", err)
		}
		libs = append(libs, l)
	}
	return libs, rows.Err()
}

// MediaLibraryExists reports whether id still names a configured MediaLibrary,
// letting a long-running scan notice mid-pass that its current library was deleted.
func (s *Session) MediaLibraryExists(ctx context.Context, id models.MediaLibraryID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM media_libraries WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: media library exists %d: %w", id, err)
	}
	return exists, nil
}

// --- Track ---

// TrackFileInfo is the subset of Track fields ScanFiles needs to decide whether a
// file is unchanged since the last scan.
type TrackFileInfo struct {
	ID            models.TrackID
	Size          int64
	LastWriteTime int64 // unix nanos, avoids importing time just for comparison
}

func (s *Session) GetTrackByPath(ctx context.Context, absolutePath string) (*TrackFileInfo, error) {
	var info TrackFileInfo
	var nanos int64
	err := s.q.QueryRow(ctx, `SELECT id, size, last_write_time FROM tracks WHERE absolute_path = $1`, absolutePath).
		Scan(&info.ID, &info.Size, &nanos)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get track by path: %w", err)
	}
	info.LastWriteTime = nanos
	return &info, nil
}

// UpsertTrack inserts or fully replaces a Track row, keyed by absolute_path, and
// returns its id.
func (s *Session) UpsertTrack(ctx context.Context, t models.Track) (models.TrackID, error) {
	var id models.TrackID
	var mbid *string
	if t.MBTrackID.Valid() {
		v := t.MBTrackID.String()
		mbid = &v
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO tracks (
			absolute_path, last_write_time, size, content_hash, mb_track_id, duration_ns,
			disc_number, track_number, total_tracks, name, release_id, media_library_id,
			has_embedded_artwork
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (absolute_path) DO UPDATE SET
			last_write_time = EXCLUDED.last_write_time,
			size = EXCLUDED.size,
			content_hash = EXCLUDED.content_hash,
			mb_track_id = EXCLUDED.mb_track_id,
			duration_ns = EXCLUDED.duration_ns,
			disc_number = EXCLUDED.disc_number,
			track_number = EXCLUDED.track_number,
			total_tracks = EXCLUDED.total_tracks,
			name = EXCLUDED.name,
			release_id = EXCLUDED.release_id,
			media_library_id = EXCLUDED.media_library_id,
			has_embedded_artwork = EXCLUDED.has_embedded_artwork
		RETURNING id
	`, t.AbsolutePath, t.LastWriteTime.UnixNano(), t.Size, t.ContentHash[:], mbid, t.Duration.Nanoseconds(),
		t.DiscNumber, t.TrackNumber, t.TotalTracks, t.Name, t.ReleaseID, t.MediaLibraryID,
		t.HasEmbeddedArtwork).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert track %q: %w", t.AbsolutePath, err)
	}
	return id, nil
}

func (s *Session) DeleteTrack(ctx context.Context, id models.TrackID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete track %d: %w", id, err)
	}
	return nil
}

// TrackPath pairs a track id with the path it was last scanned at, for
// CheckForRemovedFiles to test against the live filesystem.
type TrackPath struct {
	ID   models.TrackID
	Path string
}

// ListTrackPathsBatch pages through all known track paths in ascending id order,
// keyset driven: afterID is the highest id seen in the previous page (0 for the
// first page). CheckForRemovedFiles deletes rows from the page it just read before
// requesting the next one, so keyset pagination is required here: an OFFSET scheme
// would skip rows whenever a delete shifts the window underneath it.
func (s *Session) ListTrackPathsBatch(ctx context.Context, afterID models.TrackID, limit int) ([]TrackPath, error) {
	rows, err := s.q.Query(ctx, `SELECT id, absolute_path FROM tracks WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list track paths: %w", err)
	}
	defer rows.Close()

	var out []TrackPath
	for rows.Next() {
		var p TrackPath
		if err := rows.Scan(&p.ID, &p.Path); err != nil {
			return nil, fmt.Errorf("store: scan track path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTrackPathsWithoutLyrics returns every track with no lyrics_path set, for
// AssociateExternalLyrics to probe for .lrc/.txt siblings.
func (s *Session) ListTrackPathsWithoutLyrics(ctx context.Context) ([]TrackPath, error) {
	rows, err := s.q.Query(ctx, `SELECT id, absolute_path FROM tracks WHERE lyrics_path IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list track paths without lyrics: %w", err)
	}
	defer rows.Close()

	var out []TrackPath
	for rows.Next() {
		var p TrackPath
		if err := rows.Scan(&p.ID, &p.Path); err != nil {
			return nil, fmt.Errorf("store: scan track path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Session) SetTrackLyrics(ctx context.Context, id models.TrackID, path, language string) error {
	_, err := s.q.Exec(ctx, `UPDATE tracks SET lyrics_path = $2, lyrics_language = $3 WHERE id = $1`,
		id, path, nullIfEmpty(language))
	if err != nil {
		return fmt.Errorf("store: set track lyrics %d: %w", id, err)
	}
	return nil
}

// ResolveTrackIDByAbsolutePath resolves a playlist entry to a known track, or 0 if
// none matches.
func (s *Session) ResolveTrackIDByAbsolutePath(ctx context.Context, absolutePath string) (models.TrackID, error) {
	var id int64
	err := s.q.QueryRow(ctx, `SELECT id FROM tracks WHERE absolute_path = $1`, absolutePath).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("store: resolve track by path %q: %w", absolutePath, err)
	}
	return models.TrackID(id), nil
}

func (s *Session) SetTrackReleaseArtists(ctx context.Context, trackID models.TrackID, links []models.TrackArtistLink) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM track_artist_links WHERE track_id = $1`, trackID); err != nil {
		return fmt.Errorf("store: clear track artist links: %w", err)
	}
	for _, l := range links {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO track_artist_links (track_id, artist_id, role) VALUES ($1,$2,$3)
			ON CONFLICT DO NOTHING
		`, trackID, l.ArtistID, string(l.Role)); err != nil {
			return fmt.Errorf("store: insert track artist link: %w", err)
		}
	}
	return nil
}

func (s *Session) SetTrackClusters(ctx context.Context, trackID models.TrackID, clusters []models.ClusterID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM track_clusters WHERE track_id = $1`, trackID); err != nil {
		return fmt.Errorf("store: clear track clusters: %w", err)
	}
	for _, c := range clusters {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO track_clusters (track_id, cluster_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, trackID, c); err != nil {
			return fmt.Errorf("store: insert track cluster: %w", err)
		}
	}
	return nil
}

// --- Release / Artist ---

func (s *Session) GetOrCreateRelease(ctx context.Context, name string, mbReleaseID *string, totalDiscs int) (models.ReleaseID, error) {
	var id models.ReleaseID
	err := s.q.QueryRow(ctx, `
		INSERT INTO releases (name, mb_release_id, total_discs) VALUES ($1,$2,$3)
		ON CONFLICT (name, COALESCE(mb_release_id, '')) DO UPDATE SET total_discs = GREATEST(releases.total_discs, EXCLUDED.total_discs)
		RETURNING id
	`, name, mbReleaseID, totalDiscs).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: get or create release %q: %w", name, err)
	}
	return id, nil
}

func (s *Session) GetOrCreateArtist(ctx context.Context, name string, mbArtistID *string) (models.ArtistID, error) {
	var id models.ArtistID
	err := s.q.QueryRow(ctx, `
		INSERT INTO artists (name, mb_artist_id) VALUES ($1,$2)
		ON CONFLICT (name, COALESCE(mb_artist_id, '')) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, mbArtistID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: get or create artist %q: %w", name, err)
	}
	return id, nil
}

// ArtistIdentity is the subset of an Artist ReconciliateArtists needs to decide
// whether two rows are the same artist under a different spelling.
type ArtistIdentity struct {
	ID         models.ArtistID
	Name       string
	MBArtistID string // "" if unset
}

// ListArtistsWithMBID returns every artist that carries a MusicBrainz id, the only
// ones ReconciliateArtists considers for merging: agreement is keyed on mbArtistId,
// not name alone.
func (s *Session) ListArtistsWithMBID(ctx context.Context) ([]ArtistIdentity, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name, mb_artist_id FROM artists WHERE mb_artist_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list artists with mbid: %w", err)
	}
	defer rows.Close()

	var out []ArtistIdentity
	for rows.Next() {
		var a ArtistIdentity
		var mbid *string
		if err := rows.Scan(&a.ID, &a.Name, &mbid); err != nil {
			return nil, fmt.Errorf("store: scan artist identity: %w", err)
		}
		if mbid != nil {
			a.MBArtistID = *mbid
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MergeArtists repoints every track_artist_link and artwork reference from
// duplicates onto canonical, then deletes the duplicate rows. Caller is responsible
// for grouping duplicates correctly; this does no matching itself.
func (s *Session) MergeArtists(ctx context.Context, canonical models.ArtistID, duplicates []models.ArtistID) error {
	for _, dup := range duplicates {
		if dup == canonical {
			continue
		}
		if _, err := s.q.Exec(ctx, `
			INSERT INTO track_artist_links (track_id, artist_id, role)
			SELECT track_id, $1, role FROM track_artist_links WHERE artist_id = $2
			ON CONFLICT DO NOTHING
		`, canonical, dup); err != nil {
			return fmt.Errorf("store: repoint links from artist %d to %d: %w", dup, canonical, err)
		}
		if _, err := s.q.Exec(ctx, `DELETE FROM track_artist_links WHERE artist_id = $1`, dup); err != nil {
			return fmt.Errorf("store: clear leftover links for artist %d: %w", dup, err)
		}
		if _, err := s.q.Exec(ctx, `
			UPDATE artists SET artwork_id = (SELECT artwork_id FROM artists WHERE id = $2)
			WHERE id = $1 AND artwork_id IS NULL
		`, canonical, dup); err != nil {
			return fmt.Errorf("store: carry over artwork from artist %d to %d: %w", dup, canonical, err)
		}
		if _, err := s.q.Exec(ctx, `DELETE FROM artists WHERE id = $1`, dup); err != nil {
			return fmt.Errorf("store: delete merged artist %d: %w", dup, err)
		}
	}
	return nil
}

// --- Maintenance ---

// RecomputeClusterTrackCounts refreshes every Cluster.TrackCount in one statement.
func (s *Session) RecomputeClusterTrackCounts(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		UPDATE clusters c SET track_count = sub.n
		FROM (SELECT cluster_id, COUNT(*) AS n FROM track_clusters GROUP BY cluster_id) sub
		WHERE sub.cluster_id = c.id
	`)
	if err != nil {
		return fmt.Errorf("store: recompute cluster track counts: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		UPDATE clusters SET track_count = 0
		WHERE id NOT IN (SELECT DISTINCT cluster_id FROM track_clusters)
	`)
	if err != nil {
		return fmt.Errorf("store: zero empty cluster track counts: %w", err)
	}
	return nil
}

// RecomputeLibraryTrackCounts refreshes every MediaLibrary.TrackCount.
func (s *Session) RecomputeLibraryTrackCounts(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `
		UPDATE media_libraries l SET track_count = sub.n
		FROM (SELECT media_library_id, COUNT(*) AS n FROM tracks GROUP BY media_library_id) sub
		WHERE sub.media_library_id = l.id
	`)
	if err != nil {
		return fmt.Errorf("store: recompute library track counts: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		UPDATE media_libraries SET track_count = 0
		WHERE id NOT IN (SELECT DISTINCT media_library_id FROM tracks)
	`)
	if err != nil {
		return fmt.Errorf("store: zero empty library track counts: %w", err)
	}
	return nil
}

// RefreshCatalogViews refreshes the materialized views migrations/ defines over the
// catalog (e.g. per-artist release counts). A no-op, successfully, if none exist yet.
func (s *Session) RefreshCatalogViews(ctx context.Context) error {
	views := []string{"artist_release_counts", "release_track_counts"}
	for _, v := range views {
		if _, err := s.q.Exec(ctx, fmt.Sprintf(`REFRESH MATERIALIZED VIEW %s`, pgx.Identifier{v}.Sanitize())); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table: view not created yet
				continue
			}
			return fmt.Errorf("store: refresh view %s: %w", v, err)
		}
	}
	return nil
}

// Compact reclaims dead tuple space across the catalog tables. Must run outside a
// transaction (Postgres forbids VACUUM inside one), so callers should use a Session
// from Store.Read(), not WithTransaction.
func (s *Session) Compact(ctx context.Context) error {
	tables := []string{"tracks", "releases", "artists", "artworks", "clusters", "track_clusters", "track_artist_links"}
	for _, t := range tables {
		if _, err := s.q.Exec(ctx, fmt.Sprintf(`VACUUM %s`, pgx.Identifier{t}.Sanitize())); err != nil {
			return fmt.Errorf("store: vacuum %s: %w", t, err)
		}
	}
	return nil
}

// Optimize rebuilds catalog indexes. Like Compact, must run outside a transaction.
func (s *Session) Optimize(ctx context.Context) error {
	tables := []string{"tracks", "releases", "artists", "artworks", "clusters"}
	for _, t := range tables {
		if _, err := s.q.Exec(ctx, fmt.Sprintf(`REINDEX TABLE %s`, pgx.Identifier{t}.Sanitize())); err != nil {
			return fmt.Errorf("store: reindex %s: %w", t, err)
		}
	}
	return nil
}

// --- Orphan removal (in dependency order) ---

func (s *Session) DeleteOrphanClusters(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM clusters c WHERE NOT EXISTS (SELECT 1 FROM track_clusters tc WHERE tc.cluster_id = c.id)`)
	if err != nil {
		return 0, fmt.Errorf("store: delete orphan clusters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Session) DeleteOrphanArtists(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM artists a WHERE NOT EXISTS (SELECT 1 FROM track_artist_links l WHERE l.artist_id = a.id)`)
	if err != nil {
		return 0, fmt.Errorf("store: delete orphan artists: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Session) DeleteOrphanReleases(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM releases r WHERE NOT EXISTS (SELECT 1 FROM tracks t WHERE t.release_id = r.id)`)
	if err != nil {
		return 0, fmt.Errorf("store: delete orphan releases: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Session) DeleteOrphanArtworks(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM artworks a WHERE
			NOT EXISTS (SELECT 1 FROM tracks t WHERE t.artwork_id = a.id) AND
			NOT EXISTS (SELECT 1 FROM releases r WHERE r.artwork_id = a.id) AND
			NOT EXISTS (SELECT 1 FROM artists ar WHERE ar.artwork_id = a.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("store: delete orphan artworks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Duplicate detection ---

// ContentHashGroup is one (contentHash) grouping with more than one member.
type ContentHashGroup struct {
	TrackIDs []models.TrackID
}

func (s *Session) GroupTracksByContentHash(ctx context.Context) ([]ContentHashGroup, error) {
	rows, err := s.q.Query(ctx, `
		SELECT array_agg(id ORDER BY id)
		FROM tracks
		GROUP BY content_hash
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: group tracks by content hash: %w", err)
	}
	defer rows.Close()

	var groups []ContentHashGroup
	for rows.Next() {
		var ids []int64
		if err := rows.Scan(&ids); err != nil {
			return nil, fmt.Errorf("store: scan content hash group: %w", err)
		}
		g := ContentHashGroup{}
		for _, id := range ids {
			g.TrackIDs = append(g.TrackIDs, models.TrackID(id))
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Session) GroupTracksByMBTrackID(ctx context.Context) ([]ContentHashGroup, error) {
	rows, err := s.q.Query(ctx, `
		SELECT array_agg(id ORDER BY id)
		FROM tracks
		WHERE mb_track_id IS NOT NULL
		GROUP BY mb_track_id
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: group tracks by mb_track_id: %w", err)
	}
	defer rows.Close()

	var groups []ContentHashGroup
	for rows.Next() {
		var ids []int64
		if err := rows.Scan(&ids); err != nil {
			return nil, fmt.Errorf("store: scan mb_track_id group: %w", err)
		}
		g := ContentHashGroup{}
		for _, id := range ids {
			g.TrackIDs = append(g.TrackIDs, models.TrackID(id))
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// --- Artwork resolution ---

// TrackArtworkInfo is the subset of a Track's fields ArtworkService.GetTrackImage
// needs to resolve disc/media artwork, falling back to the release's artwork.
type TrackArtworkInfo struct {
	ArtworkID          *models.ArtworkID
	ReleaseID          *models.ReleaseID
	HasEmbeddedArtwork bool
}

func (s *Session) GetTrackArtworkInfo(ctx context.Context, id models.TrackID) (*TrackArtworkInfo, error) {
	var info TrackArtworkInfo
	var artworkID, releaseID *int64
	err := s.q.QueryRow(ctx, `SELECT artwork_id, release_id, has_embedded_artwork FROM tracks WHERE id = $1`, id).
		Scan(&artworkID, &releaseID, &info.HasEmbeddedArtwork)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get track artwork info %d: %w", id, err)
	}
	if artworkID != nil {
		id := models.ArtworkID(*artworkID)
		info.ArtworkID = &id
	}
	if releaseID != nil {
		id := models.ReleaseID(*releaseID)
		info.ReleaseID = &id
	}
	return &info, nil
}

func (s *Session) GetReleaseArtworkID(ctx context.Context, id models.ReleaseID) (*models.ArtworkID, error) {
	var artworkID *int64
	err := s.q.QueryRow(ctx, `SELECT artwork_id FROM releases WHERE id = $1`, id).Scan(&artworkID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get release artwork id %d: %w", id, err)
	}
	if artworkID == nil {
		return nil, nil
	}
	aid := models.ArtworkID(*artworkID)
	return &aid, nil
}

func (s *Session) GetArtistArtworkID(ctx context.Context, id models.ArtistID) (*models.ArtworkID, error) {
	var artworkID *int64
	err := s.q.QueryRow(ctx, `SELECT artwork_id FROM artists WHERE id = $1`, id).Scan(&artworkID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get artist artwork id %d: %w", id, err)
	}
	if artworkID == nil {
		return nil, nil
	}
	aid := models.ArtworkID(*artworkID)
	return &aid, nil
}

// FirstEmbeddedTrackOfRelease returns the id of the first (by track/disc number)
// track in the release that carries embedded artwork, for getReleaseImage's
// "fall back to the first track's embedded artwork" tier.
func (s *Session) FirstEmbeddedTrackOfRelease(ctx context.Context, id models.ReleaseID) (*models.TrackID, error) {
	var trackID int64
	err := s.q.QueryRow(ctx, `
		SELECT id FROM tracks
		WHERE release_id = $1 AND has_embedded_artwork
		ORDER BY disc_number, track_number
		LIMIT 1
	`, id).Scan(&trackID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: first embedded track of release %d: %w", id, err)
	}
	tid := models.TrackID(trackID)
	return &tid, nil
}

func (s *Session) GetTrackAbsolutePath(ctx context.Context, id models.TrackID) (string, error) {
	var path string
	err := s.q.QueryRow(ctx, `SELECT absolute_path FROM tracks WHERE id = $1`, id).Scan(&path)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("store: get track absolute path %d: %w", id, err)
	}
	return path, nil
}

func (s *Session) GetArtworkSourcePath(ctx context.Context, id models.ArtworkID) (string, error) {
	a, err := s.GetArtwork(ctx, id)
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", nil
	}
	switch a.Source.Kind {
	case models.ArtworkSourceFile:
		return a.Source.FilePath, nil
	case models.ArtworkSourceTrackEmbedded:
		return s.GetTrackAbsolutePath(ctx, a.Source.EmbeddedTrack)
	default:
		return "", fmt.Errorf("store: artwork %d: unknown source kind %d", id, a.Source.Kind)
	}
}

// ListReleasesWithoutArtwork returns every Release with no artwork_id set, for
// AssociateReleaseImages to resolve against external cover files.
func (s *Session) ListReleasesWithoutArtwork(ctx context.Context) ([]models.ReleaseID, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM releases WHERE artwork_id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list releases without artwork: %w", err)
	}
	defer rows.Close()
	var out []models.ReleaseID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan release id: %w", err)
		}
		out = append(out, models.ReleaseID(id))
	}
	return out, rows.Err()
}

// FirstTrackPathOfRelease returns the absolute path of the release's first track by
// disc/track number, or "" if the release has no tracks.
func (s *Session) FirstTrackPathOfRelease(ctx context.Context, id models.ReleaseID) (string, error) {
	var path string
	err := s.q.QueryRow(ctx, `
		SELECT absolute_path FROM tracks
		WHERE release_id = $1
		ORDER BY disc_number, track_number
		LIMIT 1
	`, id).Scan(&path)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("store: first track path of release %d: %w", id, err)
	}
	return path, nil
}

// ListUnreleasedTracksWithEmbeddedArtwork returns tracks that carry embedded artwork
// but belong to no release, so AssociateReleaseImages's release-level cover can never
// apply to them and AssociateTrackImages must give them their own Artwork row.
func (s *Session) ListUnreleasedTracksWithEmbeddedArtwork(ctx context.Context) ([]models.TrackID, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id FROM tracks
		WHERE has_embedded_artwork AND release_id IS NULL AND artwork_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list unreleased tracks with embedded artwork: %w", err)
	}
	defer rows.Close()
	var out []models.TrackID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan track id: %w", err)
		}
		out = append(out, models.TrackID(id))
	}
	return out, rows.Err()
}

// ListArtistsWithoutArtwork returns every Artist with no artwork_id set.
func (s *Session) ListArtistsWithoutArtwork(ctx context.Context) ([]models.ArtistID, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM artists WHERE artwork_id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list artists without artwork: %w", err)
	}
	defer rows.Close()
	var out []models.ArtistID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan artist id: %w", err)
		}
		out = append(out, models.ArtistID(id))
	}
	return out, rows.Err()
}

// FirstTrackPathOfArtist returns the absolute path of some track linked to the
// artist, or "" if the artist has none, so AssociateArtistImages can look for a
// cover file alongside it.
func (s *Session) FirstTrackPathOfArtist(ctx context.Context, id models.ArtistID) (string, error) {
	var path string
	err := s.q.QueryRow(ctx, `
		SELECT t.absolute_path FROM tracks t
		JOIN track_artist_links l ON l.track_id = t.id
		WHERE l.artist_id = $1
		ORDER BY t.disc_number, t.track_number
		LIMIT 1
	`, id).Scan(&path)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("store: first track path of artist %d: %w", id, err)
	}
	return path, nil
}

// --- Artwork ---

func (s *Session) CreateArtwork(ctx context.Context, src models.ArtworkSource) (models.ArtworkID, error) {
	var id models.ArtworkID
	err := s.q.QueryRow(ctx, `
		INSERT INTO artworks (source_kind, file_path, embedded_track_id, embedded_index)
		VALUES ($1,$2,$3,$4) RETURNING id
	`, int(src.Kind), nullIfEmpty(src.FilePath), src.EmbeddedTrack, src.EmbeddedIndex).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create artwork: %w", err)
	}
	return id, nil
}

func (s *Session) SetTrackArtwork(ctx context.Context, trackID models.TrackID, artworkID models.ArtworkID) error {
	_, err := s.q.Exec(ctx, `UPDATE tracks SET artwork_id = $2 WHERE id = $1`, trackID, artworkID)
	if err != nil {
		return fmt.Errorf("store: set track artwork: %w", err)
	}
	return nil
}

func (s *Session) SetReleaseArtwork(ctx context.Context, releaseID models.ReleaseID, artworkID models.ArtworkID) error {
	_, err := s.q.Exec(ctx, `UPDATE releases SET artwork_id = $2 WHERE id = $1`, releaseID, artworkID)
	if err != nil {
		return fmt.Errorf("store: set release artwork: %w", err)
	}
	return nil
}

func (s *Session) SetArtistArtwork(ctx context.Context, artistID models.ArtistID, artworkID models.ArtworkID) error {
	_, err := s.q.Exec(ctx, `UPDATE artists SET artwork_id = $2 WHERE id = $1`, artistID, artworkID)
	if err != nil {
		return fmt.Errorf("store: set artist artwork: %w", err)
	}
	return nil
}

func (s *Session) GetArtwork(ctx context.Context, id models.ArtworkID) (*models.Artwork, error) {
	var a models.Artwork
	var kind int
	var filePath *string
	var embeddedTrack *int64
	var embeddedIndex *int
	err := s.q.QueryRow(ctx, `SELECT id, source_kind, file_path, embedded_track_id, embedded_index FROM artworks WHERE id = $1`, id).
		Scan(&a.ID, &kind, &filePath, &embeddedTrack, &embeddedIndex)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get artwork %d: %w", id, err)
	}
	a.Source.Kind = models.ArtworkSourceKind(kind)
	if filePath != nil {
		a.Source.FilePath = *filePath
	}
	if embeddedTrack != nil {
		a.Source.EmbeddedTrack = models.TrackID(*embeddedTrack)
	}
	if embeddedIndex != nil {
		a.Source.EmbeddedIndex = *embeddedIndex
	}
	return &a, nil
}

// --- TrackFeatures (Recommendation Engine loading) ---

func (s *Session) ListTrackFeatures(ctx context.Context) ([]models.TrackFeatures, error) {
	rows, err := s.q.Query(ctx, `SELECT track_id, feature_name, values FROM track_features ORDER BY track_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list track features: %w", err)
	}
	defer rows.Close()

	byTrack := make(map[models.TrackID]*models.TrackFeatures)
	var order []models.TrackID
	for rows.Next() {
		var trackID int64
		var name string
		var values []float64
		if err := rows.Scan(&trackID, &name, &values); err != nil {
			return nil, fmt.Errorf("store: scan track features: %w", err)
		}
		tid := models.TrackID(trackID)
		tf, ok := byTrack[tid]
		if !ok {
			tf = &models.TrackFeatures{TrackID: tid, FeatureMap: map[string][]float64{}}
			byTrack[tid] = tf
			order = append(order, tid)
		}
		tf.FeatureMap[name] = values
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.TrackFeatures, 0, len(order))
	for _, tid := range order {
		out = append(out, *byTrack[tid])
	}
	return out, nil
}

// TrackExists checks existence for the DB-existence filter FindSimilar applies
// before returning results.
func (s *Session) TrackExists(ctx context.Context, id models.TrackID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tracks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: track exists: %w", err)
	}
	return exists, nil
}

func (s *Session) ReleaseExists(ctx context.Context, id models.ReleaseID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM releases WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: release exists: %w", err)
	}
	return exists, nil
}

func (s *Session) ArtistExists(ctx context.Context, id models.ArtistID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM artists WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: artist exists: %w", err)
	}
	return exists, nil
}

// TrackReleaseAndArtists returns a track's release id and (artist id, link type)
// pairs, used by the recommendation engine's post-load indexing.
func (s *Session) TrackReleaseAndArtists(ctx context.Context, id models.TrackID) (*models.ReleaseID, []models.TrackArtistLink, error) {
	var releaseID *int64
	if err := s.q.QueryRow(ctx, `SELECT release_id FROM tracks WHERE id = $1`, id).Scan(&releaseID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("store: track release: %w", err)
	}

	rows, err := s.q.Query(ctx, `SELECT artist_id, role FROM track_artist_links WHERE track_id = $1`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("store: track artist links: %w", err)
	}
	defer rows.Close()

	var links []models.TrackArtistLink
	for rows.Next() {
		var artistID int64
		var role string
		if err := rows.Scan(&artistID, &role); err != nil {
			return nil, nil, fmt.Errorf("store: scan track artist link: %w", err)
		}
		links = append(links, models.TrackArtistLink{TrackID: id, ArtistID: models.ArtistID(artistID), Role: models.TrackArtistLinkType(role)})
	}

	var rel *models.ReleaseID
	if releaseID != nil {
		r := models.ReleaseID(*releaseID)
		rel = &r
	}
	return rel, links, rows.Err()
}

// --- Playlist ---

func (s *Session) UpsertPlaylist(ctx context.Context, p models.Playlist) (models.PlaylistID, error) {
	var id models.PlaylistID
	err := s.q.QueryRow(ctx, `
		INSERT INTO playlists (source_path, name) VALUES ($1,$2)
		ON CONFLICT (source_path) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, p.SourcePath, p.Name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert playlist %q: %w", p.SourcePath, err)
	}

	if _, err := s.q.Exec(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = $1`, id); err != nil {
		return 0, fmt.Errorf("store: clear playlist tracks: %w", err)
	}
	for i, trackID := range p.TrackIDs {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO playlist_tracks (playlist_id, position, track_id) VALUES ($1,$2,$3)
		`, id, i, trackID); err != nil {
			return 0, fmt.Errorf("store: insert playlist track: %w", err)
		}
	}
	return id, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
