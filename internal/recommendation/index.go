package recommendation

import (
	"context"
	"fmt"

	"lms/internal/models"
	"lms/internal/som"
)

// finishLoad rebuilds the post-load indexes (trackMatrix, release/artist
// positions+matrices) under one DB read transaction and memoizes
// networkRefVectorsDistanceMedian.
func (e *Engine) finishLoad(ctx context.Context, network *som.Network, trackPositions map[models.TrackID][]som.Position) error {
	session := e.store.Read()

	trackMatrix := make(map[som.Position][]models.TrackID)
	releasePositions := make(map[models.ReleaseID][]som.Position)
	releaseMatrix := make(map[som.Position][]models.ReleaseID)
	artistPositions := make(map[models.ArtistID][]som.Position)
	artistMatrix := make(map[models.TrackArtistLinkType]map[som.Position][]models.ArtistID)

	for trackID, positions := range trackPositions {
		for _, pos := range positions {
			trackMatrix[pos] = appendIfNotPresent(trackMatrix[pos], trackID)
		}

		releaseID, links, err := session.TrackReleaseAndArtists(ctx, trackID)
		if err != nil {
			return fmt.Errorf("recommendation: load track associations: %w", err)
		}

		if releaseID != nil {
			for _, pos := range positions {
				releasePositions[*releaseID] = appendPositionIfNotPresent(releasePositions[*releaseID], pos)
				releaseMatrix[pos] = appendIfNotPresent(releaseMatrix[pos], *releaseID)
			}
		}

		for _, link := range links {
			m, ok := artistMatrix[link.Role]
			if !ok {
				m = make(map[som.Position][]models.ArtistID)
				artistMatrix[link.Role] = m
			}
			for _, pos := range positions {
				artistPositions[link.ArtistID] = appendPositionIfNotPresent(artistPositions[link.ArtistID], pos)
				m[pos] = appendIfNotPresent(m[pos], link.ArtistID)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.network = network
	e.networkMedian = network.RefVectorsDistanceMedian()
	e.trackPositions = trackPositions
	e.trackMatrix = trackMatrix
	e.releasePositions = releasePositions
	e.releaseMatrix = releaseMatrix
	e.artistPositions = artistPositions
	e.artistMatrix = artistMatrix
	return nil
}

func appendIfNotPresent[T comparable](s []T, v T) []T {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func appendPositionIfNotPresent(s []som.Position, p som.Position) []som.Position {
	return appendIfNotPresent(s, p)
}
