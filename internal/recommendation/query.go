package recommendation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"lms/internal/models"
	"lms/internal/som"
)

// getMatchingRefVectorsPosition collects the deduplicated, insertion-order-preserving
// union of positions[id] for id in ids.
func getMatchingRefVectorsPosition[ID comparable](ids []ID, positions map[ID][]som.Position) []som.Position {
	var res []som.Position
	for _, id := range ids {
		for _, pos := range positions[id] {
			res = appendPositionIfNotPresent(res, pos)
		}
	}
	return res
}

// getObjectsIds collects the deduplicated union of matrix[p] for p in positions.
func getObjectsIds[ID comparable](positions []som.Position, matrix map[som.Position][]ID) []ID {
	var res []ID
	for _, pos := range positions {
		for _, id := range matrix[pos] {
			res = appendIfNotPresent(res, id)
		}
	}
	return res
}

func contains[ID comparable](ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// getSimilarObjects is the generic seed-set-growth similarity search: seed the
// search with the input ids' positions, harvest candidates, and grow the seed set by
// one grid neighbor at a time (bounded by 0.75·networkRefVectorsDistanceMedian)
// until maxCount results are found or no qualifying neighbor remains.
func getSimilarObjects[ID comparable](network *som.Network, median float64, ids []ID, matrix map[som.Position][]ID, positions map[ID][]som.Position, maxCount int) []ID {
	var res []ID

	searched := getMatchingRefVectorsPosition(ids, positions)
	if len(searched) == 0 {
		return res
	}

	for {
		closest := getObjectsIds(searched, matrix)

		var filtered []ID
		for _, id := range closest {
			if !contains(ids, id) {
				filtered = append(filtered, id)
			}
		}

		for _, id := range filtered {
			if len(res) == maxCount {
				break
			}
			res = appendIfNotPresent(res, id)
		}
		if len(res) == maxCount {
			break
		}

		grown, ok := network.ClosestNeighborOf(searched, median*0.75)
		if !ok {
			break
		}
		searched = appendPositionIfNotPresent(searched, grown)
	}

	return res
}

// FindSimilarTracks answers the track similarity query, filtering the result to ids
// that still exist in the DB at the time of return.
func (e *Engine) FindSimilarTracks(ctx context.Context, inputIDs []models.TrackID, maxCount int) ([]models.TrackID, error) {
	e.mu.RLock()
	if e.network == nil {
		e.mu.RUnlock()
		return nil, nil
	}
	res := getSimilarObjects(e.network, e.networkMedian, inputIDs, e.trackMatrix, e.trackPositions, maxCount)
	e.mu.RUnlock()

	return filterExisting(ctx, res, e.store.Read().TrackExists)
}

// FindSimilarReleases answers the release similarity query.
func (e *Engine) FindSimilarReleases(ctx context.Context, inputIDs []models.ReleaseID, maxCount int) ([]models.ReleaseID, error) {
	e.mu.RLock()
	if e.network == nil {
		e.mu.RUnlock()
		return nil, nil
	}
	res := getSimilarObjects(e.network, e.networkMedian, inputIDs, e.releaseMatrix, e.releasePositions, maxCount)
	e.mu.RUnlock()

	return filterExisting(ctx, res, e.store.Read().ReleaseExists)
}

// FindSimilarArtists answers the artist similarity query. Results are unioned
// across each requested link type's matrix; if the union exceeds maxCount, entries
// are dropped uniformly at random down to maxCount.
func (e *Engine) FindSimilarArtists(ctx context.Context, inputIDs []models.ArtistID, linkTypes []models.TrackArtistLinkType, maxCount int) ([]models.ArtistID, error) {
	e.mu.RLock()
	if e.network == nil {
		e.mu.RUnlock()
		return nil, nil
	}

	var union []models.ArtistID
	for _, lt := range linkTypes {
		matrix, ok := e.artistMatrix[lt]
		if !ok {
			continue
		}
		for _, id := range getSimilarObjects(e.network, e.networkMedian, inputIDs, matrix, e.artistPositions, maxCount) {
			union = appendIfNotPresent(union, id)
		}
	}
	e.mu.RUnlock()

	if len(union) > maxCount {
		rand.Shuffle(len(union), func(i, j int) { union[i], union[j] = union[j], union[i] })
		union = union[:maxCount]
	}

	return filterExisting(ctx, union, e.store.Read().ArtistExists)
}

func filterExisting[ID comparable](ctx context.Context, ids []ID, exists func(context.Context, ID) (bool, error)) ([]ID, error) {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		ok, err := exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("recommendation: check existence: %w", err)
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}
