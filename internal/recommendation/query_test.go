package recommendation

import (
	"testing"

	"lms/internal/som"
)

// TestGetSimilarObjects checks seed-set-growth similarity search with trackPositions
// = {T1:[(0,0)], T2:[(0,0)], T3:[(1,0)], T4:[(5,5)]} on a 6x6 grid with median
// neighbor distance 1.0: FindSimilarTracks([T1], 2) returns [T2, T3] in that order.
func TestGetSimilarObjects(t *testing.T) {
	network := som.New(6, 6, 1, nil)
	// Arrange ref vectors so (1,0) is within 0.75*median of (0,0) but (5,5) is not:
	// positionNorm (grid distance) isn't used by ClosestNeighborOf's distance test —
	// it uses refVectorsDistance, so shape the vectors accordingly.
	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			must(t, network.SetRefVector(som.Position{X: x, Y: y}, som.InputVector{float64(x + y)}))
		}
	}
	// (1,0) gets the same value as (0,0): distance 0 between them, while the median
	// neighbor distance stays 1.0.
	must(t, network.SetRefVector(som.Position{X: 1, Y: 0}, som.InputVector{0}))

	median := network.RefVectorsDistanceMedian()

	positions := map[int][]som.Position{
		1: {{X: 0, Y: 0}},
		2: {{X: 0, Y: 0}},
		3: {{X: 1, Y: 0}},
		4: {{X: 5, Y: 5}},
	}
	matrix := map[som.Position][]int{
		{X: 0, Y: 0}: {1, 2},
		{X: 1, Y: 0}: {3},
		{X: 5, Y: 5}: {4},
	}

	got := getSimilarObjects(network, median, []int{1}, matrix, positions, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("getSimilarObjects = %v, want [2 3]", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestGetSimilarObjectsEmptySeedReturnsEmpty(t *testing.T) {
	network := som.New(2, 2, 1, nil)
	positions := map[int][]som.Position{}
	matrix := map[som.Position][]int{}

	got := getSimilarObjects(network, 1.0, []int{99}, matrix, positions, 5)
	if len(got) != 0 {
		t.Fatalf("expected empty result for unseeded id, got %v", got)
	}
}

func TestGetSimilarObjectsExcludesInputIDs(t *testing.T) {
	network := som.New(2, 2, 1, nil)
	positions := map[int][]som.Position{
		1: {{X: 0, Y: 0}},
	}
	matrix := map[som.Position][]int{
		{X: 0, Y: 0}: {1},
	}

	got := getSimilarObjects(network, 1.0, []int{1}, matrix, positions, 5)
	if len(got) != 0 {
		t.Fatalf("expected input id to be excluded from results, got %v", got)
	}
}
