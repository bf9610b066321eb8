package som

import (
	"math/rand/v2"
	"os"
	"testing"

	"lms/internal/models"
)

func newTestRNG() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

// TestClosestRefVectorPosition checks a 2x2 grid with ref vectors at the corners of
// the unit square.
func TestClosestRefVectorPosition(t *testing.T) {
	n := New(2, 2, 2, newTestRNG())
	must(t, n.SetRefVector(Position{0, 0}, InputVector{0, 0}))
	must(t, n.SetRefVector(Position{1, 0}, InputVector{1, 0}))
	must(t, n.SetRefVector(Position{0, 1}, InputVector{0, 1}))
	must(t, n.SetRefVector(Position{1, 1}, InputVector{1, 1}))

	got := n.ClosestRefVectorPosition(InputVector{0.9, 0.1})
	want := Position{1, 0}
	if got != want {
		t.Fatalf("ClosestRefVectorPosition = %+v, want %+v", got, want)
	}
}

// TestClosestNeighborOfZeroMaxDistance checks that a maxDistance of 0 only matches
// an exact tie, never an arbitrary nearest neighbor.
func TestClosestNeighborOfZeroMaxDistance(t *testing.T) {
	n := New(3, 3, 1, newTestRNG())
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			must(t, n.SetRefVector(Position{x, y}, InputVector{float64(x + y)}))
		}
	}

	_, ok := n.ClosestNeighborOf([]Position{{1, 1}}, 0)
	if ok {
		t.Fatal("expected no neighbor within maxDistance=0 when no adjacent cell has distance exactly 0")
	}

	must(t, n.SetRefVector(Position{1, 1}, InputVector{5}))
	must(t, n.SetRefVector(Position{2, 1}, InputVector{5}))
	pos, ok := n.ClosestNeighborOf([]Position{{1, 1}}, 0)
	if !ok || pos != (Position{2, 1}) {
		t.Fatalf("ClosestNeighborOf = %+v, %v, want {2 1}, true", pos, ok)
	}
}

// TestTrainKeepsRefVectorsFiniteAndCorrectLength checks that training never leaves a
// ref vector with NaN values or the wrong dimensionality.
func TestTrainKeepsRefVectorsFiniteAndCorrectLength(t *testing.T) {
	n := New(3, 3, 4, newTestRNG())
	samples := []InputVector{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0.5, 0.2, 0.8, 0.1},
	}
	n.Train(samples, 5, nil, nil)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			ref := n.RefVector(Position{x, y})
			if len(ref) != 4 {
				t.Fatalf("ref vector at (%d,%d) has length %d, want 4", x, y, len(ref))
			}
			for _, v := range ref {
				if v != v { // NaN check without importing math
					t.Fatalf("ref vector at (%d,%d) contains NaN", x, y)
				}
			}
		}
	}
}

func TestTrainStopsOnShouldStop(t *testing.T) {
	n := New(2, 2, 1, newTestRNG())
	before := n.RefVector(Position{0, 0}).Clone()

	calls := 0
	n.Train([]InputVector{{1}, {2}, {3}}, 10, nil, func() bool {
		calls++
		return true
	})

	after := n.RefVector(Position{0, 0})
	if len(after) != len(before) {
		t.Fatalf("unexpected ref vector length change")
	}
	if calls == 0 {
		t.Fatal("shouldStop was never called")
	}
}

// TestCacheRoundTrip checks that serializing and deserializing a Network yields
// identical width/height/dimCount/weights/ref vectors.
func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	n := New(2, 3, 2, newTestRNG())
	must(t, n.SetDataWeights(InputVector{0.5, 2}))
	must(t, n.SetRefVector(Position{1, 2}, InputVector{9.5, -1.25}))

	if err := WriteNetwork(dir, n); err != nil {
		t.Fatalf("WriteNetwork: %v", err)
	}

	got, ok := ReadNetwork(dir, 1, 2)
	if !ok {
		t.Fatal("ReadNetwork: cache reported absent")
	}
	if got.Width() != n.Width() || got.Height() != n.Height() || got.InputDimCount() != n.InputDimCount() {
		t.Fatalf("dims mismatch: got (%d,%d,%d) want (%d,%d,%d)", got.Width(), got.Height(), got.InputDimCount(), n.Width(), n.Height(), n.InputDimCount())
	}
	for i, w := range n.DataWeights() {
		if got.DataWeights()[i] != w {
			t.Fatalf("weight[%d] = %v, want %v", i, got.DataWeights()[i], w)
		}
	}
	for x := 0; x < n.Width(); x++ {
		for y := 0; y < n.Height(); y++ {
			want := n.RefVector(Position{x, y})
			gotRef := got.RefVector(Position{x, y})
			for i := range want {
				if gotRef[i] != want[i] {
					t.Fatalf("ref vector (%d,%d)[%d] = %v, want %v", x, y, i, gotRef[i], want[i])
				}
			}
		}
	}
}

func TestReadNetworkAbsentWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	_, ok := ReadNetwork(dir, 1, 2)
	if ok {
		t.Fatal("expected ReadNetwork to report absent cache for empty directory")
	}
}

func TestReadNetworkAbsentWhenMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(CacheDir(dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(networkFilePath(dir), []byte("not xml"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, ok := ReadNetwork(dir, 1, 2)
	if ok {
		t.Fatal("expected ReadNetwork to report absent cache for malformed file")
	}
}

func TestTrackPositionsCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	positions := map[models.TrackID][]Position{
		1: {{0, 0}},
		2: {{1, 1}, {2, 2}},
	}
	if err := WriteTrackPositions(dir, positions); err != nil {
		t.Fatalf("WriteTrackPositions: %v", err)
	}
	got, ok := ReadTrackPositions(dir)
	if !ok {
		t.Fatal("ReadTrackPositions: cache reported absent")
	}
	if len(got[1]) != 1 || got[1][0] != (Position{0, 0}) {
		t.Fatalf("track 1 positions = %+v", got[1])
	}
	if len(got[2]) != 2 {
		t.Fatalf("track 2 positions = %+v", got[2])
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
