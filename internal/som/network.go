package som

import (
	"math"
	"math/rand/v2"
	"sort"
)

// matrix is a W×H grid of InputVector, row-major by y then x.
type matrix struct {
	width, height int
	cells         []InputVector
}

func newMatrix(width, height, dimCount int) matrix {
	cells := make([]InputVector, width*height)
	for i := range cells {
		cells[i] = make(InputVector, dimCount)
	}
	return matrix{width: width, height: height, cells: cells}
}

func (m matrix) at(p Position) InputVector { return m.cells[p.Y*m.width+p.X] }

func (m matrix) set(p Position, v InputVector) { m.cells[p.Y*m.width+p.X] = v }

// Network is a fixed-size 2-D grid of reference vectors, trained to topologically
// approximate an input distribution.
type Network struct {
	width, height int
	inputDimCount int
	weights       InputVector
	refVectors    matrix
	rng           *rand.Rand
}

// New allocates a W×H grid; each cell is initialized with uniform random values in
// [0,1]^D, and the data-weight vector is initialized to 1^D.
func New(width, height, inputDimCount int, rng *rand.Rand) *Network {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	n := &Network{
		width:         width,
		height:        height,
		inputDimCount: inputDimCount,
		weights:       make(InputVector, inputDimCount),
		refVectors:    newMatrix(width, height, inputDimCount),
		rng:           rng,
	}
	for i := range n.weights {
		n.weights[i] = 1
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := n.refVectors.at(Position{x, y})
			for i := range v {
				v[i] = rng.Float64()
			}
		}
	}
	return n
}

func (n *Network) Width() int         { return n.width }
func (n *Network) Height() int        { return n.height }
func (n *Network) InputDimCount() int { return n.inputDimCount }
func (n *Network) DataWeights() InputVector { return n.weights }

// SetDataWeights replaces the weight vector; len(w) must equal D.
func (n *Network) SetDataWeights(w InputVector) error {
	if err := n.weights.checkSameDimension(w); err != nil {
		return err
	}
	n.weights = w.Clone()
	return nil
}

// SetRefVector replaces one cell's reference vector; len(v) must equal D.
func (n *Network) SetRefVector(pos Position, v InputVector) error {
	if len(v) != n.inputDimCount {
		return &ErrDimensionMismatch{Want: n.inputDimCount, Got: len(v)}
	}
	n.refVectors.set(pos, v.Clone())
	return nil
}

// RefVector returns the reference vector stored at pos.
func (n *Network) RefVector(pos Position) InputVector {
	return n.refVectors.at(pos)
}

func (n *Network) refVectorsDistance(a, b Position) float64 {
	return n.refVectors.at(a).EuclideanSquareDistance(n.refVectors.at(b), n.weights)
}

// RefVectorsDistanceMedian returns the median of all neighbor-pair distances along
// the grid (W·(H-1) + H·(W-1) pairs): `values[size>1 ? size/2-1 : 0]` after sorting
// ascending, not a textbook median.
func (n *Network) RefVectorsDistanceMedian() float64 {
	values := n.neighborPairDistances()
	sort.Float64s(values)
	if len(values) > 1 {
		return values[len(values)/2-1]
	}
	if len(values) == 1 {
		return values[0]
	}
	return 0
}

func (n *Network) neighborPairDistances() []float64 {
	values := make([]float64, 0, 2*n.width*n.height-n.width-n.height)
	for y := 0; y < n.height; y++ {
		for x := 0; x < n.width; x++ {
			if x != n.width-1 {
				values = append(values, n.refVectorsDistance(Position{x, y}, Position{x + 1, y}))
			}
			if y != n.height-1 {
				values = append(values, n.refVectorsDistance(Position{x, y}, Position{x, y + 1}))
			}
		}
	}
	return values
}

// ClosestRefVectorPosition returns the grid position whose reference vector
// minimizes d²(ref, v, weights); ties are broken by (row, column) lexicographic
// order since it scans y-major, x-minor and only replaces on strict improvement.
func (n *Network) ClosestRefVectorPosition(v InputVector) Position {
	best := Position{0, 0}
	bestDist := n.refVectors.at(best).EuclideanSquareDistance(v, n.weights)
	for y := 0; y < n.height; y++ {
		for x := 0; x < n.width; x++ {
			p := Position{x, y}
			d := n.refVectors.at(p).EuclideanSquareDistance(v, n.weights)
			if d < bestDist {
				bestDist = d
				best = p
			}
		}
	}
	return best
}

// ClosestRefVectorPositionWithin returns ClosestRefVectorPosition(v), or false if
// its distance exceeds maxDistance.
func (n *Network) ClosestRefVectorPositionWithin(v InputVector, maxDistance float64) (Position, bool) {
	p := n.ClosestRefVectorPosition(v)
	if n.refVectors.at(p).EuclideanSquareDistance(v, n.weights) > maxDistance {
		return Position{}, false
	}
	return p, true
}

// ClosestNeighborOf returns a von-Neumann-adjacent grid position to any position in
// seeds (but not itself in seeds) whose distance to its nearest seed member is
// minimal and ≤ maxDistance; the zero value and false if no such neighbor exists.
// This is the primitive the seed-set-growth similarity query builds on.
func (n *Network) ClosestNeighborOf(seeds []Position, maxDistance float64) (Position, bool) {
	inSeeds := make(map[Position]bool, len(seeds))
	for _, p := range seeds {
		inSeeds[p] = true
	}

	candidates := map[Position]bool{}
	for _, p := range seeds {
		if p.Y > 0 {
			candidates[Position{p.X, p.Y - 1}] = true
		}
		if p.Y < n.height-1 {
			candidates[Position{p.X, p.Y + 1}] = true
		}
		if p.X > 0 {
			candidates[Position{p.X - 1, p.Y}] = true
		}
		if p.X < n.width-1 {
			candidates[Position{p.X + 1, p.Y}] = true
		}
	}
	for p := range inSeeds {
		delete(candidates, p)
	}
	if len(candidates) == 0 {
		return Position{}, false
	}

	type neighborInfo struct {
		pos      Position
		distance float64
	}
	var infos []neighborInfo
	for cand := range candidates {
		minDist := math.MaxFloat64
		for _, seed := range seeds {
			d := n.refVectorsDistance(seed, cand)
			if d < minDist {
				minDist = d
			}
		}
		if minDist > maxDistance {
			continue
		}
		infos = append(infos, neighborInfo{pos: cand, distance: minDist})
	}
	if len(infos) == 0 {
		return Position{}, false
	}

	best := infos[0]
	for _, info := range infos[1:] {
		if info.distance < best.distance {
			best = info
		}
	}
	return best.pos, true
}

// CurrentIteration carries the loop index and total count the learning-rate and
// neighborhood-sigma decay schedules are keyed on.
type CurrentIteration struct {
	IDIteration    int
	IterationCount int
}

func learningFactor(iter CurrentIteration) float64 {
	return math.Exp(-(float64(iter.IDIteration+1) / float64(iter.IterationCount)))
}

func sigma(iter CurrentIteration) float64 {
	return math.Exp(-(float64(iter.IDIteration+1) / float64(iter.IterationCount)))
}

func neighborhood(norm float64, iter CurrentIteration) float64 {
	s := sigma(iter)
	return math.Exp(-(norm * norm) / (2 * s * s))
}

func (n *Network) updateRefVectors(closest Position, input InputVector, lf float64, iter CurrentIteration) {
	for y := 0; y < n.height; y++ {
		for x := 0; x < n.width; x++ {
			p := Position{x, y}
			ref := n.refVectors.at(p)
			norm := positionNorm(p, closest)
			delta := input.Sub(ref).Scale(lf * neighborhood(norm, iter))
			n.refVectors.set(p, ref.Add(delta))
		}
	}
}

// Train runs nbIterations passes over samples, shuffling each iteration (Fisher-
// Yates via n.rng) before applying the SOM update rule. shouldStop is checked once
// per iteration and once per sample; onIter is invoked at the start of every
// iteration with the current progress.
func (n *Network) Train(samples []InputVector, nbIterations int, onIter func(CurrentIteration), shouldStop func() bool) {
	shuffled := make([]InputVector, len(samples))
	copy(shuffled, samples)

	for i := 0; i < nbIterations; i++ {
		iter := CurrentIteration{IDIteration: i, IterationCount: nbIterations}
		if onIter != nil {
			onIter(iter)
		}

		n.rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		lf := learningFactor(iter)
		for _, sample := range shuffled {
			if shouldStop != nil && shouldStop() {
				return
			}
			closest := n.ClosestRefVectorPosition(sample)
			n.updateRefVectors(closest, sample, lf, iter)
		}
	}
}
