package som

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"lms/internal/models"
)

// CacheDir returns the two-sibling-file directory the SOM cache lives in:
// <workingDir>/cache/features/.
func CacheDir(workingDir string) string {
	return filepath.Join(workingDir, "cache", "features")
}

func networkFilePath(workingDir string) string { return filepath.Join(CacheDir(workingDir), "network") }
func positionsFilePath(workingDir string) string {
	return filepath.Join(CacheDir(workingDir), "track_positions")
}

// xmlNetwork mirrors the "network" cache file's XML element layout.
type xmlNetwork struct {
	XMLName   xml.Name        `xml:"root"`
	Width     int             `xml:"width"`
	Height    int             `xml:"height"`
	DimCount  int             `xml:"dim_count"`
	Weights   xmlWeights      `xml:"weights"`
	RefVectors xmlRefVectors  `xml:"ref_vectors"`
}

type xmlWeights struct {
	Weight []float64 `xml:"weight"`
}

type xmlRefVectors struct {
	RefVector []xmlRefVector `xml:"ref_vector"`
}

type xmlRefVector struct {
	Values xmlValues `xml:"values"`
	CoordX int       `xml:"coord_x"`
	CoordY int        `xml:"coord_y"`
}

type xmlValues struct {
	Value []float64 `xml:"value"`
}

// WriteNetwork persists a trained Network to the "network" cache file. A write
// failure should cause the caller to invalidate (delete) both cache files and log.
func WriteNetwork(workingDir string, n *Network) error {
	doc := xmlNetwork{
		Width:    n.width,
		Height:   n.height,
		DimCount: n.inputDimCount,
		Weights:  xmlWeights{Weight: []float64(n.weights)},
	}
	for x := 0; x < n.width; x++ {
		for y := 0; y < n.height; y++ {
			ref := n.refVectors.at(Position{x, y})
			doc.RefVectors.RefVector = append(doc.RefVectors.RefVector, xmlRefVector{
				Values: xmlValues{Value: []float64(ref)},
				CoordX: x,
				CoordY: y,
			})
		}
	}

	dir := CacheDir(workingDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("som: create cache dir: %w", err)
	}
	return writeXMLFile(networkFilePath(workingDir), doc)
}

// ReadNetwork deserializes the "network" cache file. Either file missing or
// malformed is reported via the second return value being false, signaling the
// caller to start training from scratch.
func ReadNetwork(workingDir string, rngSeed1, rngSeed2 uint64) (*Network, bool) {
	path := networkFilePath(workingDir)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	var doc xmlNetwork
	if err := readXMLFile(path, &doc); err != nil {
		return nil, false
	}
	if doc.DimCount <= 0 || doc.Width <= 0 || doc.Height <= 0 {
		return nil, false
	}
	if len(doc.Weights.Weight) != doc.DimCount {
		return nil, false
	}

	n := New(doc.Width, doc.Height, doc.DimCount, rand.New(rand.NewPCG(rngSeed1, rngSeed2)))
	if err := n.SetDataWeights(InputVector(slices.Clone(doc.Weights.Weight))); err != nil {
		return nil, false
	}
	for _, rv := range doc.RefVectors.RefVector {
		if len(rv.Values.Value) != doc.DimCount {
			return nil, false
		}
		if err := n.SetRefVector(Position{rv.CoordX, rv.CoordY}, InputVector(slices.Clone(rv.Values.Value))); err != nil {
			return nil, false
		}
	}
	return n, true
}

// xmlTrackPositions mirrors the "track_positions" cache file's XML element layout.
type xmlTrackPositions struct {
	XMLName xml.Name        `xml:"root"`
	Objects xmlObjectsList  `xml:"objects"`
}

type xmlObjectsList struct {
	Object []xmlObject `xml:"object"`
}

type xmlObject struct {
	ID       int64             `xml:"id"`
	Position xmlPositionsList `xml:"position"`
}

type xmlPositionsList struct {
	Position []xmlPosition `xml:"position"`
}

type xmlPosition struct {
	X int `xml:"x"`
	Y int `xml:"y"`
}

// WriteTrackPositions persists the track→positions index to the "track_positions"
// cache file.
func WriteTrackPositions(workingDir string, positions map[models.TrackID][]Position) error {
	doc := xmlTrackPositions{}
	ids := make([]models.TrackID, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		obj := xmlObject{ID: int64(id)}
		for _, p := range positions[id] {
			obj.Position.Position = append(obj.Position.Position, xmlPosition{X: p.X, Y: p.Y})
		}
		doc.Objects.Object = append(doc.Objects.Object, obj)
	}

	dir := CacheDir(workingDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("som: create cache dir: %w", err)
	}
	return writeXMLFile(positionsFilePath(workingDir), doc)
}

// ReadTrackPositions deserializes the "track_positions" cache file.
func ReadTrackPositions(workingDir string) (map[models.TrackID][]Position, bool) {
	path := positionsFilePath(workingDir)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	var doc xmlTrackPositions
	if err := readXMLFile(path, &doc); err != nil {
		return nil, false
	}

	out := make(map[models.TrackID][]Position, len(doc.Objects.Object))
	for _, obj := range doc.Objects.Object {
		id := models.TrackID(obj.ID)
		for _, p := range obj.Position.Position {
			out[id] = append(out[id], Position{X: p.X, Y: p.Y})
		}
	}
	return out, true
}

// Invalidate deletes both cache files.
func Invalidate(workingDir string) {
	os.Remove(networkFilePath(workingDir))
	os.Remove(positionsFilePath(workingDir))
}

func writeXMLFile(path string, v any) error {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readXMLFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("som: empty cache file")
	}
	return xml.Unmarshal(data, v)
}
