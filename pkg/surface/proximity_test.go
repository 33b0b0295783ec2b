package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// bruteForceNearest scans all vertices for the closest one to the probe.
func bruteForceNearest(model *SurfaceModel, probe [3]float64) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < model.NumVertices(); i++ {
		v := model.Vertex(i)
		dx := v[0] - probe[0]
		dy := v[1] - probe[1]
		dz := v[2] - probe[2]
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

// TestProximityNearestMatchesBruteForce verifies KD-tree queries against a
// linear scan over the vertices.
func TestProximityNearestMatchesBruteForce(t *testing.T) {
	vol := buildBlock(8, 8, 8, 2, 4)
	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed: %v", err)
	}

	index, err := NewProximityIndex(model)
	if err != nil {
		t.Fatalf("NewProximityIndex failed: %v", err)
	}

	probes := [][3]float64{
		{0, 0, 0},
		{3, 3, 3},
		{10, 2, 3},
		{-4.5, 7.1, 0.2},
	}
	for _, probe := range probes {
		_, wantDist := bruteForceNearest(model, probe)
		_, gotDist := index.Nearest(probe)
		if math.Abs(gotDist-wantDist) > 1e-9 {
			t.Errorf("Probe %v: expected distance %f, got %f", probe, wantDist, gotDist)
		}
	}
}

// TestProximityNearestN verifies ordering and bounds of multi-neighbor
// queries.
func TestProximityNearestN(t *testing.T) {
	vol := buildBlock(8, 8, 8, 2, 4)
	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed: %v", err)
	}
	index, err := NewProximityIndex(model)
	if err != nil {
		t.Fatalf("NewProximityIndex failed: %v", err)
	}

	probe := [3]float64{0, 0, 0}
	results := index.NearestN(probe, 5)
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("Expected distances in increasing order, got %f before %f",
				results[i-1].Distance, results[i].Distance)
		}
	}

	_, nearestDist := index.Nearest(probe)
	if math.Abs(results[0].Distance-nearestDist) > 1e-9 {
		t.Errorf("Expected first result distance %f to match Nearest, got %f",
			nearestDist, results[0].Distance)
	}

	// Requests larger than the vertex count return every vertex.
	all := index.NearestN(probe, model.NumVertices()+10)
	if len(all) != model.NumVertices() {
		t.Errorf("Expected %d results, got %d", model.NumVertices(), len(all))
	}

	if got := index.NearestN(probe, 0); got != nil {
		t.Errorf("Expected nil for n=0, got %d results", len(got))
	}
}

// TestProximityIndexValidation verifies that empty models are rejected.
func TestProximityIndexValidation(t *testing.T) {
	if _, err := NewProximityIndex(nil); !errors.Is(err, volume.ErrMissingVolume) {
		t.Errorf("Expected ErrMissingVolume for nil model, got %v", err)
	}
	if _, err := NewProximityIndex(&SurfaceModel{}); !errors.Is(err, volume.ErrMissingVolume) {
		t.Errorf("Expected ErrMissingVolume for empty model, got %v", err)
	}
}
