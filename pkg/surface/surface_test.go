package surface

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// buildBlock creates a binary volume with a solid foreground block spanning
// the inclusive index range [lo, hi] on every axis.
func buildBlock(width, height, depth, lo, hi int) *volume.VolumeBuffer {
	vol := volume.New(width, height, depth)
	for z := lo; z <= hi; z++ {
		for y := lo; y <= hi; y++ {
			for x := lo; x <= hi; x++ {
				vol.Set(x, y, z, 1)
			}
		}
	}
	return vol
}

// TestExtractSurfaceCube verifies that a solid block yields a closed surface
// whose bounding box sits halfway between foreground and background voxel
// centers.
func TestExtractSurfaceCube(t *testing.T) {
	vol := buildBlock(8, 8, 8, 2, 4)

	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed: %v", err)
	}

	if model.IsEmpty() {
		t.Fatal("Expected non-empty surface model for a solid block")
	}
	if !model.IsClosed() {
		t.Error("Expected a closed surface, found boundary edges")
	}

	min, max := model.BoundingBox()
	const tol = 0.02
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-1.5) > tol {
			t.Errorf("Expected bounding box min 1.5 on axis %d, got %f", i, min[i])
		}
		if math.Abs(max[i]-4.5) > tol {
			t.Errorf("Expected bounding box max 4.5 on axis %d, got %f", i, max[i])
		}
	}
}

// TestExtractSurfaceSpacingAndOrigin verifies that anisotropic spacing and a
// non-zero origin carry through to the vertex coordinates.
func TestExtractSurfaceSpacingAndOrigin(t *testing.T) {
	vol := buildBlock(8, 8, 8, 2, 4)
	vol.Spacing = [3]float64{0.5, 0.5, 2.0}
	vol.Origin = [3]float64{10, -5, 2}

	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed: %v", err)
	}
	if !model.IsClosed() {
		t.Error("Expected a closed surface, found boundary edges")
	}

	min, max := model.BoundingBox()
	wantMin := [3]float64{10 + 1.5*0.5, -5 + 1.5*0.5, 2 + 1.5*2.0}
	wantMax := [3]float64{10 + 4.5*0.5, -5 + 4.5*0.5, 2 + 4.5*2.0}
	const tol = 0.02
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("Expected bounding box min %f on axis %d, got %f", wantMin[i], i, min[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("Expected bounding box max %f on axis %d, got %f", wantMax[i], i, max[i])
		}
	}
}

// TestExtractSurfaceSingleVoxel verifies the smallest possible foreground,
// one voxel, still produces a closed surface around its center.
func TestExtractSurfaceSingleVoxel(t *testing.T) {
	vol := volume.New(3, 3, 3)
	vol.Set(1, 1, 1, 1)

	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed: %v", err)
	}

	if model.NumTriangles() < 8 {
		t.Errorf("Expected at least 8 triangles around a voxel, got %d", model.NumTriangles())
	}
	if !model.IsClosed() {
		t.Error("Expected a closed surface, found boundary edges")
	}

	min, max := model.BoundingBox()
	const tol = 0.02
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-0.5) > tol || math.Abs(max[i]-1.5) > tol {
			t.Errorf("Expected bounding box [0.5, 1.5] on axis %d, got [%f, %f]", i, min[i], max[i])
		}
	}
}

// TestExtractSurfaceEmpty verifies that a volume without foreground voxels
// yields an empty model rather than an error.
func TestExtractSurfaceEmpty(t *testing.T) {
	vol := volume.New(4, 4, 4)

	ext := &Extractor{}
	model, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("ExtractSurface failed on empty volume: %v", err)
	}
	if !model.IsEmpty() {
		t.Errorf("Expected empty model, got %d triangles", model.NumTriangles())
	}
	if model.NumVertices() != 0 {
		t.Errorf("Expected 0 vertices, got %d", model.NumVertices())
	}
}

// TestExtractSurfaceDeterministic verifies that extracting the same volume
// twice yields identical models, independent of mesh iteration order.
func TestExtractSurfaceDeterministic(t *testing.T) {
	vol := buildBlock(8, 8, 8, 2, 5)
	vol.Set(6, 3, 3, 1)

	ext := &Extractor{}
	first, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("First extraction failed: %v", err)
	}
	second, err := ext.ExtractSurface(vol)
	if err != nil {
		t.Fatalf("Second extraction failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical models from repeated extraction")
	}
}

// TestExtractSurfaceValidation verifies input checks.
func TestExtractSurfaceValidation(t *testing.T) {
	ext := &Extractor{}

	if _, err := ext.ExtractSurface(nil); !errors.Is(err, volume.ErrMissingVolume) {
		t.Errorf("Expected ErrMissingVolume for nil input, got %v", err)
	}

	vol := volume.New(3, 3, 3)
	vol.Set(1, 1, 1, 0.7)
	if _, err := ext.ExtractSurface(vol); !errors.Is(err, volume.ErrNotBinary) {
		t.Errorf("Expected ErrNotBinary for non-binary input, got %v", err)
	}
}

// TestSurfaceModelIsClosed verifies the watertightness check on a hand-built
// open mesh.
func TestSurfaceModelIsClosed(t *testing.T) {
	open := &SurfaceModel{
		vertices: [][3]float64{
			{0, 0, 0},
			{1, 0, 0},
			{0, 1, 0},
		},
		triangles: [][3]int{{0, 1, 2}},
	}
	if open.IsClosed() {
		t.Error("Expected a lone triangle to be reported as open")
	}

	empty := &SurfaceModel{}
	if !empty.IsClosed() {
		t.Error("Expected an empty model to be reported as closed")
	}
}

// BenchmarkExtractSurface measures surface extraction over a solid sphere.
func BenchmarkExtractSurface(b *testing.B) {
	size := 24
	vol := volume.New(size, size, size)
	center := float64(size-1) / 2
	radius := float64(size) / 3
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius {
					vol.Set(x, y, z, 1)
				}
			}
		}
	}

	ext := &Extractor{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ext.ExtractSurface(vol); err != nil {
			b.Fatalf("ExtractSurface failed: %v", err)
		}
	}
}
