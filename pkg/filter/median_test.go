package filter

import (
	"errors"
	"testing"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// TestMedianPreservesGeometry verifies that output dimensions and geometric
// metadata match the input for valid radii, and that the input is never
// mutated.
func TestMedianPreservesGeometry(t *testing.T) {
	vol := volume.New(6, 5, 4)
	vol.Spacing = [3]float64{0.5, 0.5, 1.5}
	vol.Origin = [3]float64{-10, 3, 7}
	for i := range vol.Data {
		vol.Data[i] = float64(i % 7)
	}
	original := vol.Clone()

	for _, radius := range []int{1, 2} {
		stage := &MedianStage{Radius: radius}
		out, err := stage.Apply(vol)
		if err != nil {
			t.Fatalf("Failed to apply median filter with radius %d: %v", radius, err)
		}

		if out.Width != vol.Width || out.Height != vol.Height || out.Depth != vol.Depth {
			t.Errorf("Expected dimensions %dx%dx%d, got %dx%dx%d",
				vol.Width, vol.Height, vol.Depth, out.Width, out.Height, out.Depth)
		}
		if out.Spacing != vol.Spacing || out.Origin != vol.Origin || out.Direction != vol.Direction {
			t.Errorf("Expected geometry to be preserved for radius %d", radius)
		}
	}

	for i := range vol.Data {
		if vol.Data[i] != original.Data[i] {
			t.Fatalf("Expected input to be unmodified, found change at index %d", i)
		}
	}
}

// TestMedianConstantAndImpulse verifies that a constant volume passes
// through unchanged and that an isolated impulse is removed.
func TestMedianConstantAndImpulse(t *testing.T) {
	constant := volume.New(4, 4, 4)
	for i := range constant.Data {
		constant.Data[i] = 7.5
	}

	stage := &MedianStage{Radius: 1}
	out, err := stage.Apply(constant)
	if err != nil {
		t.Fatalf("Failed to apply median filter: %v", err)
	}
	for i, val := range out.Data {
		if val != 7.5 {
			t.Fatalf("Expected constant volume to be unchanged, got %f at index %d", val, i)
		}
	}

	// A single bright voxel surrounded by zeros must disappear
	impulse := volume.New(5, 5, 5)
	impulse.Set(2, 2, 2, 1000)

	out, err = stage.Apply(impulse)
	if err != nil {
		t.Fatalf("Failed to apply median filter: %v", err)
	}
	if out.At(2, 2, 2) != 0 {
		t.Errorf("Expected impulse to be removed, got %f", out.At(2, 2, 2))
	}
}

// TestMedianEdgeReplication verifies boundary handling on an x-gradient
// volume, where edge replication leaves the gradient exactly in place.
func TestMedianEdgeReplication(t *testing.T) {
	vol := volume.New(3, 3, 3)
	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				vol.Set(x, y, z, float64(x))
			}
		}
	}

	stage := &MedianStage{Radius: 1}
	out, err := stage.Apply(vol)
	if err != nil {
		t.Fatalf("Failed to apply median filter: %v", err)
	}

	// With replication the x=0 plane sees values {0 (x18), 1 (x9)}, the
	// x=1 plane {0 (x9), 1 (x9), 2 (x9)}, and the x=2 plane {1 (x9), 2 (x18)}
	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				if out.At(x, y, z) != float64(x) {
					t.Errorf("Expected median %d at (%d,%d,%d), got %f", x, x, y, z, out.At(x, y, z))
				}
			}
		}
	}
}

// TestMedianNotIdempotent verifies that a second application can change the
// result again: on a 3D checkerboard the 27-voxel window holds 13 voxels of
// the center's parity and 14 of the opposite parity, so one pass inverts
// the pattern and a second pass inverts it back.
func TestMedianNotIdempotent(t *testing.T) {
	vol := volume.New(6, 6, 6)
	for z := 0; z < 6; z++ {
		for y := 0; y < 6; y++ {
			for x := 0; x < 6; x++ {
				vol.Set(x, y, z, float64((x+y+z)%2))
			}
		}
	}

	stage := &MedianStage{Radius: 1}
	once, err := stage.Apply(vol)
	if err != nil {
		t.Fatalf("Failed to apply median filter: %v", err)
	}
	twice, err := stage.Apply(once)
	if err != nil {
		t.Fatalf("Failed to apply median filter twice: %v", err)
	}

	// The center voxel has a full interior neighborhood in both passes
	if once.At(3, 3, 3) == twice.At(3, 3, 3) {
		t.Error("Expected second application to differ from the first at the center voxel")
	}
	if twice.At(3, 3, 3) != vol.At(3, 3, 3) {
		t.Errorf("Expected double application to restore the checkerboard center, got %f", twice.At(3, 3, 3))
	}
}

// TestMedianWorkerCountInvariance verifies that the parallel decomposition
// does not affect the result.
func TestMedianWorkerCountInvariance(t *testing.T) {
	vol := volume.New(8, 7, 6)
	for i := range vol.Data {
		vol.Data[i] = float64((i * 31) % 17)
	}

	serial, err := (&MedianStage{Radius: 2, Workers: 1}).Apply(vol)
	if err != nil {
		t.Fatalf("Failed to apply median filter serially: %v", err)
	}
	parallel, err := (&MedianStage{Radius: 2, Workers: 4}).Apply(vol)
	if err != nil {
		t.Fatalf("Failed to apply median filter in parallel: %v", err)
	}

	for i := range serial.Data {
		if serial.Data[i] != parallel.Data[i] {
			t.Fatalf("Expected identical output regardless of worker count, mismatch at index %d", i)
		}
	}
}

// TestMedianValidation verifies the failure modes for missing input and
// out-of-range radius.
func TestMedianValidation(t *testing.T) {
	stage := &MedianStage{Radius: 1}
	if _, err := stage.Apply(nil); !errors.Is(err, volume.ErrMissingVolume) {
		t.Errorf("Expected ErrMissingVolume for nil input, got %v", err)
	}

	vol := volume.New(2, 2, 2)
	for _, radius := range []int{0, -1} {
		stage := &MedianStage{Radius: radius}
		if _, err := stage.Apply(vol); !errors.Is(err, volume.ErrInvalidRange) {
			t.Errorf("Expected ErrInvalidRange for radius %d, got %v", radius, err)
		}
	}
}
