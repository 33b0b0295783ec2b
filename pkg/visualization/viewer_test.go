package visualization

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// gradientVolume builds a volume where every slice along Z has the value of
// its z index.
func gradientVolume(width, height, depth int) *volume.VolumeBuffer {
	vol := volume.New(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, float64(z))
			}
		}
	}
	return vol
}

// TestNewViewer verifies viewer construction and display window handling
func TestNewViewer(t *testing.T) {
	vol := gradientVolume(10, 10, 5)

	viewer, err := NewViewer(vol)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	// The initial window spans the scalar range
	min, max := viewer.Window()
	if min != 0 || max != 4 {
		t.Errorf("Expected initial window [0, 4], got [%g, %g]", min, max)
	}

	// A flat volume gets a non-degenerate window
	flat := volume.New(3, 3, 3)
	for i := range flat.Data {
		flat.Data[i] = 7
	}
	flatViewer, err := NewViewer(flat)
	if err != nil {
		t.Fatalf("Failed to create viewer for flat volume: %v", err)
	}
	min, max = flatViewer.Window()
	if min >= max {
		t.Errorf("Expected non-degenerate window for flat volume, got [%g, %g]", min, max)
	}

	if _, err := NewViewer(nil); !errors.Is(err, volume.ErrMissingVolume) {
		t.Errorf("Expected ErrMissingVolume for nil volume, got %v", err)
	}

	if err := viewer.SetWindow(5, 5); !errors.Is(err, volume.ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for empty window, got %v", err)
	}
	if err := viewer.SetWindow(1, 3); err != nil {
		t.Errorf("Expected valid window to be accepted, got %v", err)
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 10, 5
	vol := gradientVolume(width, height, depth)

	viewer, err := NewViewer(vol)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		// Verify dimensions
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		// Verify the grayscale mapping through the auto window [0, 4]
		expectedValue := int(float64(z) / 4 * 65535)
		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		centerValue := int(gray16Img.Gray16At(width/2, height/2).Y)
		if diff := centerValue - expectedValue; diff < -1 || diff > 1 {
			t.Errorf("Expected Z slice value ~%d at center, got %d",
				expectedValue, centerValue)
		}
	}

	// Test extracting X slice
	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	boundsX := imgX.Bounds()
	if boundsX.Dx() != depth || boundsX.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d",
			depth, height, boundsX.Dx(), boundsX.Dy())
	}

	// Test extracting Y slice
	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	boundsY := imgY.Bounds()
	if boundsY.Dx() != width || boundsY.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d",
			width, depth, boundsY.Dx(), boundsY.Dy())
	}

	// Test invalid axis
	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	if _, err := viewer.ExtractSlice("z", depth+1); !errors.Is(err, volume.ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for out of bounds position, got %v", err)
	}
}

// TestWindowMapping verifies that values outside the display window clamp
// to black and white
func TestWindowMapping(t *testing.T) {
	vol := volume.New(3, 1, 1)
	vol.Data = []float64{0, 50, 100}

	viewer, err := NewViewer(vol)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if err := viewer.SetWindow(40, 60); err != nil {
		t.Fatalf("Failed to set window: %v", err)
	}

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	gray16Img := img.(*image.Gray16)

	if got := gray16Img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected value below window to render black, got %d", got)
	}
	if got := int(gray16Img.Gray16At(1, 0).Y); got < 32765 || got > 32769 {
		t.Errorf("Expected window center to render mid-gray, got %d", got)
	}
	if got := gray16Img.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("Expected value above window to render white, got %d", got)
	}
}

// TestExtractRegion verifies that 3D regions are correctly extracted with
// their geometry intact
func TestExtractRegion(t *testing.T) {
	width, height, depth := 10, 10, 5
	vol := volume.New(width, height, depth)
	vol.Spacing = [3]float64{0.5, 1, 2}
	vol.Origin = [3]float64{10, 0, -3}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, float64(x)+10*float64(y)+100*float64(z))
			}
		}
	}

	viewer, err := NewViewer(vol)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	startX, startY, startZ := 2, 3, 1
	sizeX, sizeY, sizeZ := 4, 3, 2

	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}

	if region.Width != sizeX || region.Height != sizeY || region.Depth != sizeZ {
		t.Errorf("Expected region dimensions %dx%dx%d, got %dx%dx%d",
			sizeX, sizeY, sizeZ, region.Width, region.Height, region.Depth)
	}
	if region.Spacing != vol.Spacing {
		t.Errorf("Expected region spacing %v, got %v", vol.Spacing, region.Spacing)
	}

	// The crop origin is the physical position of the first cropped voxel
	wantOrigin := [3]float64{10 + 0.5*2, 0 + 1*3, -3 + 2*1}
	if region.Origin != wantOrigin {
		t.Errorf("Expected region origin %v, got %v", wantOrigin, region.Origin)
	}

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				want := vol.At(startX+x, startY+y, startZ+z)
				if got := region.At(x, y, z); got != want {
					t.Errorf("Region value mismatch at (%d,%d,%d): expected %f, got %f",
						x, y, z, want, got)
				}
			}
		}
	}

	// Test invalid parameters
	if _, err := viewer.ExtractRegion(-1, 0, 0, 1, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, 0, 0, 1, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSlice verifies that slices can be saved to disk
func TestSaveSlice(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "viewer-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	viewer, err := NewViewer(gradientVolume(10, 10, 5))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	filename := filepath.Join(tempDir, "test_slice.jpg")
	if err := viewer.SaveSlice(img, filename); err != nil {
		t.Fatalf("Failed to save slice: %v", err)
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Errorf("Saved file does not exist: %s", filename)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "viewer-sequence-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	depth := 3
	viewer, err := NewViewer(gradientVolume(5, 5, depth))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	// Test invalid axis
	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
