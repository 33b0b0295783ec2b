// Package surface converts finalized binary segmentations into closed
// triangulated surface models in physical coordinates, exports them as STL
// files and answers nearest-vertex proximity queries for planning probes.
package surface

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// isoLevel is the implicit surface level between background (0) and
// foreground (1) voxels.
const isoLevel = 0.5

// SurfaceModel is an immutable triangulated mesh in physical coordinates.
// Vertices are shared between triangles; each triangle references three
// vertex indices with outward-facing winding. A model is canonical: vertices
// are sorted by position and triangles by their index triple, so two
// extractions of the same volume produce identical models.
type SurfaceModel struct {
	vertices  [][3]float64
	triangles [][3]int
}

// NumVertices returns the number of distinct vertices.
func (m *SurfaceModel) NumVertices() int {
	return len(m.vertices)
}

// NumTriangles returns the number of triangles.
func (m *SurfaceModel) NumTriangles() int {
	return len(m.triangles)
}

// IsEmpty reports whether the model contains no triangles, as produced by
// extracting a segmentation with no foreground voxels.
func (m *SurfaceModel) IsEmpty() bool {
	return len(m.triangles) == 0
}

// Vertex returns the physical position of vertex i.
func (m *SurfaceModel) Vertex(i int) [3]float64 {
	return m.vertices[i]
}

// Triangle returns the vertex indices of triangle i.
func (m *SurfaceModel) Triangle(i int) [3]int {
	return m.triangles[i]
}

// BoundingBox returns the axis-aligned physical bounds over all vertices.
// An empty model yields zero bounds.
func (m *SurfaceModel) BoundingBox() (min, max [3]float64) {
	if len(m.vertices) == 0 {
		return min, max
	}
	min = m.vertices[0]
	max = m.vertices[0]
	for _, v := range m.vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// IsClosed reports whether the mesh is watertight: every undirected edge is
// shared by exactly two triangles. An empty model counts as closed.
func (m *SurfaceModel) IsClosed() bool {
	edges := make(map[[2]int]int, 3*len(m.triangles))
	for _, t := range m.triangles {
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]int{a, b}]++
		}
	}
	for _, count := range edges {
		if count != 2 {
			return false
		}
	}
	return true
}

// Extractor produces a closed surface approximating the foreground boundary
// of a binary labelmap. The labelmap is interpolated trilinearly and the 0.5
// isosurface is triangulated by marching cubes, so the surface runs halfway
// between foreground and background voxel centers.
type Extractor struct {
	// Delta is the marching cubes grid resolution in mm. Zero or negative
	// selects half the smallest voxel spacing.
	Delta float64
}

// ExtractSurface triangulates the foreground boundary of a binary volume in
// physical coordinates. The result is watertight for any single-component
// input and deterministic for identical input; a volume without foreground
// yields an empty model.
//
// Parameters:
//   - in: Binary volume with foreground voxels set to 1
//
// Returns:
//   - Closed surface model in physical coordinates
//   - Error if the input is missing or not binary
func (e *Extractor) ExtractSurface(in *volume.VolumeBuffer) (*SurfaceModel, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "surface extraction")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "surface extraction")
	}
	if !in.IsBinary() {
		return nil, errors.Wrap(volume.ErrNotBinary, "surface extraction")
	}
	if in.CountForeground() == 0 {
		return &SurfaceModel{}, nil
	}

	delta := e.Delta
	if delta <= 0 {
		delta = 0.5 * minSpacing(in)
	}

	mesh := model3d.MarchingCubesSearch(&labelSolid{vol: in}, delta, 8)
	return buildSurfaceModel(mesh, physicalFromGrid(in)), nil
}

func minSpacing(v *volume.VolumeBuffer) float64 {
	min := v.Spacing[0]
	if v.Spacing[1] < min {
		min = v.Spacing[1]
	}
	if v.Spacing[2] < min {
		min = v.Spacing[2]
	}
	return min
}

// labelSolid adapts a binary labelmap to the model3d solid interface. It
// works in grid space, where voxel centers sit at index*spacing along each
// axis; direction cosines and origin are applied to the extracted vertices
// afterwards. Samples outside the volume read as background, so surfaces
// close at the volume border.
type labelSolid struct {
	vol *volume.VolumeBuffer
}

// Min gets the minimum of the bounding box, one voxel beyond the first
// voxel center so border surfaces stay inside the marching cubes domain.
func (s *labelSolid) Min() model3d.Coord3D {
	return model3d.Coord3D{
		X: -s.vol.Spacing[0],
		Y: -s.vol.Spacing[1],
		Z: -s.vol.Spacing[2],
	}
}

// Max gets the maximum of the bounding box.
func (s *labelSolid) Max() model3d.Coord3D {
	return model3d.Coord3D{
		X: float64(s.vol.Width) * s.vol.Spacing[0],
		Y: float64(s.vol.Height) * s.vol.Spacing[1],
		Z: float64(s.vol.Depth) * s.vol.Spacing[2],
	}
}

// Contains checks if the interpolated label value at the point reaches the
// isosurface level.
func (s *labelSolid) Contains(c model3d.Coord3D) bool {
	return s.interp(c) >= isoLevel
}

// interp gets a trilinear interpolated label value at the given grid-space
// point.
func (s *labelSolid) interp(c model3d.Coord3D) float64 {
	xs, xFracs := gridCoords(c.X / s.vol.Spacing[0])
	ys, yFracs := gridCoords(c.Y / s.vol.Spacing[1])
	zs, zFracs := gridCoords(c.Z / s.vol.Spacing[2])
	var value float64
	for i, x := range xs {
		xFrac := xFracs[i]
		for j, y := range ys {
			yFrac := yFracs[j]
			for k, z := range zs {
				value += xFrac * yFrac * zFracs[k] * s.get(x, y, z)
			}
		}
	}
	return value
}

// get returns the exact label at integer coordinates, with anything outside
// the volume reading as background.
func (s *labelSolid) get(x, y, z int) float64 {
	if !s.vol.InBounds(x, y, z) {
		return 0
	}
	return s.vol.At(x, y, z)
}

func gridCoords(c float64) (vals [2]int, fracs [2]float64) {
	min := int(math.Floor(c))
	max := min + 1
	minFrac := float64(max) - c
	return [2]int{min, max}, [2]float64{minFrac, 1 - minFrac}
}

// physicalFromGrid returns the mapping from grid-space mesh coordinates to
// physical coordinates, applying the volume's direction cosines and origin.
func physicalFromGrid(vol *volume.VolumeBuffer) func(model3d.Coord3D) [3]float64 {
	return func(c model3d.Coord3D) [3]float64 {
		u := [3]float64{c.X, c.Y, c.Z}
		var p [3]float64
		for i := 0; i < 3; i++ {
			p[i] = vol.Origin[i]
			for j := 0; j < 3; j++ {
				p[i] += vol.Direction[j][i] * u[j]
			}
		}
		return p
	}
}

// buildSurfaceModel converts a model3d mesh into a canonical SurfaceModel.
// The mesh iterates its triangles in arbitrary order, so vertices are sorted
// by position and triangles by their index triple; triangle winding is
// preserved by only rotating each triangle to start at its lowest vertex.
func buildSurfaceModel(mesh *model3d.Mesh, toPhysical func(model3d.Coord3D) [3]float64) *SurfaceModel {
	var tris []*model3d.Triangle
	mesh.Iterate(func(t *model3d.Triangle) {
		tris = append(tris, t)
	})

	seen := make(map[model3d.Coord3D]bool)
	var coords []model3d.Coord3D
	for _, t := range tris {
		for _, c := range t {
			if !seen[c] {
				seen[c] = true
				coords = append(coords, c)
			}
		}
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	index := make(map[model3d.Coord3D]int, len(coords))
	vertices := make([][3]float64, len(coords))
	for i, c := range coords {
		index[c] = i
		vertices[i] = toPhysical(c)
	}

	triangles := make([][3]int, 0, len(tris))
	for _, t := range tris {
		tri := [3]int{index[t[0]], index[t[1]], index[t[2]]}
		if tri[1] < tri[0] && tri[1] <= tri[2] {
			tri = [3]int{tri[1], tri[2], tri[0]}
		} else if tri[2] < tri[0] && tri[2] < tri[1] {
			tri = [3]int{tri[2], tri[0], tri[1]}
		}
		triangles = append(triangles, tri)
	}
	sort.Slice(triangles, func(i, j int) bool {
		a, b := triangles[i], triangles[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})

	return &SurfaceModel{vertices: vertices, triangles: triangles}
}
