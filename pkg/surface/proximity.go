package surface

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// vertexPoint is a surface vertex in physical coordinates together with its
// index in the model.
type vertexPoint struct {
	x, y, z float64
	index   int
}

// Compare implements the kdtree.Comparable interface
func (p vertexPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertexPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	case 2:
		return p.z - q.z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p vertexPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p vertexPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(vertexPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	dz := p.z - q.z
	return dx*dx + dy*dy + dz*dz
}

// vertexPoints is a collection of vertexPoint that satisfies kdtree.Interface
type vertexPoints []vertexPoint

func (p vertexPoints) Index(i int) kdtree.Comparable       { return p[i] }
func (p vertexPoints) Len() int                            { return len(p) }
func (p vertexPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p vertexPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertexPoints: p, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertexPoints: p, Dim: d}, 100))
}

// vertexPlane implements sort.Interface and kdtree.SortSlicer for vertexPoints
type vertexPlane struct {
	vertexPoints
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.vertexPoints[i].x < p.vertexPoints[j].x
	case 1:
		return p.vertexPoints[i].y < p.vertexPoints[j].y
	case 2:
		return p.vertexPoints[i].z < p.vertexPoints[j].z
	default:
		panic("illegal dimension")
	}
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertexPoints: p.vertexPoints[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexPoints[i], p.vertexPoints[j] = p.vertexPoints[j], p.vertexPoints[i]
}

// ProbeResult is one vertex returned by a proximity query, with its distance
// to the probe point in mm.
type ProbeResult struct {
	Vertex   int
	Distance float64
}

// ProximityIndex answers nearest-vertex queries against a surface model in
// physical coordinates. It is used for clearance checks: how far a planned
// probe point sits from the closest vessel wall.
type ProximityIndex struct {
	tree  *kdtree.Tree
	model *SurfaceModel
}

// NewProximityIndex builds a KD-tree over the vertices of a surface model.
// The model must contain at least one vertex.
func NewProximityIndex(model *SurfaceModel) (*ProximityIndex, error) {
	if model == nil || model.NumVertices() == 0 {
		return nil, errors.Wrap(volume.ErrMissingVolume, "proximity index: empty surface model")
	}

	points := make(vertexPoints, model.NumVertices())
	for i := range points {
		v := model.Vertex(i)
		points[i] = vertexPoint{x: v[0], y: v[1], z: v[2], index: i}
	}
	return &ProximityIndex{
		tree:  kdtree.New(points, true),
		model: model,
	}, nil
}

// Nearest returns the vertex closest to the probe point and its Euclidean
// distance in mm.
func (p *ProximityIndex) Nearest(probe [3]float64) (vertex int, distance float64) {
	got, dist := p.tree.Nearest(vertexPoint{x: probe[0], y: probe[1], z: probe[2], index: -1})
	return got.(vertexPoint).index, math.Sqrt(dist)
}

// NearestN returns up to n vertices closest to the probe point, ordered by
// increasing distance.
func (p *ProximityIndex) NearestN(probe [3]float64, n int) []ProbeResult {
	if n <= 0 {
		return nil
	}

	keeper := kdtree.NewNKeeper(n)
	p.tree.NearestSet(keeper, vertexPoint{x: probe[0], y: probe[1], z: probe[2], index: -1})

	results := make([]ProbeResult, 0, keeper.Len())
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		results = append(results, ProbeResult{
			Vertex:   item.Comparable.(vertexPoint).index,
			Distance: math.Sqrt(item.Dist),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results
}
