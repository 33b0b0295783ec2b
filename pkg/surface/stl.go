package surface

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// meshFileName is the file written into the export directory.
const meshFileName = "vessels.stl"

// ExportSurface writes a surface model to disk in the requested format.
// Only binary STL ("stl") is supported. The directory is created if it does
// not exist and the full path of the written file is returned.
func ExportSurface(model *SurfaceModel, dir, format string) (string, error) {
	if model == nil || model.IsEmpty() {
		return "", errors.Wrap(volume.ErrMissingVolume, "surface export: empty surface model")
	}
	if !strings.EqualFold(format, "stl") {
		return "", errors.Errorf("surface export: unsupported format %q, only \"stl\" is available", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "surface export")
	}

	mesh := model3d.NewMesh()
	for i := 0; i < model.NumTriangles(); i++ {
		tri := model.Triangle(i)
		var t model3d.Triangle
		for k := 0; k < 3; k++ {
			v := model.Vertex(tri[k])
			t[k] = model3d.Coord3D{X: v[0], Y: v[1], Z: v[2]}
		}
		mesh.Add(&t)
	}

	path := filepath.Join(dir, meshFileName)
	if err := mesh.SaveGroupedSTL(path); err != nil {
		return "", errors.Wrap(err, "surface export")
	}
	return path, nil
}
