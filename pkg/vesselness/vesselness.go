// Package vesselness implements a multiscale vessel enhancement filter based
// on the eigenvalues of the Hessian matrix. Bright tubular structures such
// as contrast-filled vessels produce a strong response while plate-like and
// blob-like structures are suppressed. The output is the maximum response
// over a set of analysis scales spanning the configured vessel diameter
// range.
package vesselness

import (
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// DefaultScales is the number of analysis scales used when Scales is zero.
const DefaultScales = 5

// Filter enhances bright tubular structures. Diameters are physical (mm);
// each scale smooths the volume with a Gaussian whose standard deviation
// matches a vessel radius in that range, then scores every voxel from the
// eigenvalues of the scale-normalized Hessian.
type Filter struct {
	// MinDiameter is the smallest vessel diameter to enhance, in mm
	MinDiameter float64

	// MaxDiameter is the largest vessel diameter to enhance, in mm
	MaxDiameter float64

	// Alpha controls suppression of plate-like structures
	Alpha float64

	// Beta controls suppression of blob-like structures
	Beta float64

	// Contrast is the intensity scale separating structure from noise
	Contrast float64

	// Scales is the number of analysis scales between the diameter bounds.
	// Zero selects DefaultScales.
	Scales int

	// Workers bounds the number of goroutines scoring z-slices.
	// Zero or negative means one worker per available CPU core.
	Workers int
}

// DefaultFilter returns a filter tuned for cerebral vasculature in
// contrast-enhanced CT.
func DefaultFilter() *Filter {
	return &Filter{
		MinDiameter: 0.5,
		MaxDiameter: 3.0,
		Alpha:       0.3,
		Beta:        0.3,
		Contrast:    150,
		Scales:      DefaultScales,
	}
}

// Name identifies the stage.
func (f *Filter) Name() string {
	return "vesselness"
}

// Validate checks the filter configuration against its domains.
func (f *Filter) Validate() error {
	if f.MinDiameter <= 0 {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: minimum diameter %g", f.MinDiameter)
	}
	if f.MaxDiameter < f.MinDiameter {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: diameter range [%g, %g]", f.MinDiameter, f.MaxDiameter)
	}
	if f.Alpha <= 0 {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: alpha %g", f.Alpha)
	}
	if f.Beta <= 0 {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: beta %g", f.Beta)
	}
	if f.Contrast <= 0 {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: contrast %g", f.Contrast)
	}
	if f.Scales < 0 {
		return errors.Wrapf(volume.ErrInvalidRange, "vesselness filter: scales %d", f.Scales)
	}
	return nil
}

// Apply computes the multiscale vesselness response of the input volume.
// The input is never modified and the output shares its geometry.
//
// Parameters:
//   - in: Volume to enhance, typically raw or median-filtered intensities
//
// Returns:
//   - Volume of responses in [0, 1], high inside bright tubes
//   - Error if the input is missing or the configuration is out of range
func (f *Filter) Apply(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "vesselness filter")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "vesselness filter")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := volume.NewLike(in)
	for _, radius := range f.scaleRadii() {
		response := f.singleScale(in, radius)
		for i, v := range response {
			if v > out.Data[i] {
				out.Data[i] = v
			}
		}
	}
	return out, nil
}

// scaleRadii returns the Gaussian standard deviations analyzed, spaced
// geometrically between the radii implied by the diameter bounds.
func (f *Filter) scaleRadii() []float64 {
	scales := f.Scales
	if scales <= 0 {
		scales = DefaultScales
	}

	rMin := f.MinDiameter / 2
	rMax := f.MaxDiameter / 2
	if scales == 1 || rMax <= rMin {
		return []float64{rMin}
	}

	radii := make([]float64, scales)
	ratio := math.Pow(rMax/rMin, 1/float64(scales-1))
	r := rMin
	for i := range radii {
		radii[i] = r
		r *= ratio
	}
	return radii
}

// singleScale scores every voxel at one analysis scale. The volume is
// smoothed with a Gaussian of the given standard deviation (mm), the Hessian
// is estimated by central differences in physical units and normalized by
// sigma squared, and the eigenvalues feed the tubularity measure.
func (f *Filter) singleScale(in *volume.VolumeBuffer, sigma float64) []float64 {
	smoothed := gaussianSmooth(in, sigma)

	width, height, depth := in.Width, in.Height, in.Depth
	response := make([]float64, len(in.Data))

	halfAlpha2 := 2 * f.Alpha * f.Alpha
	halfBeta2 := 2 * f.Beta * f.Beta
	halfContrast2 := 2 * f.Contrast * f.Contrast
	sigma2 := sigma * sigma

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > depth {
		workers = depth
	}

	var wg sync.WaitGroup
	slicesPerWorker := (depth + workers - 1) / workers

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			startZ := workerID * slicesPerWorker
			endZ := startZ + slicesPerWorker
			if endZ > depth {
				endZ = depth
			}

			// Per-worker scratch for the symmetric eigen solve
			sym := mat.NewSymDense(3, nil)
			lambda := make([]float64, 3)
			var eig mat.EigenSym

			for z := startZ; z < endZ; z++ {
				for y := 0; y < height; y++ {
					for x := 0; x < width; x++ {
						hxx, hyy, hzz, hxy, hxz, hyz := hessianAt(smoothed, in, x, y, z)

						sym.SetSym(0, 0, hxx*sigma2)
						sym.SetSym(1, 1, hyy*sigma2)
						sym.SetSym(2, 2, hzz*sigma2)
						sym.SetSym(0, 1, hxy*sigma2)
						sym.SetSym(0, 2, hxz*sigma2)
						sym.SetSym(1, 2, hyz*sigma2)

						if !eig.Factorize(sym, false) {
							continue
						}
						eig.Values(lambda)
						sortByMagnitude(lambda)

						// Bright tubes require two strongly negative
						// eigenvalues across the vessel axis.
						l1, l2, l3 := lambda[0], lambda[1], lambda[2]
						if l2 >= 0 || l3 >= 0 {
							continue
						}

						ra := math.Abs(l2) / math.Abs(l3)
						rb := math.Abs(l1) / math.Sqrt(math.Abs(l2*l3))
						s2 := l1*l1 + l2*l2 + l3*l3

						v := (1 - math.Exp(-ra*ra/halfAlpha2)) *
							math.Exp(-rb*rb/halfBeta2) *
							(1 - math.Exp(-s2/halfContrast2))
						response[z*width*height+y*width+x] = v
					}
				}
			}
		}(w)
	}

	wg.Wait()
	return response
}

// sortByMagnitude orders three eigenvalues by increasing absolute value.
func sortByMagnitude(l []float64) {
	if math.Abs(l[0]) > math.Abs(l[1]) {
		l[0], l[1] = l[1], l[0]
	}
	if math.Abs(l[1]) > math.Abs(l[2]) {
		l[1], l[2] = l[2], l[1]
	}
	if math.Abs(l[0]) > math.Abs(l[1]) {
		l[0], l[1] = l[1], l[0]
	}
}

// hessianAt estimates the Hessian of the smoothed field at a voxel by
// central differences in physical units, replicating edge voxels at the
// volume boundary.
func hessianAt(field []float64, vol *volume.VolumeBuffer, x, y, z int) (hxx, hyy, hzz, hxy, hxz, hyz float64) {
	width, height, depth := vol.Width, vol.Height, vol.Depth
	sample := func(ix, iy, iz int) float64 {
		return field[clamp(iz, depth)*width*height+clamp(iy, height)*width+clamp(ix, width)]
	}

	sx := vol.Spacing[0]
	sy := vol.Spacing[1]
	sz := vol.Spacing[2]
	c := sample(x, y, z)

	hxx = (sample(x+1, y, z) - 2*c + sample(x-1, y, z)) / (sx * sx)
	hyy = (sample(x, y+1, z) - 2*c + sample(x, y-1, z)) / (sy * sy)
	hzz = (sample(x, y, z+1) - 2*c + sample(x, y, z-1)) / (sz * sz)

	hxy = (sample(x+1, y+1, z) - sample(x+1, y-1, z) - sample(x-1, y+1, z) + sample(x-1, y-1, z)) / (4 * sx * sy)
	hxz = (sample(x+1, y, z+1) - sample(x+1, y, z-1) - sample(x-1, y, z+1) + sample(x-1, y, z-1)) / (4 * sx * sz)
	hyz = (sample(x, y+1, z+1) - sample(x, y+1, z-1) - sample(x, y-1, z+1) + sample(x, y-1, z-1)) / (4 * sy * sz)
	return hxx, hyy, hzz, hxy, hxz, hyz
}

// gaussianSmooth convolves the volume with a separable Gaussian of the given
// standard deviation in mm. The kernel is scaled per axis by the voxel
// spacing, so smoothing is isotropic in physical space.
func gaussianSmooth(in *volume.VolumeBuffer, sigmaMM float64) []float64 {
	data := make([]float64, len(in.Data))
	copy(data, in.Data)

	for axis := 0; axis < 3; axis++ {
		kernel := gaussianKernel(sigmaMM / in.Spacing[axis])
		if len(kernel) == 1 {
			continue
		}
		data = convolveAxis(data, in.Width, in.Height, in.Depth, axis, kernel)
	}
	return data
}

// gaussianKernel builds a normalized 1D Gaussian kernel for a standard
// deviation in voxels, truncated at three sigma.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}

	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolveAxis applies a 1D kernel along one axis, replicating edge voxels.
func convolveAxis(data []float64, width, height, depth, axis int, kernel []float64) []float64 {
	out := make([]float64, len(data))
	radius := len(kernel) / 2

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for k := -radius; k <= radius; k++ {
					nx, ny, nz := x, y, z
					switch axis {
					case 0:
						nx = clamp(x+k, width)
					case 1:
						ny = clamp(y+k, height)
					case 2:
						nz = clamp(z+k, depth)
					}
					sum += kernel[k+radius] * data[nz*width*height+ny*width+nx]
				}
				out[z*width*height+y*width+x] = sum
			}
		}
	}
	return out
}

// clamp limits an index to [0, size-1].
func clamp(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}
