// Package volio reads and writes volumes in the NRRD format, the exchange
// format of the surrounding imaging toolchain. The reader accepts the common
// scalar types in raw or gzip encoding with attached data; the writer emits
// raw little-endian files. Geometry travels in the space directions and
// space origin fields, so spacing, orientation and origin survive a round
// trip.
package volio

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// nrrdTypes maps the type aliases of the format to the canonical element
// types the decoder understands.
var nrrdTypes = map[string]string{
	"signed char": "int8",
	"int8":        "int8",
	"int8_t":      "int8",

	"uchar":         "uint8",
	"unsigned char": "uint8",
	"uint8":         "uint8",
	"uint8_t":       "uint8",

	"short":            "int16",
	"short int":        "int16",
	"signed short":     "int16",
	"signed short int": "int16",
	"int16":            "int16",
	"int16_t":          "int16",

	"ushort":             "uint16",
	"unsigned short":     "uint16",
	"unsigned short int": "uint16",
	"uint16":             "uint16",
	"uint16_t":           "uint16",

	"int":        "int32",
	"signed int": "int32",
	"int32":      "int32",
	"int32_t":    "int32",

	"uint":         "uint32",
	"unsigned int": "uint32",
	"uint32":       "uint32",
	"uint32_t":     "uint32",

	"float":  "float32",
	"double": "float64",
}

// elementSizes gives the byte width of each canonical element type.
var elementSizes = map[string]int{
	"int8":    1,
	"uint8":   1,
	"int16":   2,
	"uint16":  2,
	"int32":   4,
	"uint32":  4,
	"float32": 4,
	"float64": 8,
}

type nrrdHeader struct {
	elementType string
	sizes       [3]int
	encoding    string
	bigEndian   bool

	hasDirections bool
	directions    [3][3]float64

	hasSpacings bool
	spacings    [3]float64

	hasOrigin bool
	origin    [3]float64
}

// LoadVolume reads a 3-dimensional NRRD file into a volume buffer. Voxel
// values are converted to float64 regardless of the stored type. Detached
// data files and encodings other than raw and gzip are rejected.
func LoadVolume(path string) (*volume.VolumeBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load volume")
	}
	defer f.Close()

	vol, err := readNRRD(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "load volume %s", path)
	}
	return vol, nil
}

// SaveVolume writes a volume as a raw little-endian double NRRD file,
// creating the parent directory if needed.
func SaveVolume(vol *volume.VolumeBuffer, path string) error {
	if vol == nil {
		return errors.Wrap(volume.ErrMissingVolume, "save volume")
	}
	if err := vol.Validate(); err != nil {
		return errors.Wrap(err, "save volume")
	}
	if err := writeNRRD(vol, path, "double"); err != nil {
		return errors.Wrapf(err, "save volume %s", path)
	}
	return nil
}

func readNRRD(r *bufio.Reader) (*volume.VolumeBuffer, error) {
	magic, err := readHeaderLine(r)
	if err != nil {
		return nil, errors.New("not a NRRD file")
	}
	if len(magic) != 8 || !strings.HasPrefix(magic, "NRRD000") || magic[7] < '1' || magic[7] > '5' {
		return nil, errors.New("not a NRRD file")
	}

	hdr := &nrrdHeader{encoding: "raw"}
	dimensionSeen := false
	sizesSeen := false

	for {
		line, err := readHeaderLine(r)
		if err != nil {
			return nil, errors.New("header ends before the data section")
		}
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		// "key:=value" pairs carry free-form metadata, not fields
		if strings.Contains(line, ":=") {
			continue
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, errors.Errorf("malformed header line %q", line)
		}
		field := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])

		switch field {
		case "type":
			canonical, ok := nrrdTypes[strings.ToLower(value)]
			if !ok {
				return nil, errors.Errorf("unsupported type %q", value)
			}
			hdr.elementType = canonical

		case "dimension":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Errorf("invalid dimension %q", value)
			}
			if n != 3 {
				return nil, errors.Errorf("only 3-dimensional volumes are supported, got dimension %d", n)
			}
			dimensionSeen = true

		case "sizes":
			parts := strings.Fields(value)
			if len(parts) != 3 {
				return nil, errors.Errorf("expected 3 sizes, got %q", value)
			}
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil || n <= 0 {
					return nil, errors.Errorf("invalid size %q", p)
				}
				hdr.sizes[i] = n
			}
			sizesSeen = true

		case "encoding":
			switch strings.ToLower(value) {
			case "raw":
				hdr.encoding = "raw"
			case "gz", "gzip":
				hdr.encoding = "gzip"
			default:
				return nil, errors.Errorf("unsupported encoding %q", value)
			}

		case "endian":
			switch strings.ToLower(value) {
			case "little":
				hdr.bigEndian = false
			case "big":
				hdr.bigEndian = true
			default:
				return nil, errors.Errorf("invalid endian %q", value)
			}

		case "space dimension":
			if value != "3" {
				return nil, errors.Errorf("only 3-dimensional spaces are supported, got %q", value)
			}

		case "space directions":
			vectors, err := parseVectorList(value)
			if err != nil {
				return nil, err
			}
			hdr.directions = vectors
			hdr.hasDirections = true

		case "space origin":
			origin, err := parseVector(value)
			if err != nil {
				return nil, err
			}
			hdr.origin = origin
			hdr.hasOrigin = true

		case "spacings":
			parts := strings.Fields(value)
			if len(parts) != 3 {
				return nil, errors.Errorf("expected 3 spacings, got %q", value)
			}
			for i, p := range parts {
				s, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, errors.Errorf("invalid spacing %q", p)
				}
				hdr.spacings[i] = s
			}
			hdr.hasSpacings = true

		case "data file", "datafile":
			return nil, errors.New("detached data files are not supported")

		default:
			// Fields like space, kinds, content and space units do not
			// affect how the volume is read
		}
	}

	if hdr.elementType == "" {
		return nil, errors.New("header is missing the type field")
	}
	if !dimensionSeen || !sizesSeen {
		return nil, errors.New("header is missing dimension or sizes")
	}

	var data io.Reader = r
	if hdr.encoding == "gzip" {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip data")
		}
		defer gz.Close()
		data = gz
	}

	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, errors.Wrap(err, "read data")
	}
	voxels := hdr.sizes[0] * hdr.sizes[1] * hdr.sizes[2]
	need := voxels * elementSizes[hdr.elementType]
	if len(raw) < need {
		return nil, errors.Errorf("data truncated: need %d bytes, got %d", need, len(raw))
	}

	vol := volume.New(hdr.sizes[0], hdr.sizes[1], hdr.sizes[2])
	decodeData(raw, hdr.elementType, hdr.bigEndian, vol.Data)

	if hdr.hasDirections {
		for axis := 0; axis < 3; axis++ {
			v := hdr.directions[axis]
			norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
			if norm == 0 {
				return nil, errors.Errorf("space direction for axis %d is zero", axis)
			}
			vol.Spacing[axis] = norm
			for i := 0; i < 3; i++ {
				vol.Direction[axis][i] = v[i] / norm
			}
		}
	} else if hdr.hasSpacings {
		vol.Spacing = hdr.spacings
	}
	if hdr.hasOrigin {
		vol.Origin = hdr.origin
	}
	return vol, nil
}

// readHeaderLine returns the next header line without its line ending.
func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseVector reads a "(x,y,z)" triple.
func parseVector(s string) ([3]float64, error) {
	var out [3]float64
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return out, errors.Errorf("invalid vector %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return out, errors.Errorf("invalid vector %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, errors.Errorf("invalid vector component %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseVectorList reads the three per-axis vectors of a space directions
// field. Axes marked "none" are not spatial and cannot describe a volume.
func parseVectorList(s string) ([3][3]float64, error) {
	var out [3][3]float64
	tokens := strings.Fields(s)
	if len(tokens) != 3 {
		return out, errors.Errorf("expected 3 space directions, got %q", s)
	}
	for i, token := range tokens {
		if strings.EqualFold(token, "none") {
			return out, errors.New("non-spatial axes are not supported")
		}
		v, err := parseVector(token)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// decodeData converts raw bytes of the given element type into float64
// voxel values.
func decodeData(raw []byte, elementType string, bigEndian bool, dst []float64) {
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	switch elementType {
	case "uint8":
		for i := range dst {
			dst[i] = float64(raw[i])
		}
	case "int8":
		for i := range dst {
			dst[i] = float64(int8(raw[i]))
		}
	case "uint16":
		for i := range dst {
			dst[i] = float64(order.Uint16(raw[2*i:]))
		}
	case "int16":
		for i := range dst {
			dst[i] = float64(int16(order.Uint16(raw[2*i:])))
		}
	case "uint32":
		for i := range dst {
			dst[i] = float64(order.Uint32(raw[4*i:]))
		}
	case "int32":
		for i := range dst {
			dst[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case "float32":
		for i := range dst {
			dst[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case "float64":
		for i := range dst {
			dst[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	}
}

// writeNRRD writes the volume with the given NRRD type, either "double" or
// "unsigned char".
func writeNRRD(vol *volume.VolumeBuffer, path, typeName string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "NRRD0004\n")
	fmt.Fprintf(w, "# Complete NRRD file format specification at:\n")
	fmt.Fprintf(w, "# http://teem.sourceforge.net/nrrd/format.html\n")
	fmt.Fprintf(w, "type: %s\n", typeName)
	fmt.Fprintf(w, "dimension: 3\n")
	fmt.Fprintf(w, "space: left-posterior-superior\n")
	fmt.Fprintf(w, "sizes: %d %d %d\n", vol.Width, vol.Height, vol.Depth)
	fmt.Fprintf(w, "space directions: %s %s %s\n",
		formatAxisVector(vol, 0), formatAxisVector(vol, 1), formatAxisVector(vol, 2))
	fmt.Fprintf(w, "kinds: domain domain domain\n")
	fmt.Fprintf(w, "endian: little\n")
	fmt.Fprintf(w, "encoding: raw\n")
	fmt.Fprintf(w, "space origin: (%g,%g,%g)\n", vol.Origin[0], vol.Origin[1], vol.Origin[2])
	fmt.Fprintf(w, "\n")

	switch typeName {
	case "unsigned char":
		buf := make([]byte, len(vol.Data))
		for i, v := range vol.Data {
			buf[i] = uint8(v)
		}
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return err
		}
	default:
		if err := binary.Write(w, binary.LittleEndian, vol.Data); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// formatAxisVector renders one spacing-scaled direction row.
func formatAxisVector(vol *volume.VolumeBuffer, axis int) string {
	return fmt.Sprintf("(%g,%g,%g)",
		vol.Direction[axis][0]*vol.Spacing[axis],
		vol.Direction[axis][1]*vol.Spacing[axis],
		vol.Direction[axis][2]*vol.Spacing[axis])
}
