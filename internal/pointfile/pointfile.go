// Package pointfile reads and writes the binary point file format of
// spec.md §6: a magic marker, an element-type tag, row and column counts,
// and a column-major matrix of little-endian elements.
package pointfile

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/lutzcle/gokmeans"
)

// magic identifies a point file; chosen so a file opened with the wrong
// format fails fast instead of being silently misread as a tiny matrix.
var magic = [4]byte{'K', 'P', 'F', '1'}

// TypeTag distinguishes the element width a point file stores.
type TypeTag uint8

const (
	TypeFloat32 TypeTag = iota
	TypeFloat64
)

func (t TypeTag) String() string {
	switch t {
	case TypeFloat32:
		return "float"
	case TypeFloat64:
		return "double"
	default:
		return "unknown"
	}
}

// Header is the fixed-size prefix of a point file.
type Header struct {
	Type TypeTag
	Rows uint64 // points
	Cols uint64 // features
}

// ReadFloat32 reads a point file expected to hold f32 elements. It rejects
// a file whose stored type tag is f64, per spec.md §6's "reject mismatched
// type tags against the configured point type."
func ReadFloat32(path string) (Header, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, err.Error())
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.Type != TypeFloat32 {
		return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.TypeMismatch, "point file stores double elements, float32 requested")
	}

	// The wire format stores elements column-major (every row's value for
	// column 0, then column 1, ...); every in-memory consumer (kernels,
	// kmeans) indexes point-major instead, so transpose while reading.
	n := hdr.Rows * hdr.Cols
	data := make([]float32, n)
	for p := uint64(0); p < n; p++ {
		var bits uint32
		if err := binary.Read(f, binary.LittleEndian, &bits); err != nil {
			return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated point data: "+err.Error())
		}
		row, col := p%hdr.Rows, p/hdr.Rows
		data[row*hdr.Cols+col] = math.Float32frombits(bits)
	}
	return hdr, data, nil
}

// ReadFloat64 reads a point file expected to hold f64 elements.
func ReadFloat64(path string) (Header, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, err.Error())
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.Type != TypeFloat64 {
		return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.TypeMismatch, "point file stores float elements, float64 requested")
	}

	// See ReadFloat32: the wire format is column-major, in-memory is
	// point-major.
	n := hdr.Rows * hdr.Cols
	data := make([]float64, n)
	for p := uint64(0); p < n; p++ {
		var bits uint64
		if err := binary.Read(f, binary.LittleEndian, &bits); err != nil {
			return Header{}, nil, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated point data: "+err.Error())
		}
		row, col := p%hdr.Rows, p/hdr.Rows
		data[row*hdr.Cols+col] = math.Float64frombits(bits)
	}
	return hdr, data, nil
}

func readHeader(r io.Reader) (Header, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated magic: "+err.Error())
	}
	if got != magic {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "bad magic marker")
	}

	var tagByte uint8
	if err := binary.Read(r, binary.LittleEndian, &tagByte); err != nil {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated type tag: "+err.Error())
	}
	tag := TypeTag(tagByte)
	if tag != TypeFloat32 && tag != TypeFloat64 {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "unknown type tag")
	}

	var rows, cols uint64
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated row count: "+err.Error())
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return Header{}, gokmeans.NewError("pointfile.Read", gokmeans.InvalidArgument, "truncated column count: "+err.Error())
	}

	return Header{Type: tag, Rows: rows, Cols: cols}, nil
}

// WriteFloat32 writes rows x cols point-major f32 data (the layout every
// in-memory consumer uses) to path, transposed into the format's
// column-major wire layout.
func WriteFloat32(path string, rows, cols uint64, data []float32) error {
	if uint64(len(data)) != rows*cols {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, "data length does not match rows*cols")
	}
	f, err := os.Create(path)
	if err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	defer f.Close()

	if err := writeHeader(f, TypeFloat32, rows, cols); err != nil {
		return err
	}
	for col := uint64(0); col < cols; col++ {
		for row := uint64(0); row < rows; row++ {
			v := data[row*cols+col]
			if err := binary.Write(f, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
			}
		}
	}
	return nil
}

// WriteFloat64 writes rows x cols point-major f64 data to path, transposed
// into the format's column-major wire layout; see WriteFloat32.
func WriteFloat64(path string, rows, cols uint64, data []float64) error {
	if uint64(len(data)) != rows*cols {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, "data length does not match rows*cols")
	}
	f, err := os.Create(path)
	if err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	defer f.Close()

	if err := writeHeader(f, TypeFloat64, rows, cols); err != nil {
		return err
	}
	for col := uint64(0); col < cols; col++ {
		for row := uint64(0); row < rows; row++ {
			v := data[row*cols+col]
			if err := binary.Write(f, binary.LittleEndian, math.Float64bits(v)); err != nil {
				return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
			}
		}
	}
	return nil
}

func writeHeader(w io.Writer, tag TypeTag, rows, cols uint64) error {
	if _, err := w.Write(magic[:]); err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(tag)); err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	if err := binary.Write(w, binary.LittleEndian, rows); err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	if err := binary.Write(w, binary.LittleEndian, cols); err != nil {
		return gokmeans.NewError("pointfile.Write", gokmeans.InvalidArgument, err.Error())
	}
	return nil
}
