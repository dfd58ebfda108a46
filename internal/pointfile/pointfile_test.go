package pointfile

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lutzcle/gokmeans"
)

func TestWriteReadFloat32RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	data := []float32{0, 0, 0, 1, 10, 10, 10, 11}

	require.NoError(t, WriteFloat32(path, 4, 2, data))

	hdr, got, err := ReadFloat32(path)
	require.NoError(t, err)
	require.Equal(t, uint64(4), hdr.Rows)
	require.Equal(t, uint64(2), hdr.Cols)
	require.Equal(t, data, got)
}

func TestWriteReadFloat64RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	data := []float64{1.5, 2.5, 3.5, 4.5}

	require.NoError(t, WriteFloat64(path, 2, 2, data))

	hdr, got, err := ReadFloat64(path)
	require.NoError(t, err)
	require.Equal(t, TypeFloat64, hdr.Type)
	require.Equal(t, data, got)
}

func TestReadFloat32RejectsFloat64File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	require.NoError(t, WriteFloat64(path, 1, 2, []float64{1, 2}))

	_, _, err := ReadFloat32(path)
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.TypeMismatch))
}

func TestReadFloat64RejectsFloat32File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	require.NoError(t, WriteFloat32(path, 1, 2, []float32{1, 2}))

	_, _, err := ReadFloat64(path)
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.TypeMismatch))
}

func TestReadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.kpf")
	require.NoError(t, os.WriteFile(path, []byte("NOPE and then some junk bytes"), 0o644))

	_, _, err := ReadFloat32(path)
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.InvalidArgument))
}

func TestReadRejectsMissingFile(t *testing.T) {
	_, _, err := ReadFloat32(filepath.Join(t.TempDir(), "missing.kpf"))
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.InvalidArgument))
}

func TestWriteRejectsMismatchedLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	err := WriteFloat32(path, 4, 2, []float32{1, 2, 3})
	require.Error(t, err)
	require.True(t, gokmeans.Is(err, gokmeans.InvalidArgument))
}

// rawColumnMajorFloat32 builds a point file by hand, writing elems in the
// format's declared column-major wire order, independent of WriteFloat32.
func rawColumnMajorFloat32(t *testing.T, path string, rows, cols uint64, columnMajor []float32) {
	t.Helper()
	var buf []byte
	buf = append(buf, 'K', 'P', 'F', '1')
	buf = append(buf, byte(TypeFloat32))
	rowBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(rowBuf, rows)
	buf = append(buf, rowBuf...)
	colBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(colBuf, cols)
	buf = append(buf, colBuf...)
	for _, v := range columnMajor {
		elemBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(elemBuf, math.Float32bits(v))
		buf = append(buf, elemBuf...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

// TestReadFloat32TransposesColumnMajorWireFormat pins down spec.md §6's
// column-major wire layout: a file whose elements are ordered column by
// column must still come back point-major (points[i*F+f]) in memory,
// since every kernel indexes it that way.
func TestReadFloat32TransposesColumnMajorWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	// 4 points, 2 features: point-major {(0,0), (0,1), (10,10), (10,11)}.
	// Column-major wire order is column 0's rows then column 1's rows.
	rawColumnMajorFloat32(t, path, 4, 2, []float32{0, 0, 10, 10, 0, 1, 10, 11})

	hdr, got, err := ReadFloat32(path)
	require.NoError(t, err)
	require.Equal(t, uint64(4), hdr.Rows)
	require.Equal(t, uint64(2), hdr.Cols)
	require.Equal(t, []float32{0, 0, 0, 1, 10, 10, 10, 11}, got)
}

// TestWriteFloat32EmitsColumnMajorWireFormat is the inverse: point-major
// in-memory data must serialize to the declared column-major byte order.
func TestWriteFloat32EmitsColumnMajorWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.kpf")
	require.NoError(t, WriteFloat32(path, 4, 2, []float32{0, 0, 0, 1, 10, 10, 10, 11}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	const headerLen = 4 + 1 + 8 + 8
	require.Equal(t, headerLen+4*8, len(raw))

	var columnMajor []float32
	for i := headerLen; i < len(raw); i += 4 {
		columnMajor = append(columnMajor, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:i+4])))
	}
	require.Equal(t, []float32{0, 0, 10, 10, 0, 1, 10, 11}, columnMajor)
}
