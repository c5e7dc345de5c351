// Package dataset opens the flat binary arrays that hold survey spectra.
//
// An array file is a row-major sequence of little-endian floats with no
// header; the number of columns is supplied by the caller and the number of
// rows is inferred from the file size. Files are memory-mapped read-only, so
// a training set larger than RAM is paged in on demand.
package dataset

import (
	"encoding/binary"
	"math"
	"os"
	"sync"
	"syscall"

	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// DataType is the element encoding of an array file.
type DataType int

const (
	Float64 DataType = iota
	Float32
)

func (d DataType) size() int {
	if d == Float32 {
		return 4
	}
	return 8
}

// Array is a read-only memory-mapped rows×cols matrix.
type Array struct {
	file  *os.File
	mmap  []byte
	rows  int
	cols  int
	dtype DataType
	mu    sync.RWMutex
}

// OpenArray maps a float64 file with cols columns.
func OpenArray(path string, cols int) (*Array, error) {
	return OpenArrayType(path, cols, Float64)
}

// OpenArrayType maps a file of the given element type.
func OpenArrayType(path string, cols int, dtype DataType) (*Array, error) {
	if cols <= 0 {
		return nil, errors.NewConfigurationError("cols", "must be positive", cols)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	rowBytes := int64(cols * dtype.size())
	size := info.Size()
	if size == 0 {
		_ = file.Close()
		return nil, errors.Wrapf(errors.ErrEmptyData, "array %s", path)
	}
	if size%rowBytes != 0 {
		_ = file.Close()
		return nil, errors.NewValueError("OpenArray",
			"file size is not a whole number of rows for the given column count")
	}

	data, err := syscall.Mmap(int(file.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to mmap %s", path)
	}
	return &Array{
		file:  file,
		mmap:  data,
		rows:  int(size / rowBytes),
		cols:  cols,
		dtype: dtype,
	}, nil
}

// Rows returns the number of rows.
func (a *Array) Rows() int { return a.rows }

// Cols returns the number of columns.
func (a *Array) Cols() int { return a.cols }

// Dims implements mat.Matrix.
func (a *Array) Dims() (int, int) { return a.rows, a.cols }

// At implements mat.Matrix.
func (a *Array) At(i, j int) float64 {
	if i < 0 || i >= a.rows || j < 0 || j >= a.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.read((i*a.cols + j) * a.dtype.size())
}

// T implements mat.Matrix.
func (a *Array) T() mat.Matrix { return mat.Transpose{Matrix: a} }

// Row copies row i.
func (a *Array) Row(i int) ([]float64, error) {
	if i < 0 || i >= a.rows {
		return nil, errors.NewValueError("Array.Row", "row index out of range")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]float64, a.cols)
	a.readRow(out, i)
	return out, nil
}

// Slice copies rows [start, end) into a new matrix.
func (a *Array) Slice(start, end int) (*mat.Dense, error) {
	if start < 0 || end > a.rows || start >= end {
		return nil, errors.NewValueError("Array.Slice", "invalid row range")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := mat.NewDense(end-start, a.cols, nil)
	for i := start; i < end; i++ {
		a.readRow(out.RawRowView(i-start), i)
	}
	return out, nil
}

// Dense copies the whole array into memory.
func (a *Array) Dense() (*mat.Dense, error) {
	return a.Slice(0, a.rows)
}

// Chunks calls fn with consecutive blocks of at most size rows.
func (a *Array) Chunks(size int, fn func(chunk *mat.Dense, startRow int) error) error {
	if size <= 0 {
		return errors.NewConfigurationError("size", "must be positive", size)
	}
	for start := 0; start < a.rows; start += size {
		end := min(start+size, a.rows)
		chunk, err := a.Slice(start, end)
		if err != nil {
			return err
		}
		if err := fn(chunk, start); err != nil {
			return err
		}
	}
	return nil
}

// Close unmaps and closes the file.
func (a *Array) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mmap == nil {
		return nil
	}
	if err := syscall.Munmap(a.mmap); err != nil {
		return errors.Wrap(err, "failed to unmap array")
	}
	a.mmap = nil
	return a.file.Close()
}

func (a *Array) readRow(dst []float64, i int) {
	size := a.dtype.size()
	offset := i * a.cols * size
	for j := range dst {
		dst[j] = a.read(offset + j*size)
	}
}

func (a *Array) read(offset int) float64 {
	if a.dtype == Float32 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(a.mmap[offset : offset+4])))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(a.mmap[offset : offset+8]))
}

// WriteArray writes m to path in the layout OpenArrayType reads.
func WriteArray(path string, m mat.Matrix, dtype DataType) error {
	rows, cols := m.Dims()
	size := dtype.size()
	buf := make([]byte, rows*cols*size)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			offset := (i*cols + j) * size
			v := m.At(i, j)
			if dtype == Float32 {
				binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(v)))
			} else {
				binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(v))
			}
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
