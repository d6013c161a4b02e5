package singular

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
)

// SubArray names one quantity stored per (row, col) key and its shape.
type SubArray struct {
	Name  string
	Shape []int
}

func (sa SubArray) Size() (size int) {
	size = 1
	for _, d := range sa.Shape {
		size *= d
	}
	return
}

type record struct {
	row, col int
	offset   int // item number into the value buffers
}

// MultiSparse accumulates several dense sub-arrays per sparse (row, col) key.
// Values are appended to one flat buffer per sub-array; keys are write once.
type MultiSparse struct {
	Subs    []SubArray
	records []record
	index   map[[2]int]int
	data    [][]float64
}

func NewMultiSparse(subs []SubArray) (ms *MultiSparse) {
	ms = &MultiSparse{
		Subs:  subs,
		index: make(map[[2]int]int),
		data:  make([][]float64, len(subs)),
	}
	return
}

func (ms *MultiSparse) Len() int { return len(ms.records) }

// Insert stores one value per sub-array, flattened in row-major order.
func (ms *MultiSparse) Insert(row, col int, values ...[]float64) error {
	if len(values) != len(ms.Subs) {
		return fmt.Errorf("%w: %d values for %d sub-arrays", ErrShapeMismatch, len(values), len(ms.Subs))
	}
	for i, sub := range ms.Subs {
		if len(values[i]) != sub.Size() {
			return fmt.Errorf("%w: %s needs %d values, have %d",
				ErrShapeMismatch, sub.Name, sub.Size(), len(values[i]))
		}
	}
	key := [2]int{row, col}
	if _, ok := ms.index[key]; ok {
		return fmt.Errorf("%w: (%d,%d)", ErrDuplicateKey, row, col)
	}
	ms.index[key] = len(ms.records)
	ms.records = append(ms.records, record{row: row, col: col, offset: len(ms.records)})
	for i, val := range values {
		ms.data[i] = append(ms.data[i], val...)
	}
	return nil
}

// Get returns views of the stored values for a key.
func (ms *MultiSparse) Get(row, col int) (values [][]float64, ok bool) {
	var ind int
	if ind, ok = ms.index[[2]int{row, col}]; !ok {
		return
	}
	off := ms.records[ind].offset
	values = make([][]float64, len(ms.Subs))
	for i, sub := range ms.Subs {
		size := sub.Size()
		values[i] = ms.data[i][off*size : (off+1)*size]
	}
	return
}

// Merge appends all keys of other, which must have the same sub-arrays.
func (ms *MultiSparse) Merge(other *MultiSparse) error {
	if len(other.Subs) != len(ms.Subs) {
		return fmt.Errorf("%w: merging %d sub-arrays into %d", ErrShapeMismatch, len(other.Subs), len(ms.Subs))
	}
	for i, sub := range ms.Subs {
		if other.Subs[i].Name != sub.Name || other.Subs[i].Size() != sub.Size() {
			return fmt.Errorf("%w: sub-array %s", ErrShapeMismatch, sub.Name)
		}
	}
	for _, rec := range other.records {
		values, _ := other.Get(rec.row, rec.col)
		if err := ms.Insert(rec.row, rec.col, values...); err != nil {
			return err
		}
	}
	return nil
}

type Order uint8

const (
	OrderC Order = iota // row-major element layout
	OrderF              // column-major element layout
)

func (o Order) String() string {
	if o == OrderF {
		return "F"
	}
	return "C"
}

// ToCSR compresses the store into rows 0..numRows-1, columns ascending
// within each row. All sub-arrays share Indices and Indptr.
func (ms *MultiSparse) ToCSR(numRows int, order Order) (c *Compressed) {
	var (
		nnz   = len(ms.records)
		recs  = make([]record, nnz)
		count = make([]int, numRows+1)
	)
	copy(recs, ms.records)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].row != recs[j].row {
			return recs[i].row < recs[j].row
		}
		return recs[i].col < recs[j].col
	})
	c = &Compressed{
		Subs:    ms.Subs,
		Data:    make([][]float64, len(ms.Subs)),
		Indices: make([]int, nnz),
		Indptr:  make([]int, numRows+1),
		Order:   order,
		NumRows: numRows,
	}
	for nz, rec := range recs {
		if rec.row < 0 || rec.row >= numRows {
			panic(fmt.Errorf("row %d outside of %d rows in ToCSR", rec.row, numRows))
		}
		count[rec.row+1]++
		c.Indices[nz] = rec.col
	}
	for i := 0; i < numRows; i++ {
		c.Indptr[i+1] = c.Indptr[i] + count[i+1]
	}
	for i, sub := range ms.Subs {
		size := sub.Size()
		data := make([]float64, nnz*size)
		for nz, rec := range recs {
			src := ms.data[i][rec.offset*size : (rec.offset+1)*size]
			for e, val := range src {
				data[c.offset(sub, nnz, nz, e)] = val
			}
		}
		c.Data[i] = data
	}
	return
}

// Compressed is the CSR form of a MultiSparse. Data[i] holds nnz values of
// sub-array i laid out by Order: in OrderC item nz occupies one contiguous
// block, in OrderF the item index varies fastest.
type Compressed struct {
	Subs    []SubArray
	Data    [][]float64
	Indices []int
	Indptr  []int
	Order   Order
	NumRows int
}

func (c *Compressed) NNZ() int { return len(c.Indices) }

// offset maps item nz and row-major element index e to a position in Data.
func (c *Compressed) offset(sub SubArray, nnz, nz, e int) int {
	if c.Order == OrderC {
		return nz*sub.Size() + e
	}
	// row-major e -> column-major element index f
	var (
		f, stride = 0, 1
		rem       = e
		idx       = make([]int, len(sub.Shape))
	)
	for d := len(sub.Shape) - 1; d >= 0; d-- {
		idx[d] = rem % sub.Shape[d]
		rem /= sub.Shape[d]
	}
	for d := range sub.Shape {
		f += idx[d] * stride
		stride *= sub.Shape[d]
	}
	return nz + nnz*f
}

// find returns the item number of (row, col).
func (c *Compressed) find(row, col int) (nz int, ok bool) {
	if row < 0 || row >= c.NumRows {
		return
	}
	var (
		lo, hi = c.Indptr[row], c.Indptr[row+1]
	)
	nz = lo + sort.SearchInts(c.Indices[lo:hi], col)
	ok = nz < hi && c.Indices[nz] == col
	return
}

func (c *Compressed) subIndex(name string) int {
	for i, sub := range c.Subs {
		if sub.Name == name {
			return i
		}
	}
	return -1
}

// Value returns element e (row-major within the sub-array shape) of item nz.
func (c *Compressed) Value(sub, nz, e int) float64 {
	return c.Data[sub][c.offset(c.Subs[sub], c.NNZ(), nz, e)]
}

// Element returns the value at a multi-index of a named sub-array.
func (c *Compressed) Element(row, col int, name string, idx ...int) (val float64, ok bool) {
	var (
		nz  int
		sub = c.subIndex(name)
	)
	if sub < 0 {
		return
	}
	if nz, ok = c.find(row, col); !ok {
		return
	}
	var e int
	for d, n := range c.Subs[sub].Shape {
		e = e*n + idx[d]
	}
	return c.Value(sub, nz, e), true
}

// Lookup reconstructs the values of one key, row-major per sub-array.
func (c *Compressed) Lookup(row, col int) (values [][]float64, ok bool) {
	var nz int
	if nz, ok = c.find(row, col); !ok {
		return
	}
	values = c.item(nz)
	return
}

func (c *Compressed) item(nz int) (values [][]float64) {
	values = make([][]float64, len(c.Subs))
	for i, sub := range c.Subs {
		v := make([]float64, sub.Size())
		for e := range v {
			v[e] = c.Value(i, nz, e)
		}
		values[i] = v
	}
	return
}

type Item struct {
	Row, Col int
	Values   [][]float64
}

// Items lists every key in row then column order.
func (c *Compressed) Items() (items []Item) {
	items = make([]Item, 0, c.NNZ())
	for row := 0; row < c.NumRows; row++ {
		for nz := c.Indptr[row]; nz < c.Indptr[row+1]; nz++ {
			items = append(items, Item{Row: row, Col: c.Indices[nz], Values: c.item(nz)})
		}
	}
	return
}

// Pattern is the sparsity structure as a CSR matrix of ones.
func (c *Compressed) Pattern() *sparse.CSR {
	var (
		ia   = make([]int, len(c.Indptr))
		ja   = make([]int, len(c.Indices))
		ones = make([]float64, len(c.Indices))
	)
	copy(ia, c.Indptr)
	copy(ja, c.Indices)
	for i := range ones {
		ones[i] = 1
	}
	return sparse.NewCSR(c.NumRows, c.NumRows, ia, ja, ones)
}

// Component extracts scalar element e of the named sub-array as a CSR
// matrix.
func (c *Compressed) Component(name string, e int) (m *sparse.CSR, err error) {
	var (
		sub = c.subIndex(name)
	)
	if sub < 0 {
		return nil, fmt.Errorf("%w: no sub-array %q", ErrShapeMismatch, name)
	}
	if e < 0 || e >= c.Subs[sub].Size() {
		return nil, fmt.Errorf("%w: element %d of %s", ErrShapeMismatch, e, name)
	}
	dok := sparse.NewDOK(c.NumRows, c.NumRows)
	for row := 0; row < c.NumRows; row++ {
		for nz := c.Indptr[row]; nz < c.Indptr[row+1]; nz++ {
			dok.Set(row, c.Indices[nz], c.Value(sub, nz, e))
		}
	}
	return dok.ToCSR(), nil
}
