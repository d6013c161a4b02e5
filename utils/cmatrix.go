package utils

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// CMatrix is a dense complex matrix. The row-major backing store is shared
// with M, so gonum consumers of mat.CMatrix see the same values.
type CMatrix struct {
	M      *mat.CDense
	data   []complex128
	nr, nc int
}

func NewCMatrix(nr, nc int, dataO ...[]complex128) (R *CMatrix) {
	var data []complex128
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewCMatrix nr,nc = %v,%v, len(data[0]) = %v\n", nr, nc, len(dataO[0]))
			panic(err)
		}
		data = dataO[0]
	} else {
		data = make([]complex128, nr*nc)
	}
	R = &CMatrix{
		data: data,
		nr:   nr,
		nc:   nc,
	}
	if nr > 0 && nc > 0 { // gonum rejects zero length matrices
		R.M = mat.NewCDense(nr, nc, data)
	}
	return
}

func NewCIdentity(n int) (R *CMatrix) {
	R = NewCMatrix(n, n)
	for i := 0; i < n; i++ {
		R.data[i*n+i] = 1
	}
	return
}

func NewCDiagonal(d []complex128) (R *CMatrix) {
	var n = len(d)
	R = NewCMatrix(n, n)
	for i, val := range d {
		R.data[i*n+i] = val
	}
	return
}

// Dims, At, H and T minimally satisfy the mat.CMatrix interface.
func (m *CMatrix) Dims() (r, c int)       { return m.nr, m.nc }
func (m *CMatrix) At(i, j int) complex128 { return m.data[i*m.nc+j] }
func (m *CMatrix) H() mat.CMatrix         { return m.ConjTranspose() }
func (m *CMatrix) T() mat.CMatrix         { return m.Transpose() }

func (m *CMatrix) Set(i, j int, v complex128) { m.data[i*m.nc+j] = v }
func (m *CMatrix) AddAt(i, j int, v complex128) {
	m.data[i*m.nc+j] += v
}
func (m *CMatrix) Data() []complex128 { return m.data }

func (m *CMatrix) Copy() (R *CMatrix) {
	var (
		data = make([]complex128, len(m.data))
	)
	copy(data, m.data)
	return NewCMatrix(m.nr, m.nc, data)
}

func (m *CMatrix) Transpose() (R *CMatrix) {
	R = NewCMatrix(m.nc, m.nr)
	for i := 0; i < m.nr; i++ {
		for j := 0; j < m.nc; j++ {
			R.data[j*m.nr+i] = m.data[i*m.nc+j]
		}
	}
	return
}

func (m *CMatrix) ConjTranspose() (R *CMatrix) {
	R = NewCMatrix(m.nc, m.nr)
	for i := 0; i < m.nr; i++ {
		for j := 0; j < m.nc; j++ {
			R.data[j*m.nr+i] = cmplx.Conj(m.data[i*m.nc+j])
		}
	}
	return
}

func (m *CMatrix) Mul(A *CMatrix) (R *CMatrix) { // Does not change receiver
	var (
		nrA, ncA = A.Dims()
	)
	if m.nc != nrA {
		panic(fmt.Errorf("dimension mismatch in Mul: (%d,%d) x (%d,%d)", m.nr, m.nc, nrA, ncA))
	}
	R = NewCMatrix(m.nr, ncA)
	for i := 0; i < m.nr; i++ {
		row := R.data[i*ncA : (i+1)*ncA]
		for k := 0; k < m.nc; k++ {
			a := m.data[i*m.nc+k]
			if a == 0 {
				continue
			}
			aRow := A.data[k*ncA : (k+1)*ncA]
			for j := range row {
				row[j] += a * aRow[j]
			}
		}
	}
	return
}

func (m *CMatrix) MulVec(v []complex128) (r []complex128) {
	if len(v) != m.nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: (%d,%d) x %d", m.nr, m.nc, len(v)))
	}
	r = make([]complex128, m.nr)
	for i := 0; i < m.nr; i++ {
		var sum complex128
		for j, val := range m.data[i*m.nc : (i+1)*m.nc] {
			sum += val * v[j]
		}
		r[i] = sum
	}
	return
}

// MulVecT computes m^T v, without conjugation.
func (m *CMatrix) MulVecT(v []complex128) (r []complex128) {
	if len(v) != m.nr {
		panic(fmt.Errorf("dimension mismatch in MulVecT: (%d,%d)^T x %d", m.nr, m.nc, len(v)))
	}
	r = make([]complex128, m.nc)
	for i := 0; i < m.nr; i++ {
		vi := v[i]
		for j, val := range m.data[i*m.nc : (i+1)*m.nc] {
			r[j] += val * vi
		}
	}
	return
}

func (m *CMatrix) Add(A *CMatrix) *CMatrix { // Changes receiver
	m.checkSameDims(A)
	for i, val := range A.data {
		m.data[i] += val
	}
	return m
}

func (m *CMatrix) AddScaled(alpha complex128, A *CMatrix) *CMatrix { // Changes receiver
	m.checkSameDims(A)
	for i, val := range A.data {
		m.data[i] += alpha * val
	}
	return m
}

func (m *CMatrix) Scale(alpha complex128) *CMatrix { // Changes receiver
	for i := range m.data {
		m.data[i] *= alpha
	}
	return m
}

func (m *CMatrix) Col(j int) (c []complex128) {
	c = make([]complex128, m.nr)
	for i := range c {
		c[i] = m.data[i*m.nc+j]
	}
	return
}

func (m *CMatrix) SetCol(j int, c []complex128) {
	if len(c) != m.nr {
		panic(fmt.Errorf("dimension mismatch in SetCol: %d rows, len = %d", m.nr, len(c)))
	}
	for i, val := range c {
		m.data[i*m.nc+j] = val
	}
}

// Slice returns rows [I,K) and columns [J,L) as a new matrix.
func (m *CMatrix) Slice(I, K, J, L int) (R *CMatrix) {
	R = NewCMatrix(K-I, L-J)
	for i := I; i < K; i++ {
		copy(R.data[(i-I)*(L-J):(i-I+1)*(L-J)], m.data[i*m.nc+J:i*m.nc+L])
	}
	return
}

// MaxAbs is the largest element magnitude, used as a scale for pivot and
// symmetry tolerances.
func (m *CMatrix) MaxAbs() (max float64) {
	for _, val := range m.data {
		if a := cmplx.Abs(val); a > max {
			max = a
		}
	}
	return
}

func (m *CMatrix) IsFinite() bool {
	for _, val := range m.data {
		if cmplx.IsNaN(val) || cmplx.IsInf(val) {
			return false
		}
	}
	return true
}

// Embed returns the real 2nr x 2nc matrix [[Re, -Im], [Im, Re]], which maps
// [Re x; Im x] to [Re mx; Im mx].
func (m *CMatrix) Embed() (R *mat.Dense) {
	R = mat.NewDense(2*m.nr, 2*m.nc, nil)
	for i := 0; i < m.nr; i++ {
		for j := 0; j < m.nc; j++ {
			val := m.data[i*m.nc+j]
			re, im := real(val), imag(val)
			R.Set(i, j, re)
			R.Set(i, j+m.nc, -im)
			R.Set(i+m.nr, j, im)
			R.Set(i+m.nr, j+m.nc, re)
		}
	}
	return
}

func (m *CMatrix) checkSameDims(A *CMatrix) {
	if m.nr != A.nr || m.nc != A.nc {
		panic(fmt.Errorf("dimension mismatch: (%d,%d) vs (%d,%d)", m.nr, m.nc, A.nr, A.nc))
	}
}

// DotU is the unconjugated product sum(a[i]*b[i]).
func DotU(a, b []complex128) (sum complex128) {
	if len(a) != len(b) {
		panic(fmt.Errorf("dimension mismatch in DotU: %d vs %d", len(a), len(b)))
	}
	for i, val := range a {
		sum += val * b[i]
	}
	return
}

// DotC is the conjugated product sum(conj(a[i])*b[i]).
func DotC(a, b []complex128) (sum complex128) {
	if len(a) != len(b) {
		panic(fmt.Errorf("dimension mismatch in DotC: %d vs %d", len(a), len(b)))
	}
	for i, val := range a {
		sum += cmplx.Conj(val) * b[i]
	}
	return
}

func CNorm(a []complex128) float64 {
	var sum float64
	for _, val := range a {
		re, im := real(val), imag(val)
		sum += re*re + im*im
	}
	return math.Sqrt(sum)
}

func CScale(alpha complex128, a []complex128) []complex128 {
	for i := range a {
		a[i] *= alpha
	}
	return a
}

// ArgMaxAbs returns the index of the element with largest magnitude.
func ArgMaxAbs(a []complex128) (ind int) {
	var max = -1.
	for i, val := range a {
		if v := cmplx.Abs(val); v > max {
			max = v
			ind = i
		}
	}
	return
}

func CIsFinite(a []complex128) bool {
	for _, val := range a {
		if cmplx.IsNaN(val) || cmplx.IsInf(val) {
			return false
		}
	}
	return true
}
