package modes

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

var ErrIndexOutOfRange = errors.New("modes: index out of range")

// Mode is a refined resonance: complex frequency S with right and left
// eigenvectors normalised so that Vl . Z'(S) . Vr = 1.
type Mode struct {
	S      complex128
	Vr, Vl []complex128
}

// Conj is the mode at conj(S), which exists for every operator that is real
// on the real frequency axis.
func (m Mode) Conj() Mode {
	return Mode{S: cmplx.Conj(m.S), Vr: conjVec(m.Vr), Vl: conjVec(m.Vl)}
}

func conjVec(v []complex128) (c []complex128) {
	if v == nil {
		return
	}
	c = make([]complex128, len(v))
	for i, val := range v {
		c[i] = cmplx.Conj(val)
	}
	return
}

// ModeSet is an immutable ordered collection of modes. Unless re-sorted with
// SortBy it is ordered by ascending imag(S), ties keeping insertion order.
type ModeSet struct {
	modes []Mode
}

func NewModeSet(m []Mode) (ms *ModeSet) {
	ms = &ModeSet{modes: make([]Mode, len(m))}
	copy(ms.modes, m)
	sort.SliceStable(ms.modes, func(i, j int) bool {
		return imag(ms.modes[i].S) < imag(ms.modes[j].S)
	})
	return
}

func (ms *ModeSet) Len() int { return len(ms.modes) }

func (ms *ModeSet) At(i int) Mode { return ms.modes[i] }

func (ms *ModeSet) Modes() (m []Mode) {
	m = make([]Mode, len(ms.modes))
	copy(m, ms.modes)
	return
}

func (ms *ModeSet) Frequencies() (s []complex128) {
	s = make([]complex128, len(ms.modes))
	for i, m := range ms.modes {
		s[i] = m.S
	}
	return
}

// Select returns the modes at the given indices, in the order given.
func (ms *ModeSet) Select(indices []int) (*ModeSet, error) {
	sel := make([]Mode, len(indices))
	for k, i := range indices {
		if i < 0 || i >= len(ms.modes) {
			return nil, fmt.Errorf("%w: %d of %d modes", ErrIndexOutOfRange, i, len(ms.modes))
		}
		sel[k] = ms.modes[i]
	}
	return &ModeSet{modes: sel}, nil
}

// AddConjugates appends conj of every mode that has no partner within
// tol*max(1,|s|) of its conjugate, then restores the imaginary part order. A
// mode on the real axis is its own partner.
func (ms *ModeSet) AddConjugates(tol float64) *ModeSet {
	var (
		all = ms.Modes()
	)
	for _, m := range ms.modes {
		var (
			target = cmplx.Conj(m.S)
			limit  = tol * math.Max(1, cmplx.Abs(m.S))
			paired bool
		)
		for _, other := range all {
			if cmplx.Abs(other.S-target) <= limit {
				paired = true
				break
			}
		}
		if !paired {
			all = append(all, m.Conj())
		}
	}
	return NewModeSet(all)
}

// SortBy returns the set re-sorted by less, stable for equal modes.
func (ms *ModeSet) SortBy(less func(a, b Mode) bool) *ModeSet {
	m := ms.Modes()
	sort.SliceStable(m, func(i, j int) bool { return less(m[i], m[j]) })
	return &ModeSet{modes: m}
}

// ResponseTo is the singularity expansion of Z(s)^-1 V,
// sum over modes of Vr (Vl . V)/(s - S).
func (ms *ModeSet) ResponseTo(s complex128, V []complex128) (x []complex128) {
	x = make([]complex128, len(V))
	for _, m := range ms.modes {
		if len(m.Vl) != len(V) || len(m.Vr) != len(V) {
			panic(fmt.Errorf("dimension mismatch in ResponseTo: mode size %d, len(V) = %d", len(m.Vr), len(V)))
		}
		var coef complex128
		for i, val := range m.Vl {
			coef += val * V[i]
		}
		coef /= s - m.S
		for i, val := range m.Vr {
			x[i] += coef * val
		}
	}
	return
}
