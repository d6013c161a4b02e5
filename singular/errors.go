package singular

import "errors"

var (
	ErrUnsupportedBasisKind = errors.New("singular: basis is not a linear triangle basis")
	ErrQuadratureFailure    = errors.New("singular: face integration produced a non-finite value")
	ErrInvalidInput         = errors.New("singular: invalid input")
	ErrDuplicateKey         = errors.New("singular: key already stored")
	ErrShapeMismatch        = errors.New("singular: value does not match sub-array shape")
)
