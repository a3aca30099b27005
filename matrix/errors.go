package matrix

import "errors"

// Every error returned by this package is a caller-configuration defect,
// detected before the corresponding homomorphic operation is issued; there are
// no transient or retryable failures. Errors raised by the scheme itself
// (e.g. level exhaustion) are propagated unmodified.
var (
	// ErrInvalidDimension reports a non-positive dimension or a packing tile
	// that does not divide the ciphertext slot count.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrShapeMismatch reports operands whose packing metadata is
	// inconsistent with the requested operation.
	ErrShapeMismatch = errors.New("operand shapes mismatch")

	// ErrKeyNotFound reports a rotation requested at evaluation time whose
	// key was never ensured.
	ErrKeyNotFound = errors.New("rotation key not found")

	// ErrUnsupportedEncoding reports an encoding or transform kind outside
	// the closed enumerations.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)
