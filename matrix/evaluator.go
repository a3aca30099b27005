package matrix

import (
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// Backend is the subset of a scheme evaluator that the matrix engines rely
// on. It abstracts the underlying arithmetic so the engines stay agnostic of
// the scheme instantiation; *hefloat.Evaluator satisfies it.
type Backend interface {
	rlwe.ParameterProvider

	Add(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	AddNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	Sub(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	SubNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	Mul(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	MulNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	MulRelin(op0 *rlwe.Ciphertext, op1 rlwe.Operand, opOut *rlwe.Ciphertext) error
	MulRelinNew(op0 *rlwe.Ciphertext, op1 rlwe.Operand) (*rlwe.Ciphertext, error)
	Rotate(op0 *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) error
	RotateNew(op0 *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error)
	Rescale(op0, opOut *rlwe.Ciphertext) error
}

// Evaluator evaluates linear-algebra operations over encrypted matrices. It
// wraps a scheme Backend and the KeyManager holding the rotation keys the
// operations consume.
//
// Scheme evaluators snapshot their evaluation-key set at construction: an
// rlwe-based evaluator precomputes its automorphism indexes from the Galois
// keys present when it is built, and keys ensured afterwards are invisible to
// it. The Evaluator therefore builds its backend through a factory and
// rebuilds it whenever the key cache has grown since the last operation, so
// Ensure can be called at any time relative to construction.
//
// Like the scheme evaluators it wraps, an Evaluator is not safe for
// concurrent use.
type Evaluator struct {
	Backend
	Keys *KeyManager

	newBackend func(rlwe.EvaluationKeySet) Backend
	generation uint64
}

// NewEvaluator wraps a scheme evaluator and a key cache into a matrix
// evaluator. The factory receives the KeyManager as the evaluation-key set
// and is re-invoked when the key cache changes:
//
//	eval := matrix.NewEvaluator(func(evk rlwe.EvaluationKeySet) matrix.Backend {
//		return hefloat.NewEvaluator(params, evk)
//	}, keys)
func NewEvaluator(newBackend func(rlwe.EvaluationKeySet) Backend, keys *KeyManager) *Evaluator {
	return &Evaluator{
		Backend:    newBackend(keys),
		Keys:       keys,
		newBackend: newBackend,
		generation: keys.GenerationCount(),
	}
}

// sync rebuilds the backend if keys were generated since it was last built.
// Called on every rotation path before the first rotation is issued.
func (eval *Evaluator) sync() {
	if gen := eval.Keys.GenerationCount(); gen != eval.generation {
		eval.Backend = eval.newBackend(eval.Keys)
		eval.generation = gen
	}
}
