package matrix

import (
	"fmt"
)

// checkSameShape verifies that two arrays share logical shape, tile geometry
// and encoding, so their slots line up entry for entry.
func checkSameShape(a, b *Array) error {
	if a.Info != b.Info {
		return fmt.Errorf("%+v vs %+v: %w", a.Info, b.Info, ErrShapeMismatch)
	}
	if a.Slots() != b.Slots() {
		return fmt.Errorf("%d vs %d slots: %w", a.Slots(), b.Slots(), ErrShapeMismatch)
	}
	return nil
}

// EvalAdd adds two packed arrays entry-wise.
func (eval *Evaluator) EvalAdd(a, b *Array) (*Array, error) {
	if err := checkSameShape(a, b); err != nil {
		return nil, err
	}
	out, err := eval.AddNew(a.Ciphertext, b.Ciphertext)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: a.Info}, nil
}

// EvalSub subtracts b from a entry-wise.
func (eval *Evaluator) EvalSub(a, b *Array) (*Array, error) {
	if err := checkSameShape(a, b); err != nil {
		return nil, err
	}
	out, err := eval.SubNew(a.Ciphertext, b.Ciphertext)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: a.Info}, nil
}

// EvalHadamard multiplies two packed arrays entry-wise. Costs one level.
func (eval *Evaluator) EvalHadamard(a, b *Array) (*Array, error) {
	if err := checkSameShape(a, b); err != nil {
		return nil, err
	}
	out, err := eval.hadamard(a.Ciphertext, b.Ciphertext)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: a.Info}, nil
}
