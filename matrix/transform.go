package matrix

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// maskTerm pairs a rotation amount with the plaintext mask selecting the
// slots that the rotated ciphertext contributes to.
type maskTerm struct {
	amount int
	mask   []float64
}

// maskWhere builds a tile-periodic binary mask over all slots. The predicate
// receives the (row, col) coordinates of the slot within its tile.
func maskWhere(slots, tile, numCols int, pred func(row, col int) bool) []float64 {
	m := make([]float64, slots)
	for s := range m {
		t := s % tile
		if pred(t/numCols, t%numCols) {
			m[s] = 1
		}
	}
	return m
}

// onesMask returns the all-ones mask. Multiplying by it is the identity up to
// a rescaling, which keeps branchless sums at a uniform scale.
func onesMask(slots int) []float64 {
	m := make([]float64, slots)
	for s := range m {
		m[s] = 1
	}
	return m
}

// maskedRotateSum evaluates sum_t mask_t * rot(ct, amount_t) followed by a
// single rescaling. All terms are products of operands at the same level and
// scale, so the additions are exact. Costs one level.
func (eval *Evaluator) maskedRotateSum(ct *rlwe.Ciphertext, terms []maskTerm) (*rlwe.Ciphertext, error) {
	eval.sync()
	var acc *rlwe.Ciphertext
	for _, term := range terms {
		rot := ct
		if term.amount != 0 {
			var err error
			if rot, err = eval.RotateNew(ct, term.amount); err != nil {
				return nil, fmt.Errorf("rotate by %d: %w", term.amount, err)
			}
		}
		prod, err := eval.MulNew(rot, term.mask)
		if err != nil {
			return nil, fmt.Errorf("mask product: %w", err)
		}
		if acc == nil {
			acc = prod
			continue
		}
		if err = eval.Add(acc, prod, acc); err != nil {
			return nil, err
		}
	}
	if err := eval.Rescale(acc, acc); err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}
	return acc, nil
}

// sigmaTerms arranges a row-major square matrix so that row i is cyclically
// shifted left by i: out[i][j] = in[i][(i+j) mod d].
func sigmaTerms(slots, numCols int) []maskTerm {
	d := numCols
	tile := d * d
	terms := make([]maskTerm, 0, 2*d-1)
	for i := 0; i < d; i++ {
		i := i
		terms = append(terms, maskTerm{
			amount: i,
			mask:   maskWhere(slots, tile, d, func(row, col int) bool { return row == i && col < d-i }),
		})
		if i > 0 {
			terms = append(terms, maskTerm{
				amount: i - d,
				mask:   maskWhere(slots, tile, d, func(row, col int) bool { return row == i && col >= d-i }),
			})
		}
	}
	return terms
}

// tauTerms arranges a row-major square matrix so that column j is cyclically
// shifted up by j: out[i][j] = in[(i+j) mod d][j]. Tiling makes the vertical
// wrap-around a single rotation per column.
func tauTerms(slots, numCols int) []maskTerm {
	d := numCols
	tile := d * d
	terms := make([]maskTerm, 0, d)
	for j := 0; j < d; j++ {
		j := j
		terms = append(terms, maskTerm{
			amount: d * j,
			mask:   maskWhere(slots, tile, d, func(row, col int) bool { return col == j }),
		})
	}
	return terms
}

// phiTerms shifts every row left by k: out[i][j] = in[i][(j+k) mod d]. The
// k=0 case degenerates to an all-ones mask so that callers chaining rounds
// keep every round at the same level and scale.
func phiTerms(slots, numCols, k int) []maskTerm {
	d := numCols
	k = ((k % d) + d) % d
	if k == 0 {
		return []maskTerm{{amount: 0, mask: onesMask(slots)}}
	}
	tile := d * d
	return []maskTerm{
		{
			amount: k,
			mask:   maskWhere(slots, tile, d, func(row, col int) bool { return col < d-k }),
		},
		{
			amount: k - d,
			mask:   maskWhere(slots, tile, d, func(row, col int) bool { return col >= d-k }),
		},
	}
}

// transposeTerms maps out[i][j] = in[j][i]. Each diagonal col-row = k moves by
// a fixed amount (d-1)*k.
func transposeTerms(slots, numCols int) []maskTerm {
	d := numCols
	tile := d * d
	terms := make([]maskTerm, 0, 2*d-1)
	for k := -(d - 1); k <= d-1; k++ {
		k := k
		terms = append(terms, maskTerm{
			amount: (d - 1) * k,
			mask:   maskWhere(slots, tile, d, func(row, col int) bool { return col-row == k }),
		})
	}
	return terms
}

// LinTransSigma applies the row-shift arrangement used on the left operand of
// a square matrix product. Costs one level.
func (eval *Evaluator) LinTransSigma(ct *rlwe.Ciphertext, numCols int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ct, numCols); err != nil {
		return nil, err
	}
	return eval.maskedRotateSum(ct, sigmaTerms(ct.Slots(), numCols))
}

// LinTransTau applies the column-shift arrangement used on the right operand
// of a square matrix product. Costs one level.
func (eval *Evaluator) LinTransTau(ct *rlwe.Ciphertext, numCols int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ct, numCols); err != nil {
		return nil, err
	}
	return eval.maskedRotateSum(ct, tauTerms(ct.Slots(), numCols))
}

// LinTransPhi shifts every row of a square matrix left by numRepeats
// positions, wrapping within the row. Costs one level.
func (eval *Evaluator) LinTransPhi(ct *rlwe.Ciphertext, numCols, numRepeats int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ct, numCols); err != nil {
		return nil, err
	}
	if numRepeats == 0 {
		numRepeats = 1
	}
	return eval.maskedRotateSum(ct, phiTerms(ct.Slots(), numCols, numRepeats))
}

// LinTransPsi shifts every column of a square matrix up by numRepeats
// positions. Tiling makes this a single mask-free rotation, costing no level.
func (eval *Evaluator) LinTransPsi(ct *rlwe.Ciphertext, numCols, numRepeats int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ct, numCols); err != nil {
		return nil, err
	}
	if numRepeats == 0 {
		numRepeats = 1
	}
	k := numRepeats % numCols
	if k == 0 {
		return ct.CopyNew(), nil
	}
	eval.sync()
	return eval.RotateNew(ct, numCols*k)
}

// LinTransTranspose transposes a square matrix in place of its packing.
// Costs one level.
func (eval *Evaluator) LinTransTranspose(ct *rlwe.Ciphertext, numCols int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ct, numCols); err != nil {
		return nil, err
	}
	return eval.maskedRotateSum(ct, transposeTerms(ct.Slots(), numCols))
}

// Apply dispatches to the linear transform named by kind. numRepeats is the
// shift step of Phi and Psi and is ignored by the other kinds.
func (eval *Evaluator) Apply(kind TransformKind, ct *rlwe.Ciphertext, numCols, numRepeats int) (*rlwe.Ciphertext, error) {
	switch kind {
	case Sigma:
		return eval.LinTransSigma(ct, numCols)
	case Tau:
		return eval.LinTransTau(ct, numCols)
	case Phi:
		return eval.LinTransPhi(ct, numCols, numRepeats)
	case Psi:
		return eval.LinTransPsi(ct, numCols, numRepeats)
	case Transpose:
		return eval.LinTransTranspose(ct, numCols)
	default:
		return nil, fmt.Errorf("transform %d: %w", kind, ErrUnsupportedEncoding)
	}
}

// ApplyWithKeyGen ensures the rotation keys that kind requires under sk, then
// applies the transform. Callers batching several transforms should instead
// ensure all amounts once and call Apply.
func (eval *Evaluator) ApplyWithKeyGen(sk *rlwe.SecretKey, kind TransformKind, ct *rlwe.Ciphertext, numCols, numRepeats int) (*rlwe.Ciphertext, error) {
	amounts, err := Rotations(kind, numCols, numRepeats)
	if err != nil {
		return nil, err
	}
	if err := eval.Keys.Ensure(sk, amounts); err != nil {
		return nil, err
	}
	return eval.Apply(kind, ct, numCols, numRepeats)
}
