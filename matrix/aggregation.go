package matrix

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// prefixSum computes an inclusive running sum along runs of length n at the
// given stride. The axis predicate maps a tile slot to its position along the
// run. For a power-of-two n the sum doubles its reach each step, consuming
// one level per step; otherwise a single masked layer of n-1 shifted copies
// does it in one level.
func (eval *Evaluator) prefixSum(ct *rlwe.Ciphertext, n, stride, numCols, numRows int, position func(row, col int) int) (*rlwe.Ciphertext, error) {
	if n == 1 {
		return ct.CopyNew(), nil
	}
	slots := ct.Slots()
	tile := numCols * numRows

	if isPowerOfTwo(n) {
		acc := ct
		for _, e := range reductionSteps(n) {
			e := e
			terms := []maskTerm{
				{amount: 0, mask: onesMask(slots)},
				{
					amount: -stride * e,
					mask:   maskWhere(slots, tile, numCols, func(row, col int) bool { return position(row, col) >= e }),
				},
			}
			var err error
			if acc, err = eval.maskedRotateSum(acc, terms); err != nil {
				return nil, fmt.Errorf("step %d: %w", e, err)
			}
		}
		return acc, nil
	}

	terms := make([]maskTerm, 0, n)
	terms = append(terms, maskTerm{amount: 0, mask: onesMask(slots)})
	for t := 1; t < n; t++ {
		t := t
		terms = append(terms, maskTerm{
			amount: -stride * t,
			mask:   maskWhere(slots, tile, numCols, func(row, col int) bool { return position(row, col) >= t }),
		})
	}
	return eval.maskedRotateSum(ct, terms)
}

// SumCumRows replaces every entry of a row-major packed matrix with the
// inclusive running sum of its row: out[i][j] = sum_{t<=j} in[i][t].
func (eval *Evaluator) SumCumRows(ct *rlwe.Ciphertext, numCols, numRows int) (*rlwe.Ciphertext, error) {
	numRows, err := inferRows(ct, numCols, numRows)
	if err != nil {
		return nil, err
	}
	return eval.prefixSum(ct, numCols, 1, numCols, numRows, func(row, col int) int { return col })
}

// SumCumCols replaces every entry with the inclusive running sum of its
// column: out[i][j] = sum_{t<=i} in[t][j].
func (eval *Evaluator) SumCumCols(ct *rlwe.Ciphertext, numCols, numRows int) (*rlwe.Ciphertext, error) {
	numRows, err := inferRows(ct, numCols, numRows)
	if err != nil {
		return nil, err
	}
	return eval.prefixSum(ct, numRows, numCols, numCols, numRows, func(row, col int) int { return row })
}

// ReduceRows replaces every entry with the total of its row, broadcasting the
// sums back across each row. Costs one level.
func (eval *Evaluator) ReduceRows(ct *rlwe.Ciphertext, numCols, numRows int) (*rlwe.Ciphertext, error) {
	numRows, err := inferRows(ct, numCols, numRows)
	if err != nil {
		return nil, err
	}
	if numCols == 1 {
		return ct.CopyNew(), nil
	}
	// Forward reduction leaves the row totals in column 0, mixed sums
	// elsewhere; mask column 0 out and replicate it back across the row.
	sum, err := eval.reduceFree(ct, numCols, 1)
	if err != nil {
		return nil, err
	}
	tile := numRows * numCols
	head, err := eval.MulNew(sum, maskWhere(ct.Slots(), tile, numCols, func(row, col int) bool { return col == 0 }))
	if err != nil {
		return nil, err
	}
	if err = eval.Rescale(head, head); err != nil {
		return nil, err
	}
	return eval.reduceFree(head, numCols, -1)
}

// ReduceCols replaces every entry with the total of its column. Tiling makes
// the column reduction wrap on itself, so no masking is needed and the
// operation costs no level.
func (eval *Evaluator) ReduceCols(ct *rlwe.Ciphertext, numCols, numRows int) (*rlwe.Ciphertext, error) {
	numRows, err := inferRows(ct, numCols, numRows)
	if err != nil {
		return nil, err
	}
	if numRows == 1 {
		return ct.CopyNew(), nil
	}
	return eval.reduceFree(ct, numRows, numCols)
}

func (eval *Evaluator) scale(ct *rlwe.Ciphertext, c float64) (*rlwe.Ciphertext, error) {
	out, err := eval.MulNew(ct, c)
	if err != nil {
		return nil, err
	}
	if err = eval.Rescale(out, out); err != nil {
		return nil, err
	}
	return out, nil
}

// inferRows validates the tile geometry, deriving the row count from the slot
// count when numRows is zero.
func inferRows(ct *rlwe.Ciphertext, numCols, numRows int) (int, error) {
	if numCols <= 0 || numRows < 0 {
		return 0, fmt.Errorf("numCols=%d, numRows=%d: %w", numCols, numRows, ErrInvalidDimension)
	}
	if numRows == 0 {
		if ct.Slots()%numCols != 0 {
			return 0, fmt.Errorf("%d slots not divisible by %d columns: %w", ct.Slots(), numCols, ErrInvalidDimension)
		}
		numRows = ct.Slots() / numCols
	}
	return numRows, checkTile(ct, numCols, numRows)
}

// EvalSumCumRows is the array form of SumCumRows.
func (eval *Evaluator) EvalSumCumRows(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	out, err := eval.SumCumRows(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

// EvalSumCumCols is the array form of SumCumCols.
func (eval *Evaluator) EvalSumCumCols(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	out, err := eval.SumCumCols(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

// EvalReduceCumRows is the array form of ReduceRows.
func (eval *Evaluator) EvalReduceCumRows(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	out, err := eval.ReduceRows(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

// EvalReduceCumCols is the array form of ReduceCols.
func (eval *Evaluator) EvalReduceCumCols(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	out, err := eval.ReduceCols(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

// EvalMeanRows is the array form of MeanRows. The divisor is the logical row
// length, so the zero padding left by packing does not bias the mean.
func (eval *Evaluator) EvalMeanRows(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	n := ct.Info.Cols
	if n == 0 {
		n = ct.Info.Rows
	}
	sum, err := eval.ReduceRows(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	out, err := eval.scale(sum, 1/float64(n))
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

// EvalMeanCols is the array form of MeanCols. The divisor is the logical
// number of rows; a vector array spans a single row, so its column means are
// its own entries.
func (eval *Evaluator) EvalMeanCols(ct *Array) (*Array, error) {
	if err := requireRowMajor(ct); err != nil {
		return nil, err
	}
	n := ct.Info.Rows
	if ct.Info.Cols == 0 {
		n = 1
	}
	sum, err := eval.ReduceCols(ct.Ciphertext, ct.Info.NumCols, ct.Info.NumRows)
	if err != nil {
		return nil, err
	}
	out, err := eval.scale(sum, 1/float64(n))
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info}, nil
}

func requireRowMajor(ct *Array) error {
	if ct.Info.Encoding != RowMajor {
		return fmt.Errorf("aggregation needs a row-major operand: %w", ErrUnsupportedEncoding)
	}
	return nil
}
