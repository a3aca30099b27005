package matrix

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// This file computes, for every transform and every composite operation, the
// set of rotation amounts its evaluation will request. Key generation and the
// runtime engines both derive their rotations from these functions, so every
// rotation an operation issues has its key generated. Amount 0 appears only
// where a closed-form set includes it; the engines never rotate by 0.
//
// All amounts are slot-count-relative and lie in (-numCols^2, numCols^2) for a
// square numCols x numCols tile.

// Rotations returns the ordered set of distinct rotation amounts required to
// evaluate a single structural permutation of the given kind on a matrix of
// width numCols. numRepeats is the shift step of Phi and Psi (0 is treated as
// 1) and is ignored by the other kinds.
func Rotations(kind TransformKind, numCols, numRepeats int) ([]int, error) {
	if numCols <= 0 {
		return nil, fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	if numRepeats < 0 {
		return nil, fmt.Errorf("numRepeats=%d: %w", numRepeats, ErrInvalidDimension)
	}
	d := numCols
	k := numRepeats
	if k == 0 {
		k = 1
	}
	k %= d

	set := make(map[int]struct{})
	switch kind {
	case Sigma:
		// Row i contributes amounts i and i-d, covering the unwrapped and
		// wrapped part of its shift.
		for i := 0; i < d; i++ {
			set[i] = struct{}{}
		}
		for i := 1; i < d; i++ {
			set[i-d] = struct{}{}
		}
	case Tau:
		// Column j is lifted by whole-row increments; tiling absorbs the wrap.
		for j := 0; j < d; j++ {
			set[d*j] = struct{}{}
		}
	case Phi:
		// A shift step that is a multiple of the width is the identity under
		// tiling and rotates nothing.
		if k != 0 {
			set[k] = struct{}{}
			set[k-d] = struct{}{}
		}
	case Psi:
		if k != 0 {
			set[d*k] = struct{}{}
		}
	case Transpose:
		for i := -(d - 1); i < d; i++ {
			set[(d-1)*i] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("transform kind %v: %w", kind, ErrUnsupportedEncoding)
	}
	return sortedAmounts(set), nil
}

// RotationsForSquareMatMul returns the rotations used by MulSquare: the Sigma
// and Tau pre-permutations, the Phi steps of every round and the single Psi
// step the rounds reuse. The Phi and Psi amounts are subsets of the Sigma and
// Tau sets, so the union is exactly Sigma's set joined with Tau's.
func RotationsForSquareMatMul(numCols int) ([]int, error) {
	if numCols <= 0 {
		return nil, fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	set := make(map[int]struct{})
	for _, kind := range []TransformKind{Sigma, Tau} {
		rots, err := Rotations(kind, numCols, 0)
		if err != nil {
			return nil, err
		}
		for _, r := range rots {
			set[r] = struct{}{}
		}
	}
	return sortedAmounts(set), nil
}

// RotationsForMatVec returns the rotations used by MulMatVec under the given
// encoding.
func RotationsForMatVec(encoding MatVecEncoding, numCols int) ([]int, error) {
	if numCols <= 0 {
		return nil, fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	d := numCols
	set := make(map[int]struct{})
	switch encoding {
	case MatVecCRC:
		for _, e := range reductionSteps(d) {
			set[e] = struct{}{}
		}
	case MatVecRCR:
		for _, e := range reductionSteps(d) {
			set[d*e] = struct{}{}
		}
	case MatVecDiag:
		// Vector arrangement rotations plus the column reduction.
		for kidx := 1; kidx < d; kidx++ {
			set[kidx] = struct{}{}
		}
		for _, e := range reductionSteps(d) {
			set[d*e] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("matvec encoding %v: %w", encoding, ErrUnsupportedEncoding)
	}
	return sortedAmounts(set), nil
}

// RotationsForSumCumRows returns the rotations of the in-row prefix sum.
func RotationsForSumCumRows(numCols int) ([]int, error) {
	if numCols <= 0 {
		return nil, fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	set := make(map[int]struct{})
	for _, e := range reductionSteps(numCols) {
		set[-e] = struct{}{}
	}
	return sortedAmounts(set), nil
}

// RotationsForSumCumCols returns the rotations of the down-column prefix sum.
// numRows == 0 defers row inference to evaluation time, in which case the
// caller must pass the actual row count used there.
func RotationsForSumCumCols(numCols, numRows int) ([]int, error) {
	if numCols <= 0 || numRows <= 0 {
		return nil, fmt.Errorf("numCols=%d, numRows=%d: %w", numCols, numRows, ErrInvalidDimension)
	}
	set := make(map[int]struct{})
	for _, e := range reductionSteps(numRows) {
		set[-numCols*e] = struct{}{}
	}
	return sortedAmounts(set), nil
}

// RotationsForReduceRows returns the rotations of the row-total broadcast:
// forward steps for the reduction and backward steps for replicating the
// column-0 totals across each row.
func RotationsForReduceRows(numCols int) ([]int, error) {
	if numCols <= 0 {
		return nil, fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	set := make(map[int]struct{})
	for _, e := range reductionSteps(numCols) {
		set[e] = struct{}{}
		set[-e] = struct{}{}
	}
	return sortedAmounts(set), nil
}

// RotationsForReduceCols returns the rotations of the column-total broadcast.
func RotationsForReduceCols(numCols, numRows int) ([]int, error) {
	if numCols <= 0 || numRows <= 0 {
		return nil, fmt.Errorf("numCols=%d, numRows=%d: %w", numCols, numRows, ErrInvalidDimension)
	}
	set := make(map[int]struct{})
	for _, e := range reductionSteps(numRows) {
		set[numCols*e] = struct{}{}
	}
	return sortedAmounts(set), nil
}

// reductionSteps returns the rotate-and-add steps covering a run of length n:
// doubling steps 1, 2, 4, ..., n/2 when n is a power of two, otherwise every
// single step 1..n-1.
func reductionSteps(n int) []int {
	if n <= 1 {
		return nil
	}
	var steps []int
	if isPowerOfTwo(n) {
		for e := 1; e < n; e <<= 1 {
			steps = append(steps, e)
		}
	} else {
		for e := 1; e < n; e++ {
			steps = append(steps, e)
		}
	}
	return steps
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func sortedAmounts(set map[int]struct{}) []int {
	amounts := maps.Keys(set)
	slices.Sort(amounts)
	return amounts
}
