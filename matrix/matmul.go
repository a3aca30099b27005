package matrix

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// reduceFree accumulates rot(ct, stride*e) for every reduction step over a run
// of length n. Mask-free, so it costs no level. For a power-of-two n the steps
// double, each round adding the previous accumulator to a shifted copy of
// itself, which covers the full run in log2(n) rotations.
func (eval *Evaluator) reduceFree(ct *rlwe.Ciphertext, n, stride int) (*rlwe.Ciphertext, error) {
	eval.sync()
	acc := ct.CopyNew()
	if isPowerOfTwo(n) {
		for _, e := range reductionSteps(n) {
			rot, err := eval.RotateNew(acc, stride*e)
			if err != nil {
				return nil, fmt.Errorf("rotate by %d: %w", stride*e, err)
			}
			if err = eval.Add(acc, rot, acc); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	for _, e := range reductionSteps(n) {
		rot, err := eval.RotateNew(ct, stride*e)
		if err != nil {
			return nil, fmt.Errorf("rotate by %d: %w", stride*e, err)
		}
		if err = eval.Add(acc, rot, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// hadamard multiplies two ciphertexts slot-wise, relinearizes and rescales.
func (eval *Evaluator) hadamard(ct0, ct1 *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	prod, err := eval.MulRelinNew(ct0, ct1)
	if err != nil {
		return nil, err
	}
	if err = eval.Rescale(prod, prod); err != nil {
		return nil, err
	}
	return prod, nil
}

// MulMatVec multiplies an encrypted matrix by an encrypted vector. The matrix
// occupies a square numCols x numCols tile packed per the encoding; the vector
// must be replicated to match (row-replicated for MatVecCRC and MatVecDiag,
// block-replicated for MatVecRCR). The returned encoding tells where the
// product lands: ColMajor means entry i sits at stride numCols, RowMajor at
// stride 1.
func (eval *Evaluator) MulMatVec(encoding MatVecEncoding, numCols int, ctMat, ctVec *rlwe.Ciphertext) (*rlwe.Ciphertext, ArrayEncoding, error) {
	if err := checkSquare(ctMat, numCols); err != nil {
		return nil, 0, err
	}
	d := numCols

	switch encoding {
	case MatVecCRC:
		prod, err := eval.hadamard(ctMat, ctVec)
		if err != nil {
			return nil, 0, err
		}
		out, err := eval.reduceFree(prod, d, 1)
		if err != nil {
			return nil, 0, err
		}
		return out, ColMajor, nil

	case MatVecRCR:
		prod, err := eval.hadamard(ctMat, ctVec)
		if err != nil {
			return nil, 0, err
		}
		out, err := eval.reduceFree(prod, d, d)
		if err != nil {
			return nil, 0, err
		}
		return out, RowMajor, nil

	case MatVecDiag:
		// Arrange the row-replicated vector so that tile row k holds the
		// vector rotated by k, matching the diagonal packing of the matrix.
		tile := d * d
		terms := make([]maskTerm, 0, d)
		for k := 0; k < d; k++ {
			k := k
			terms = append(terms, maskTerm{
				amount: k,
				mask:   maskWhere(ctVec.Slots(), tile, d, func(row, col int) bool { return row == k }),
			})
		}
		arranged, err := eval.maskedRotateSum(ctVec, terms)
		if err != nil {
			return nil, 0, err
		}
		prod, err := eval.hadamard(ctMat, arranged)
		if err != nil {
			return nil, 0, err
		}
		out, err := eval.reduceFree(prod, d, d)
		if err != nil {
			return nil, 0, err
		}
		return out, RowMajor, nil

	default:
		return nil, 0, fmt.Errorf("matvec encoding %v: %w", encoding, ErrUnsupportedEncoding)
	}
}

// MulMatVecWithKeyGen ensures the rotation and relinearization keys that the
// product requires under sk, then evaluates it.
func (eval *Evaluator) MulMatVecWithKeyGen(sk *rlwe.SecretKey, encoding MatVecEncoding, numCols int, ctMat, ctVec *rlwe.Ciphertext) (*rlwe.Ciphertext, ArrayEncoding, error) {
	amounts, err := RotationsForMatVec(encoding, numCols)
	if err != nil {
		return nil, 0, err
	}
	if err = eval.Keys.Ensure(sk, amounts); err != nil {
		return nil, 0, err
	}
	if err = eval.Keys.EnsureRelinearizationKey(sk); err != nil {
		return nil, 0, err
	}
	return eval.MulMatVec(encoding, numCols, ctMat, ctVec)
}

// MulSquare multiplies two encrypted square matrices packed row-major in
// numCols x numCols tiles. It evaluates
//
//	sum_k phi^k(sigma(A)) * psi^k(tau(B))
//
// where the psi side of round k is the previous round's operand rotated by a
// single row, so each extra round costs two masked rotations and one
// rotation. Costs three levels.
func (eval *Evaluator) MulSquare(ctA, ctB *rlwe.Ciphertext, numCols int) (*rlwe.Ciphertext, error) {
	if err := checkSquare(ctA, numCols); err != nil {
		return nil, err
	}
	if err := checkSquare(ctB, numCols); err != nil {
		return nil, err
	}
	d := numCols
	slots := ctA.Slots()

	sA, err := eval.LinTransSigma(ctA, d)
	if err != nil {
		return nil, fmt.Errorf("sigma: %w", err)
	}
	sB, err := eval.LinTransTau(ctB, d)
	if err != nil {
		return nil, fmt.Errorf("tau: %w", err)
	}

	// Round 0 passes the sigma side through an all-ones mask layer so every
	// round's partial product carries the same level and scale.
	var acc *rlwe.Ciphertext
	psi := sB
	for k := 0; k < d; k++ {
		phi, err := eval.maskedRotateSum(sA, phiTerms(slots, d, k))
		if err != nil {
			return nil, fmt.Errorf("phi round %d: %w", k, err)
		}
		if k > 0 {
			if psi, err = eval.RotateNew(psi, d); err != nil {
				return nil, fmt.Errorf("psi round %d: %w", k, err)
			}
		}
		prod, err := eval.MulRelinNew(phi, psi)
		if err != nil {
			return nil, fmt.Errorf("round %d product: %w", k, err)
		}
		if acc == nil {
			acc = prod
			continue
		}
		if err = eval.Add(acc, prod, acc); err != nil {
			return nil, err
		}
	}
	if err = eval.Rescale(acc, acc); err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}
	return acc, nil
}

// MulSquareWithKeyGen ensures the keys the square product requires under sk,
// then evaluates it.
func (eval *Evaluator) MulSquareWithKeyGen(sk *rlwe.SecretKey, ctA, ctB *rlwe.Ciphertext, numCols int) (*rlwe.Ciphertext, error) {
	amounts, err := RotationsForSquareMatMul(numCols)
	if err != nil {
		return nil, err
	}
	if err = eval.Keys.Ensure(sk, amounts); err != nil {
		return nil, err
	}
	if err = eval.Keys.EnsureRelinearizationKey(sk); err != nil {
		return nil, err
	}
	return eval.MulSquare(ctA, ctB, numCols)
}

// EvalMultMatVec multiplies an encrypted matrix array by an encrypted vector
// array. The packing encoding is inferred from the matrix array.
func (eval *Evaluator) EvalMultMatVec(ctMat, ctVec *Array) (*Array, error) {
	var encoding MatVecEncoding
	vecEnc := RowMajor
	switch ctMat.Info.Encoding {
	case RowMajor:
		encoding = MatVecCRC
	case ColMajor:
		encoding = MatVecRCR
		vecEnc = ColMajor
	case DiagMajor:
		encoding = MatVecDiag
	default:
		return nil, fmt.Errorf("matrix encoding %v: %w", ctMat.Info.Encoding, ErrUnsupportedEncoding)
	}
	d := ctMat.Info.NumCols
	if ctVec.Info.NumCols != d {
		return nil, fmt.Errorf("vector replicated over width %d, matrix width %d: %w", ctVec.Info.NumCols, d, ErrShapeMismatch)
	}
	if ctVec.Info.Encoding != vecEnc {
		return nil, fmt.Errorf("vector packed %v, product needs %v: %w", ctVec.Info.Encoding, vecEnc, ErrShapeMismatch)
	}
	if ctVec.Slots() != ctMat.Slots() {
		return nil, fmt.Errorf("vector has %d slots, matrix %d: %w", ctVec.Slots(), ctMat.Slots(), ErrShapeMismatch)
	}
	out, outEnc, err := eval.MulMatVec(encoding, d, ctMat.Ciphertext, ctVec.Ciphertext)
	if err != nil {
		return nil, err
	}
	return &Array{
		Ciphertext: out,
		Info: ArrayInfo{
			Rows:     ctMat.Info.Rows,
			Cols:     0,
			NumRows:  d,
			NumCols:  d,
			Encoding: outEnc,
		},
	}, nil
}

// EvalMatMulSquare multiplies two encrypted square matrix arrays. Both must be
// packed row-major with the same tile width.
func (eval *Evaluator) EvalMatMulSquare(ctA, ctB *Array) (*Array, error) {
	if ctA.Info.Encoding != RowMajor || ctB.Info.Encoding != RowMajor {
		return nil, fmt.Errorf("square product needs row-major operands: %w", ErrUnsupportedEncoding)
	}
	if ctA.Info.NumCols != ctB.Info.NumCols {
		return nil, fmt.Errorf("tile widths %d and %d: %w", ctA.Info.NumCols, ctB.Info.NumCols, ErrShapeMismatch)
	}
	out, err := eval.MulSquare(ctA.Ciphertext, ctB.Ciphertext, ctA.Info.NumCols)
	if err != nil {
		return nil, err
	}
	info := ctA.Info
	info.Cols = ctB.Info.Cols
	return &Array{Ciphertext: out, Info: info}, nil
}

// EvalTranspose transposes an encrypted square matrix array.
func (eval *Evaluator) EvalTranspose(ct *Array) (*Array, error) {
	if ct.Info.Encoding != RowMajor {
		return nil, fmt.Errorf("transpose needs a row-major operand: %w", ErrUnsupportedEncoding)
	}
	out, err := eval.LinTransTranspose(ct.Ciphertext, ct.Info.NumCols)
	if err != nil {
		return nil, err
	}
	return &Array{Ciphertext: out, Info: ct.Info.transposed()}, nil
}
