// Package matrix implements encrypted linear algebra on slot-packed ciphertexts:
// structural permutations (Sigma, Tau, Phi, Psi, Transpose), matrix-vector and
// square matrix-matrix products in the diagonal encoding of Jiang-Kim-Lauter-Song,
// and logarithmic-depth row/column aggregation. All operations are closed-form
// sequences of rotations and 0/1 slot masks derived from the packing dimensions;
// nothing ever branches on encrypted data.
//
// A matrix is packed as a NumRows x NumCols tile (dimensions padded to powers of
// two) repeated until every slot of the ciphertext is filled. The tiling makes
// every rotation cyclic with respect to the tile, which is what allows Tau and
// Psi to be realized as single rotations and column reductions to be mask-free.
package matrix

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
)

// TransformKind identifies one of the structural permutations the
// linear-transform engine can apply to a packed matrix.
type TransformKind int

const (
	// Sigma maps A[i][j] to A[i][(i+j) mod d]: row i is cyclically shifted
	// left by i, aligning the matrix diagonals into columns.
	Sigma TransformKind = iota
	// Tau maps A[i][j] to A[(i+j) mod d][j]: column j is cyclically shifted
	// up by j.
	Tau
	// Phi maps A[i][j] to A[i][(j+k) mod d]: every row shifted left by the
	// repeat factor k.
	Phi
	// Psi maps A[i][j] to A[(i+k) mod d][j]: every column shifted up by the
	// repeat factor k.
	Psi
	// Transpose maps A[i][j] to A[j][i].
	Transpose
)

func (k TransformKind) String() string {
	switch k {
	case Sigma:
		return "Sigma"
	case Tau:
		return "Tau"
	case Phi:
		return "Phi"
	case Psi:
		return "Psi"
	case Transpose:
		return "Transpose"
	default:
		return fmt.Sprintf("TransformKind(%d)", int(k))
	}
}

// MatVecEncoding selects which operand of a matrix-vector product is packed in
// which order, and therefore which permutation sequence the product uses.
type MatVecEncoding int

const (
	// MatVecCRC multiplies a row-major matrix with a row-replicated vector;
	// the product comes out column-packed (one value per row block).
	MatVecCRC MatVecEncoding = iota
	// MatVecRCR multiplies a column-major matrix with a block-replicated
	// vector; the product comes out row-packed.
	MatVecRCR
	// MatVecDiag multiplies a diagonal-packed matrix with a row-replicated
	// vector; the matrix needs no pre-permutation.
	MatVecDiag
)

func (e MatVecEncoding) String() string {
	switch e {
	case MatVecCRC:
		return "CRC"
	case MatVecRCR:
		return "RCR"
	case MatVecDiag:
		return "Diag"
	default:
		return fmt.Sprintf("MatVecEncoding(%d)", int(e))
	}
}

// ArrayEncoding records the slot order of a packed array.
type ArrayEncoding int

const (
	RowMajor ArrayEncoding = iota
	ColMajor
	DiagMajor
)

func (e ArrayEncoding) String() string {
	switch e {
	case RowMajor:
		return "RowMajor"
	case ColMajor:
		return "ColMajor"
	case DiagMajor:
		return "DiagMajor"
	default:
		return fmt.Sprintf("ArrayEncoding(%d)", int(e))
	}
}

// ArrayInfo is the metadata label travelling with a packed ciphertext. It
// records the logical shape of the cleartext array together with the padded
// packing grid, so that later operations can validate compatibility without
// re-deriving it.
//
// NumCols is the packing stride: the number of slots separating two
// consecutive rows of the tile. For a ColMajor matrix the tile rows hold
// matrix columns, so NumCols equals the padded number of matrix rows.
type ArrayInfo struct {
	// Rows, Cols are the logical (unpadded) dimensions. A vector has Cols == 0.
	Rows, Cols int
	// NumRows, NumCols are the padded tile dimensions, both powers of two.
	NumRows, NumCols int
	// Encoding is the slot order of the tile.
	Encoding ArrayEncoding
}

// TileSize returns the number of slots occupied by one copy of the packed tile.
func (info ArrayInfo) TileSize() int {
	return info.NumRows * info.NumCols
}

// transposed returns the metadata of a physically transposed array: logical
// and padded dimensions swapped, slot order unchanged.
func (info ArrayInfo) transposed() ArrayInfo {
	return ArrayInfo{
		Rows:     info.Cols,
		Cols:     info.Rows,
		NumRows:  info.NumCols,
		NumCols:  info.NumRows,
		Encoding: info.Encoding,
	}
}

// Array is an encrypted packed array: a ciphertext handle together with its
// shape label. The ciphertext is owned by the caller; operations never mutate
// it, they derive new instances.
type Array struct {
	Ciphertext *rlwe.Ciphertext
	Info       ArrayInfo
}

// NewArray wraps a ciphertext with its packing metadata.
func NewArray(ct *rlwe.Ciphertext, info ArrayInfo) *Array {
	return &Array{Ciphertext: ct, Info: info}
}

// Slots returns the slot count of the underlying ciphertext.
func (a *Array) Slots() int {
	return a.Ciphertext.Slots()
}

// checkSquare verifies that numCols is positive and that the square tile
// numCols*numCols divides the ciphertext slot count.
func checkSquare(ct *rlwe.Ciphertext, numCols int) error {
	if numCols <= 0 {
		return fmt.Errorf("numCols=%d: %w", numCols, ErrInvalidDimension)
	}
	slots := ct.Slots()
	if tile := numCols * numCols; tile > slots || slots%tile != 0 {
		return fmt.Errorf("tile %d x %d does not divide slot count %d: %w", numCols, numCols, slots, ErrInvalidDimension)
	}
	return nil
}

// checkTile verifies that a numRows x numCols tile divides the slot count.
func checkTile(ct *rlwe.Ciphertext, numCols, numRows int) error {
	if numCols <= 0 || numRows <= 0 {
		return fmt.Errorf("numCols=%d, numRows=%d: %w", numCols, numRows, ErrInvalidDimension)
	}
	slots := ct.Slots()
	if tile := numRows * numCols; tile > slots || slots%tile != 0 {
		return fmt.Errorf("tile %d x %d does not divide slot count %d: %w", numRows, numCols, slots, ErrInvalidDimension)
	}
	return nil
}
