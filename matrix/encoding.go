package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// This file is the cleartext boundary of the package: it lays matrices and
// vectors out as slot vectors ready for encoding, and reads results back.
// Dimensions are padded to powers of two and the padded tile is repeated until
// it fills every slot, which is what the engines' rotation arithmetic assumes.

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func checkFits(tile, slots int) error {
	if tile > slots || slots%tile != 0 {
		return fmt.Errorf("tile of %d slots does not divide %d: %w", tile, slots, ErrInvalidDimension)
	}
	return nil
}

func replicate(tile []float64, slots int) []float64 {
	out := make([]float64, slots)
	for s := range out {
		out[s] = tile[s%len(tile)]
	}
	return out
}

// PackMatrix lays a matrix out as a slot vector in the given order. RowMajor
// and ColMajor pad each dimension independently; DiagMajor packs the extended
// diagonals of the square padded matrix, with tile row k holding diagonal k:
// tile[k][i] = m[i][(i+k) mod d].
func PackMatrix(m mat.Matrix, slots int, encoding ArrayEncoding) ([]float64, ArrayInfo, error) {
	r, c := m.Dims()
	if r <= 0 || c <= 0 {
		return nil, ArrayInfo{}, fmt.Errorf("%d x %d matrix: %w", r, c, ErrInvalidDimension)
	}

	info := ArrayInfo{Rows: r, Cols: c, Encoding: encoding}
	var tile []float64
	switch encoding {
	case RowMajor:
		info.NumRows, info.NumCols = nextPow2(r), nextPow2(c)
		tile = make([]float64, info.TileSize())
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				tile[i*info.NumCols+j] = m.At(i, j)
			}
		}
	case ColMajor:
		info.NumRows, info.NumCols = nextPow2(c), nextPow2(r)
		tile = make([]float64, info.TileSize())
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				tile[j*info.NumCols+i] = m.At(i, j)
			}
		}
	case DiagMajor:
		d := nextPow2(max(r, c))
		info.NumRows, info.NumCols = d, d
		tile = make([]float64, d*d)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				k := ((j - i) + d) % d
				tile[k*d+i] = m.At(i, j)
			}
		}
	default:
		return nil, ArrayInfo{}, fmt.Errorf("encoding %v: %w", encoding, ErrUnsupportedEncoding)
	}
	if err := checkFits(len(tile), slots); err != nil {
		return nil, ArrayInfo{}, err
	}
	return replicate(tile, slots), info, nil
}

// PackMatrixSquare lays a matrix out for a matrix product: both dimensions
// are padded to the same power of two, so the tile is square.
func PackMatrixSquare(m mat.Matrix, slots int) ([]float64, ArrayInfo, error) {
	r, c := m.Dims()
	if r <= 0 || c <= 0 {
		return nil, ArrayInfo{}, fmt.Errorf("%d x %d matrix: %w", r, c, ErrInvalidDimension)
	}
	d := nextPow2(max(r, c))
	tile := make([]float64, d*d)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			tile[i*d+j] = m.At(i, j)
		}
	}
	if err := checkFits(len(tile), slots); err != nil {
		return nil, ArrayInfo{}, err
	}
	info := ArrayInfo{Rows: r, Cols: c, NumRows: d, NumCols: d, Encoding: RowMajor}
	return replicate(tile, slots), info, nil
}

// PackMatrixForMatVec lays a matrix out as the left operand of a
// matrix-vector product under the given encoding. The tile is always square.
func PackMatrixForMatVec(m mat.Matrix, slots int, encoding MatVecEncoding) ([]float64, ArrayInfo, error) {
	r, c := m.Dims()
	if r <= 0 || c <= 0 {
		return nil, ArrayInfo{}, fmt.Errorf("%d x %d matrix: %w", r, c, ErrInvalidDimension)
	}
	d := nextPow2(max(r, c))
	info := ArrayInfo{Rows: r, Cols: c, NumRows: d, NumCols: d}
	tile := make([]float64, d*d)
	switch encoding {
	case MatVecCRC:
		info.Encoding = RowMajor
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				tile[i*d+j] = m.At(i, j)
			}
		}
	case MatVecRCR:
		info.Encoding = ColMajor
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				tile[j*d+i] = m.At(i, j)
			}
		}
	case MatVecDiag:
		info.Encoding = DiagMajor
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				k := ((j - i) + d) % d
				tile[k*d+i] = m.At(i, j)
			}
		}
	default:
		return nil, ArrayInfo{}, fmt.Errorf("matvec encoding %v: %w", encoding, ErrUnsupportedEncoding)
	}
	if err := checkFits(len(tile), slots); err != nil {
		return nil, ArrayInfo{}, err
	}
	return replicate(tile, slots), info, nil
}

// PackVectorForMatVec lays a vector out as the right operand of a
// matrix-vector product over a square numCols tile: repeated once per tile
// row for MatVecCRC and MatVecDiag (a row-major layout), constant within
// each tile row for MatVecRCR, which places entry j at stride numCols and is
// recorded as column-major. The array info keeps which replication the tile
// carries so the product can reject a mismatched operand.
func PackVectorForMatVec(v []float64, slots int, encoding MatVecEncoding, numCols int) ([]float64, ArrayInfo, error) {
	d := numCols
	if d <= 0 || !isPowerOfTwo(d) || len(v) > d {
		return nil, ArrayInfo{}, fmt.Errorf("%d entries over width %d: %w", len(v), d, ErrInvalidDimension)
	}
	if err := checkFits(d*d, slots); err != nil {
		return nil, ArrayInfo{}, err
	}
	padded := make([]float64, d)
	copy(padded, v)

	tile := make([]float64, d*d)
	vecEnc := RowMajor
	switch encoding {
	case MatVecCRC, MatVecDiag:
		for s := range tile {
			tile[s] = padded[s%d]
		}
	case MatVecRCR:
		vecEnc = ColMajor
		for s := range tile {
			tile[s] = padded[s/d]
		}
	default:
		return nil, ArrayInfo{}, fmt.Errorf("matvec encoding %v: %w", encoding, ErrUnsupportedEncoding)
	}
	info := ArrayInfo{Rows: len(v), Cols: 0, NumRows: d, NumCols: d, Encoding: vecEnc}
	return replicate(tile, slots), info, nil
}

// PackVector lays a vector out as a single padded row repeated across the
// slots.
func PackVector(v []float64, slots int) ([]float64, ArrayInfo, error) {
	if len(v) == 0 {
		return nil, ArrayInfo{}, fmt.Errorf("empty vector: %w", ErrInvalidDimension)
	}
	pad := nextPow2(len(v))
	if err := checkFits(pad, slots); err != nil {
		return nil, ArrayInfo{}, err
	}
	tile := make([]float64, pad)
	copy(tile, v)
	info := ArrayInfo{Rows: len(v), Cols: 0, NumRows: 1, NumCols: pad, Encoding: RowMajor}
	return replicate(tile, slots), info, nil
}

// Unpack reads a matrix back from decoded slot values, dropping the padding.
func Unpack(values []float64, info ArrayInfo) (*mat.Dense, error) {
	if len(values) < info.TileSize() {
		return nil, fmt.Errorf("%d values for a tile of %d: %w", len(values), info.TileSize(), ErrShapeMismatch)
	}
	out := mat.NewDense(info.Rows, info.Cols, nil)
	for i := 0; i < info.Rows; i++ {
		for j := 0; j < info.Cols; j++ {
			var v float64
			switch info.Encoding {
			case RowMajor:
				v = values[i*info.NumCols+j]
			case ColMajor:
				v = values[j*info.NumCols+i]
			case DiagMajor:
				d := info.NumCols
				v = values[(((j-i)+d)%d)*d+i]
			default:
				return nil, fmt.Errorf("encoding %v: %w", info.Encoding, ErrUnsupportedEncoding)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// UnpackVector reads a vector back from decoded slot values. RowMajor vectors
// sit at stride one, ColMajor vectors at the packing stride.
func UnpackVector(values []float64, info ArrayInfo) ([]float64, error) {
	stride := 1
	switch info.Encoding {
	case RowMajor:
	case ColMajor:
		stride = info.NumCols
	default:
		return nil, fmt.Errorf("encoding %v: %w", info.Encoding, ErrUnsupportedEncoding)
	}
	if len(values) < info.Rows*stride {
		return nil, fmt.Errorf("%d values for %d entries at stride %d: %w", len(values), info.Rows, stride, ErrShapeMismatch)
	}
	out := make([]float64, info.Rows)
	for i := range out {
		out[i] = values[i*stride]
	}
	return out, nil
}
