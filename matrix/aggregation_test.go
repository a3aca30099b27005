package matrix_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hemat/hemat/matrix"
)

func encryptMatrixRowMajor(tc *testContext, m mat.Matrix, t *testing.T) *matrix.Array {
	packed, info, err := matrix.PackMatrix(m, tc.slots(), matrix.RowMajor)
	require.NoError(t, err)
	return matrix.NewArray(encryptSlots(tc, packed, t), info)
}

func encryptVector(tc *testContext, v []float64, t *testing.T) *matrix.Array {
	packed, info, err := matrix.PackVector(v, tc.slots())
	require.NoError(t, err)
	return matrix.NewArray(encryptSlots(tc, packed, t), info)
}

func ensureAggregationKeys(tc *testContext, numCols, numRows int, t *testing.T) {
	rots, err := matrix.RotationsForSumCumRows(numCols)
	require.NoError(t, err)
	require.NoError(t, tc.keys.Ensure(tc.sk, rots))

	rots, err = matrix.RotationsForSumCumCols(numCols, numRows)
	require.NoError(t, err)
	require.NoError(t, tc.keys.Ensure(tc.sk, rots))

	rots, err = matrix.RotationsForReduceRows(numCols)
	require.NoError(t, err)
	require.NoError(t, tc.keys.Ensure(tc.sk, rots))

	rots, err = matrix.RotationsForReduceCols(numCols, numRows)
	require.NoError(t, err)
	require.NoError(t, tc.keys.Ensure(tc.sk, rots))
}

func prefixRows(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
			out.Set(i, j, sum)
		}
	}
	return out
}

func prefixCols(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
			out.Set(i, j, sum)
		}
	}
	return out
}

func broadcastRowTotals(m mat.Matrix, scale float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, sum*scale)
		}
	}
	return out
}

func broadcastColTotals(m mat.Matrix, scale float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, sum*scale)
		}
	}
	return out
}

func testAggregations(tc *testContext, t *testing.T) {

	t.Run(GetTestName(tc.params, "Aggregation/SumCumRows/Vector"), func(t *testing.T) {

		ct := encryptVector(tc, []float64{1, 2, 3, 4}, t)
		ensureAggregationKeys(tc, ct.Info.NumCols, ct.Info.NumRows, t)

		out, err := tc.evaluator.EvalSumCumRows(ct)
		require.NoError(t, err)

		got, err := matrix.UnpackVector(decryptSlots(tc, out.Ciphertext, t), out.Info)
		require.NoError(t, err)
		for i, want := range []float64{1, 3, 6, 10} {
			require.InDelta(t, want, got[i], 1e-4, "entry %d", i)
		}
	})

	t.Run(GetTestName(tc.params, "Aggregation/ReduceRows/Vector"), func(t *testing.T) {

		ct := encryptVector(tc, []float64{1, 2, 3, 4}, t)
		ensureAggregationKeys(tc, ct.Info.NumCols, ct.Info.NumRows, t)

		out, err := tc.evaluator.EvalReduceCumRows(ct)
		require.NoError(t, err)

		got, err := matrix.UnpackVector(decryptSlots(tc, out.Ciphertext, t), out.Info)
		require.NoError(t, err)
		for i := range got {
			require.InDelta(t, 10.0, got[i], 1e-4, "entry %d", i)
		}
	})

	t.Run(GetTestName(tc.params, "Aggregation/MeanRows/Vector"), func(t *testing.T) {

		ct := encryptVector(tc, []float64{1, 2, 3, 4}, t)
		ensureAggregationKeys(tc, ct.Info.NumCols, ct.Info.NumRows, t)

		out, err := tc.evaluator.EvalMeanRows(ct)
		require.NoError(t, err)

		got, err := matrix.UnpackVector(decryptSlots(tc, out.Ciphertext, t), out.Info)
		require.NoError(t, err)
		for i := range got {
			require.InDelta(t, 2.5, got[i], 1e-4, "entry %d", i)
		}
	})

	t.Run(GetTestName(tc.params, "Aggregation/MeanCols/Vector"), func(t *testing.T) {

		// A vector spans a single row, so its column means are its own
		// entries.
		ct := encryptVector(tc, []float64{1, 2, 3, 4}, t)
		ensureAggregationKeys(tc, ct.Info.NumCols, ct.Info.NumRows, t)

		out, err := tc.evaluator.EvalMeanCols(ct)
		require.NoError(t, err)

		got, err := matrix.UnpackVector(decryptSlots(tc, out.Ciphertext, t), out.Info)
		require.NoError(t, err)
		for i, want := range []float64{1, 2, 3, 4} {
			require.InDelta(t, want, got[i], 1e-4, "entry %d", i)
		}
	})

	for _, dims := range [][2]int{{4, 4}, {3, 4}, {4, 8}} {

		r, c := dims[0], dims[1]
		m := randomMatrix(r, c, uint64(200+10*r+c))

		ct := encryptMatrixRowMajor(tc, m, t)
		ensureAggregationKeys(tc, ct.Info.NumCols, ct.Info.NumRows, t)

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/SumCumRows/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalSumCumRows(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, prefixRows(m), out, t)
		})

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/SumCumCols/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalSumCumCols(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, prefixCols(m), out, t)
		})

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/ReduceRows/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalReduceCumRows(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, broadcastRowTotals(m, 1), out, t)
		})

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/ReduceCols/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalReduceCumCols(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, broadcastColTotals(m, 1), out, t)
		})

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/MeanRows/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalMeanRows(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, broadcastRowTotals(m, 1/float64(c)), out, t)
		})

		t.Run(GetTestName(tc.params, fmt.Sprintf("Aggregation/MeanCols/%dx%d", r, c)), func(t *testing.T) {
			out, err := tc.evaluator.EvalMeanCols(ct)
			require.NoError(t, err)
			requireMatrixClose(tc, broadcastColTotals(m, 1/float64(r)), out, t)
		})
	}

	t.Run(GetTestName(tc.params, "Aggregation/NonRowMajor"), func(t *testing.T) {

		m := randomMatrix(4, 4, 231)
		packed, info, err := matrix.PackMatrix(m, tc.slots(), matrix.ColMajor)
		require.NoError(t, err)
		ct := matrix.NewArray(encryptSlots(tc, packed, t), info)

		_, err = tc.evaluator.EvalSumCumRows(ct)
		require.ErrorIs(t, err, matrix.ErrUnsupportedEncoding)
	})
}
