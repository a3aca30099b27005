package matrix_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hemat/hemat/matrix"
)

// plainTransform applies the cleartext counterpart of a structural
// permutation to a row-major d x d tile.
func plainTransform(kind matrix.TransformKind, tile []float64, d, k int) []float64 {
	if k == 0 {
		k = 1
	}
	k %= d
	out := make([]float64, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			var v float64
			switch kind {
			case matrix.Sigma:
				v = tile[i*d+(i+j)%d]
			case matrix.Tau:
				v = tile[((i+j)%d)*d+j]
			case matrix.Phi:
				v = tile[i*d+(j+k)%d]
			case matrix.Psi:
				v = tile[((i+k)%d)*d+j]
			case matrix.Transpose:
				v = tile[j*d+i]
			}
			out[i*d+j] = v
		}
	}
	return out
}

func testTransforms(tc *testContext, t *testing.T) {

	for _, d := range []int{2, 4, 8} {

		m := randomMatrix(d, d, uint64(100+d))
		packed, _, err := matrix.PackMatrixSquare(m, tc.slots())
		require.NoError(t, err)
		ct := encryptSlots(tc, packed, t)

		tile := packed[:d*d]

		for _, tcase := range []struct {
			kind matrix.TransformKind
			rep  int
		}{
			{matrix.Sigma, 0},
			{matrix.Tau, 0},
			{matrix.Phi, 1},
			{matrix.Phi, d - 1},
			{matrix.Psi, 1},
			{matrix.Psi, d - 1},
			{matrix.Transpose, 0},
		} {
			kind, rep := tcase.kind, tcase.rep

			t.Run(GetTestName(tc.params, fmt.Sprintf("Transform/%s/d=%d/rep=%d", kind, d, rep)), func(t *testing.T) {

				amounts, err := matrix.Rotations(kind, d, rep)
				require.NoError(t, err)
				require.NoError(t, tc.keys.Ensure(tc.sk, amounts))

				out, err := tc.evaluator.Apply(kind, ct, d, rep)
				require.NoError(t, err)

				requireSlotsClose(tc, tiled(plainTransform(kind, tile, d, rep), tc.slots()), out, t)
			})
		}

		t.Run(GetTestName(tc.params, fmt.Sprintf("Transform/TransposeTwice/d=%d", d)), func(t *testing.T) {

			amounts, err := matrix.Rotations(matrix.Transpose, d, 0)
			require.NoError(t, err)
			require.NoError(t, tc.keys.Ensure(tc.sk, amounts))

			once, err := tc.evaluator.LinTransTranspose(ct, d)
			require.NoError(t, err)
			twice, err := tc.evaluator.LinTransTranspose(once, d)
			require.NoError(t, err)

			requireSlotsClose(tc, packed, twice, t)
		})
	}

	t.Run(GetTestName(tc.params, "Transform/WithKeyGen"), func(t *testing.T) {

		const d = 4
		m := randomMatrix(d, d, 7)
		packed, _, err := matrix.PackMatrixSquare(m, tc.slots())
		require.NoError(t, err)
		ct := encryptSlots(tc, packed, t)

		out, err := tc.evaluator.ApplyWithKeyGen(tc.sk, matrix.Sigma, ct, d, 0)
		require.NoError(t, err)

		requireSlotsClose(tc, tiled(plainTransform(matrix.Sigma, packed[:d*d], d, 0), tc.slots()), out, t)
	})

	t.Run(GetTestName(tc.params, "Transform/MaskedCostsOneLevel"), func(t *testing.T) {

		const d = 2
		m := randomMatrix(d, d, 11)
		packed, _, err := matrix.PackMatrixSquare(m, tc.slots())
		require.NoError(t, err)
		ct := encryptSlots(tc, packed, t)

		for _, kind := range []matrix.TransformKind{matrix.Sigma, matrix.Psi} {
			amounts, err := matrix.Rotations(kind, d, 1)
			require.NoError(t, err)
			require.NoError(t, tc.keys.Ensure(tc.sk, amounts))
		}

		out, err := tc.evaluator.LinTransSigma(ct, d)
		require.NoError(t, err)
		require.Equal(t, ct.Level()-1, out.Level())

		psi, err := tc.evaluator.LinTransPsi(ct, d, 1)
		require.NoError(t, err)
		require.Equal(t, ct.Level(), psi.Level())
	})
}
