/*
Package hemat provides encrypted linear algebra over slot-packed RLWE ciphertexts.
It implements matrix-vector and square matrix-matrix products, transposition and
row/column aggregation directly on packed ciphertexts, expressing every operation
as a fixed sequence of homomorphic rotations, slot masks and additions derived
from the matrix dimensions alone. The underlying scheme primitives are provided
by Lattigo; see the matrix package for the evaluation engines.
*/
package hemat
