package common

import (
	"github.com/consensys/gnark/frontend"
)

// TimeBits is the width times are decomposed to before comparing.
const TimeBits = 64

// IsGreater64 compares A and B as 64-bit integers, most significant bit first.
// Returns 1 if A > B, 0 if A <= B. Both operands are constrained to 64 bits.
func IsGreater64(api frontend.API, A, B frontend.Variable) frontend.Variable {
	bitsA := api.ToBinary(A, TimeBits)
	bitsB := api.ToBinary(B, TimeBits)

	isGreater := frontend.Variable(0)
	isDifferent := frontend.Variable(0)

	for i := TimeBits - 1; i >= 0; i-- {
		diffExists := api.Xor(bitsA[i], bitsB[i])

		// A[i] = 1 and B[i] = 0
		isGreater_i := api.Mul(bitsA[i], api.Sub(1, bitsB[i]))

		// Update isGreater only if we haven't found a difference yet
		isGreater = api.Select(isDifferent, isGreater, isGreater_i)

		isDifferent = api.Or(isDifferent, diffExists)
	}

	return isGreater
}

// IsSmaller64 returns 1 if A < B, 0 if A >= B
func IsSmaller64(api frontend.API, A, B frontend.Variable) frontend.Variable {
	return IsGreater64(api, B, A)
}

// IsStrictlyBetween returns 1 if lo < x < hi over the full field range
func IsStrictlyBetween(api frontend.API, lo, x, hi frontend.Variable) frontend.Variable {
	above := api.IsZero(api.Sub(api.Cmp(x, lo), 1))
	below := api.IsZero(api.Sub(api.Cmp(hi, x), 1))
	return api.And(above, below)
}

// Not negates a boolean variable
func Not(api frontend.API, b frontend.Variable) frontend.Variable {
	return api.Sub(1, b)
}
