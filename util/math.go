// Package util provides small integer helpers shared by the kernels and the
// trace writer.
package util

import "math/bits"

// CeilDiv returns a / b rounded up. b must not be zero.
func CeilDiv(a, b uint64) uint64 {
	if b == 0 {
		panic("division by zero")
	}

	return (a + b - 1) / b
}

// Log2 returns floor(log2(x)). x must be positive.
func Log2(x uint64) int {
	if x == 0 {
		panic("log2 of zero")
	}

	return bits.Len64(x) - 1
}

// NextPow2 returns the smallest power of two that is not less than x. It
// returns 1 for 0.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}

	return 1 << bits.Len64(x-1)
}

// BitReverse reverses the lowest n bits of x. Higher bits are dropped.
func BitReverse(x uint64, n int) uint64 {
	if n == 0 {
		return 0
	}

	return bits.Reverse64(x) >> (64 - n)
}
