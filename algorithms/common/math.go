package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MaskedMean averages only the positions where valid is true.
// A nil mask means every sample is valid.
func MaskedMean(data []float64, valid []bool) float64 {
	if valid == nil {
		return Mean(data)
	}

	weights := make([]float64, len(data))
	total := 0.0
	for i, ok := range valid {
		if ok {
			weights[i] = 1
			total++
		}
	}
	if total == 0 {
		return 0.0
	}
	return stat.Mean(data, weights)
}

// Median returns the middle value, averaging the two middle values for even
// lengths. The input is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MedianBias returns the expected ratio median/mean of n chi-square(2)
// periodogram values. Dividing a median-averaged PSD by it makes the estimate
// unbiased for Gaussian noise.
func MedianBias(n int) float64 {
	bias := 1.0
	for k := 1; k <= (n-1)/2; k++ {
		ii := 2 * float64(k)
		bias += 1/(ii+1) - 1/ii
	}
	return bias
}

// Demean subtracts the masked mean from the valid samples in place and sets
// invalid samples to zero. It returns the mean that was removed.
func Demean(data []float64, valid []bool) float64 {
	mean := MaskedMean(data, valid)
	for i := range data {
		if valid != nil && !valid[i] {
			data[i] = 0
			continue
		}
		data[i] -= mean
	}
	return mean
}

// SumSquares returns the sum of squared values
func SumSquares(data []float64) float64 {
	return floats.Dot(data, data)
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// IsClose reports whether a and b agree within an absolute or relative tolerance.
func IsClose(a, b, tol float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return scalar.EqualWithinAbsOrRel(a, b, tol, tol)
}
