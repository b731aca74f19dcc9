package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskedMean(t *testing.T) {
	data := []float64{1, 100, 3}
	assert.InDelta(t, 2.0, MaskedMean(data, []bool{true, false, true}), 1e-12)
	assert.InDelta(t, 104.0/3, MaskedMean(data, nil), 1e-12)
	assert.Zero(t, MaskedMean(data, []bool{false, false, false}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.Zero(t, Median(nil))

	in := []float64{3, 1, 2}
	Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMedianBias(t *testing.T) {
	assert.Equal(t, 1.0, MedianBias(1))
	assert.Equal(t, 1.0, MedianBias(2))
	// 1 + 1/3 - 1/2
	assert.InDelta(t, 1+1.0/3-0.5, MedianBias(3), 1e-12)
	// bias tends to ln(2)
	assert.InDelta(t, math.Ln2, MedianBias(100001), 1e-4)
}

func TestDemean(t *testing.T) {
	data := []float64{2, 9, 4}
	valid := []bool{true, false, true}
	mean := Demean(data, valid)

	assert.InDelta(t, 3.0, mean, 1e-12)
	assert.Equal(t, []float64{-1, 0, 1}, data)
}

func TestArgMaxAndSumSquares(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float64{1, 3, 7, 2}))
	assert.Equal(t, -1, ArgMax(nil))
	assert.Equal(t, 14.0, SumSquares([]float64{1, 2, 3}))
}

func TestIsClose(t *testing.T) {
	assert.True(t, IsClose(1.0, 1.0+1e-12, 1e-9))
	assert.False(t, IsClose(1.0, 1.1, 1e-9))
	assert.True(t, IsClose(math.Inf(-1), math.Inf(-1), 1e-9))
	assert.False(t, IsClose(math.Inf(-1), 0, 1e-9))
}
