package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownWindow(t *testing.T) {
	_, err := New("gaussianish", 8)
	assert.Error(t, err)

	_, err = New("hann", 0)
	assert.Error(t, err)
}

func TestHann_IsPeriodic(t *testing.T) {
	w, err := New("Hann", 8)
	require.NoError(t, err)

	c := w.GetCoefficients()
	require.Len(t, c, 8)
	assert.InDelta(t, 0.0, c[0], 1e-12)
	assert.InDelta(t, 1.0, c[4], 1e-12)
	// periodic: c[k] == c[N-k]
	for k := 1; k < 8; k++ {
		assert.InDelta(t, c[k], c[8-k], 1e-12)
	}
	// sum of squares of an N-point periodic Hann is 3N/8
	assert.InDelta(t, 3.0, w.SumSquares(), 1e-12)
	assert.Equal(t, "hann", w.GetType())
}

func TestBoxcarAndBartlett(t *testing.T) {
	box, err := New("boxcar", 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, box.GetCoefficients())

	tri, err := New("bartlett", 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, tri.GetCoefficients(), 1e-12)
}

func TestApplyInPlace(t *testing.T) {
	w, err := New("hamming", 4)
	require.NoError(t, err)

	sig := []float64{1, 1, 1, 1}
	require.NoError(t, w.ApplyInPlace(sig))
	assert.InDeltaSlice(t, w.GetCoefficients(), sig, 1e-12)

	assert.Error(t, w.ApplyInPlace([]float64{1, 2}))

	out, err := w.Apply([]float64{2, 2, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2*0.08, out[0], 1e-12)
}

func TestAllNamesBuild(t *testing.T) {
	for _, name := range Names() {
		w, err := New(name, 16)
		require.NoError(t, err, name)
		for _, c := range w.GetCoefficients() {
			assert.GreaterOrEqual(t, c, 0.0, name)
			assert.LessOrEqual(t, c, 1.0+1e-12, name)
		}
	}
}
