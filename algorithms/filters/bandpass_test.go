package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rms(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func tone(n int, fs, f0 float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * f0 * float64(i) / fs)
	}
	return x
}

func TestBandpass_Response(t *testing.T) {
	bf, err := NewBandpassFilter(1000, 100, 200)
	require.NoError(t, err)

	assert.Greater(t, bf.Magnitude(150), 0.85)
	assert.Less(t, bf.Magnitude(10), 1e-3)
	assert.Less(t, bf.Magnitude(450), 1e-2)

	// -3 dB at each corner, less the small contribution of the other half
	assert.InDelta(t, 1/math.Sqrt2, bf.Magnitude(100), 0.05)
	assert.InDelta(t, 1/math.Sqrt2, bf.Magnitude(200), 0.05)
}

func TestBandpass_ProcessBuffer(t *testing.T) {
	fs := 1000.0
	bf, err := NewBandpassFilter(fs, 100, 200)
	require.NoError(t, err)

	// skip the start-up transient
	pass := bf.ProcessBuffer(tone(4000, fs, 150))[1000:]
	assert.InDelta(t, bf.Magnitude(150)/math.Sqrt2, rms(pass), 0.02)

	bf.Reset()
	stop := bf.ProcessBuffer(tone(4000, fs, 10))[1000:]
	assert.Less(t, rms(stop), 1e-3)
}

func TestBandpass_InvalidCorners(t *testing.T) {
	cases := []struct {
		name     string
		fs       float64
		min, max float64
	}{
		{"zero sample rate", 0, 1, 2},
		{"zero lower corner", 1000, 0, 100},
		{"upper corner at nyquist", 1000, 10, 500},
		{"inverted", 1000, 200, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBandpassFilter(tc.fs, tc.min, tc.max)
			assert.Error(t, err)
		})
	}
}

func TestBiquad_UnityPassband(t *testing.T) {
	lp := NewLowpass(1000, 100, 1/math.Sqrt2)
	assert.InDelta(t, 1.0, real(lp.Response(0)), 1e-12)

	hp := NewHighpass(1000, 100, 1/math.Sqrt2)
	assert.InDelta(t, 1.0, math.Abs(real(hp.Response(math.Pi))), 1e-12)
}
