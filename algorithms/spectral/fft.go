package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct {
	// No state needed; go-dsp caches its twiddle factors internally
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputePadded zero-pads x to nfft samples before transforming.
// When nfft is smaller than len(x) the input is truncated, matching the
// usual nfft semantics of spectral estimators.
func (f *FFT) ComputePadded(x []float64, nfft int) []complex128 {
	if nfft == len(x) {
		return f.Compute(x)
	}

	padded := make([]float64, nfft)
	copy(padded, x)
	return f.Compute(padded)
}

// OneSidedPower returns |X[k]|^2 for k in [0, nfft/2].
func (f *FFT) OneSidedPower(x []float64, nfft int) []float64 {
	spectrum := f.ComputePadded(x, nfft)
	bins := nfft/2 + 1
	bins = min(bins, len(spectrum))

	power := make([]float64, bins)
	for k := range bins {
		mag := cmplx.Abs(spectrum[k])
		power[k] = mag * mag
	}
	return power
}
