package bearing

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/lsetiawan/ooipy/algorithms/common"
)

// CrossCorrelate splits h1 and h2 into consecutive windows of window samples,
// computes the full linear cross-correlation of each window pair, normalises
// each by its maximum and sums them. The result has 2*window-1 lags; see
// Lags. Trailing samples that do not fill a window are ignored, as are window
// pairs whose correlation has no positive maximum.
func CrossCorrelate(h1, h2 []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	rows := min(len(h1), len(h2)) / window
	if rows == 0 {
		return nil, fmt.Errorf("need at least %d samples per trace, got %d and %d", window, len(h1), len(h2))
	}

	size := 2*window - 1
	nfft := nextPowerOfTwo(size)
	fft := fourier.NewFFT(nfft)

	stack := make([]float64, size)
	a := make([]float64, nfft)
	b := make([]float64, nfft)
	ca := make([]complex128, nfft/2+1)
	cb := make([]complex128, nfft/2+1)
	seq := make([]float64, nfft)

	for r := range rows {
		x := h1[r*window : (r+1)*window]
		y := h2[r*window : (r+1)*window]

		clear(a)
		clear(b)
		copy(a, x)
		// correlation is convolution with the reversed second signal
		for i := range y {
			b[i] = y[window-1-i]
		}

		fft.Coefficients(ca, a)
		fft.Coefficients(cb, b)
		for k := range ca {
			ca[k] *= cb[k]
		}
		fft.Sequence(seq, ca)

		row := seq[:size]
		floats.Scale(1/float64(nfft), row)

		peak := floats.Max(row)
		if peak <= 0 {
			continue
		}
		floats.AddScaled(stack, 1/peak, row)
	}

	return stack, nil
}

// Lags returns the lag in seconds of each CrossCorrelate output position for
// the given window and sample rate. A positive lag means h1 is delayed
// relative to h2.
func Lags(window int, sampleRate float64) []float64 {
	lags := make([]float64, 2*window-1)
	for k := range lags {
		lags[k] = float64(k-(window-1)) / sampleRate
	}
	return lags
}

// PeakLag returns the lag in seconds of the correlation maximum.
func PeakLag(xcorr []float64, window int, sampleRate float64) (float64, error) {
	if len(xcorr) != 2*window-1 {
		return 0, fmt.Errorf("correlation has %d lags, want %d", len(xcorr), 2*window-1)
	}
	k := common.ArgMax(xcorr)
	return float64(k-(window-1)) / sampleRate, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
