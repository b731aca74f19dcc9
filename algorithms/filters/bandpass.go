package filters

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Biquad is a second-order IIR section.
//
// Coefficients follow Robert Bristow-Johnson's "Cookbook formulae for audio
// EQ biquad filter coefficients", normalised so that a0 == 1.
// Reference: https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	// Direct Form II transposed state
	z1, z2 float64
}

func newBiquad(b0, b1, b2, a0, a1, a2 float64) *Biquad {
	return &Biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// NewLowpass returns a cookbook lowpass section with cutoff f0 and quality q.
func NewLowpass(sampleRate, f0, q float64) *Biquad {
	w0 := 2.0 * math.Pi * f0 / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)

	return newBiquad(
		(1-cosW0)/2, 1-cosW0, (1-cosW0)/2,
		1+alpha, -2*cosW0, 1-alpha,
	)
}

// NewHighpass returns a cookbook highpass section with cutoff f0 and quality q.
func NewHighpass(sampleRate, f0, q float64) *Biquad {
	w0 := 2.0 * math.Pi * f0 / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)

	return newBiquad(
		(1+cosW0)/2, -(1 + cosW0), (1+cosW0)/2,
		1+alpha, -2*cosW0, 1-alpha,
	)
}

// Process filters a single sample.
//
// The difference equation is:
// y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
func (bq *Biquad) Process(x float64) float64 {
	y := bq.b0*x + bq.z1
	bq.z1 = bq.b1*x - bq.a1*y + bq.z2
	bq.z2 = bq.b2*x - bq.a2*y
	return y
}

// Reset clears the delay line.
func (bq *Biquad) Reset() {
	bq.z1, bq.z2 = 0, 0
}

// Response returns the complex frequency response at normalised angular
// frequency w (radians per sample).
//
// H(e^jw) = (b0 + b1*e^-jw + b2*e^-j2w) / (1 + a1*e^-jw + a2*e^-j2w)
func (bq *Biquad) Response(w float64) complex128 {
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(bq.b0, 0) + complex(bq.b1, 0)*z1 + complex(bq.b2, 0)*z2
	den := 1 + complex(bq.a1, 0)*z1 + complex(bq.a2, 0)*z2
	return num / den
}

// Q values of the two second-order sections of a 4th-order Butterworth
// prototype.
var butterworth4Q = []float64{0.54119610, 1.30656296}

// BandpassFilter is a causal Butterworth bandpass built from a 4th-order
// highpass at the lower corner cascaded with a 4th-order lowpass at the
// upper corner.
type BandpassFilter struct {
	sampleRate float64
	freqMin    float64
	freqMax    float64
	sections   []*Biquad
}

// NewBandpassFilter validates the corners and designs the cascade.
// Both corners must lie strictly between 0 and Nyquist.
func NewBandpassFilter(sampleRate, freqMin, freqMax float64) (*BandpassFilter, error) {
	nyquist := sampleRate / 2
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	if freqMin <= 0 || freqMax >= nyquist {
		return nil, fmt.Errorf("bandpass corners must be between 0 and Nyquist frequency (%g Hz), got %g-%g Hz",
			nyquist, freqMin, freqMax)
	}
	if freqMin >= freqMax {
		return nil, fmt.Errorf("lower corner (%g Hz) must be below upper corner (%g Hz)", freqMin, freqMax)
	}

	bf := &BandpassFilter{sampleRate: sampleRate, freqMin: freqMin, freqMax: freqMax}
	for _, q := range butterworth4Q {
		bf.sections = append(bf.sections, NewHighpass(sampleRate, freqMin, q))
	}
	for _, q := range butterworth4Q {
		bf.sections = append(bf.sections, NewLowpass(sampleRate, freqMax, q))
	}
	return bf, nil
}

// Process filters a single sample through every section.
func (bf *BandpassFilter) Process(x float64) float64 {
	for _, s := range bf.sections {
		x = s.Process(x)
	}
	return x
}

// ProcessBuffer returns a filtered copy of input.
func (bf *BandpassFilter) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, x := range input {
		output[i] = bf.Process(x)
	}
	return output
}

// Reset clears the state of every section.
// Call this when processing discontinuous segments.
func (bf *BandpassFilter) Reset() {
	for _, s := range bf.sections {
		s.Reset()
	}
}

// Magnitude returns the linear gain of the cascade at frequency f in Hz.
func (bf *BandpassFilter) Magnitude(f float64) float64 {
	w := 2.0 * math.Pi * f / bf.sampleRate
	h := complex(1, 0)
	for _, s := range bf.sections {
		h *= s.Response(w)
	}
	return cmplx.Abs(h)
}

// GetParameters returns the sample rate and corner frequencies.
func (bf *BandpassFilter) GetParameters() (sampleRate, freqMin, freqMax float64) {
	return bf.sampleRate, bf.freqMin, bf.freqMax
}
