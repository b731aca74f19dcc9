// Package windowing provides the taper functions applied to each FFT block.
//
// Windows are generated in periodic ("DFT-even") form, which is what spectral
// estimation wants: an N-point periodic window is the first N points of the
// (N+1)-point symmetric one.
package windowing

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Window is an immutable set of taper coefficients of a fixed size.
// A Window may be shared between goroutines.
type Window struct {
	name         string
	coefficients []float64
}

type generator func(size int) []float64

var generators = map[string]generator{
	"hann":           hannCoefficients,
	"hanning":        hannCoefficients,
	"hamming":        hammingCoefficients,
	"blackman":       blackmanCoefficients,
	"blackmanharris": blackmanHarrisCoefficients,
	"bartlett":       bartlettCoefficients,
	"triang":         bartlettCoefficients,
	"tukey":          func(size int) []float64 { return tukeyCoefficients(size, 0.5) },
	"welch":          welchCoefficients,
	"boxcar":         boxcarCoefficients,
	"rectangular":    boxcarCoefficients,
}

// Names lists the accepted window names in sorted order.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the named window with size coefficients.
func New(name string, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	key := strings.ToLower(strings.TrimSpace(name))
	gen, ok := generators[key]
	if !ok {
		return nil, fmt.Errorf("unknown window %q (known: %s)", name, strings.Join(Names(), ", "))
	}

	return &Window{name: key, coefficients: gen(size)}, nil
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) ([]float64, error) {
	windowed := make([]float64, len(signal))
	copy(windowed, signal)
	if err := w.ApplyInPlace(windowed); err != nil {
		return nil, err
	}
	return windowed, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}

	return nil
}

// SumSquares returns sum(w[i]^2), the power normalisation used for PSD
// density scaling.
func (w *Window) SumSquares() float64 {
	s := 0.0
	for _, c := range w.coefficients {
		s += c * c
	}
	return s
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	return slices.Clone(w.coefficients)
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return len(w.coefficients)
}

// GetType returns the window type
func (w *Window) GetType() string {
	return w.name
}

// cosineSum evaluates sum_k (-1)^k a_k cos(2*pi*k*n/N) for n in [0, size).
func cosineSum(size int, a ...float64) []float64 {
	c := make([]float64, size)
	n := float64(size)
	for i := range size {
		v := 0.0
		sign := 1.0
		for k, ak := range a {
			v += sign * ak * math.Cos(2*math.Pi*float64(k)*float64(i)/n)
			sign = -sign
		}
		c[i] = v
	}
	return c
}

func hannCoefficients(size int) []float64 {
	return cosineSum(size, 0.5, 0.5)
}

func hammingCoefficients(size int) []float64 {
	return cosineSum(size, 0.54, 0.46)
}

func blackmanCoefficients(size int) []float64 {
	c := cosineSum(size, 0.42, 0.5, 0.08)
	// cancellation at n=0 leaves tiny negatives
	c[0] = math.Max(c[0], 0)
	return c
}

func blackmanHarrisCoefficients(size int) []float64 {
	return cosineSum(size, 0.35875, 0.48829, 0.14128, 0.01168)
}

func bartlettCoefficients(size int) []float64 {
	c := make([]float64, size)
	half := float64(size) / 2
	for i := range size {
		c[i] = 1 - math.Abs(float64(i)-half)/half
	}
	return c
}

func tukeyCoefficients(size int, alpha float64) []float64 {
	c := make([]float64, size)
	n := float64(size)
	edge := alpha * n / 2
	for i := range size {
		x := float64(i)
		switch {
		case edge > 0 && x < edge:
			c[i] = 0.5 * (1 - math.Cos(math.Pi*x/edge))
		case edge > 0 && x > n-edge:
			c[i] = 0.5 * (1 - math.Cos(math.Pi*(n-x)/edge))
		default:
			c[i] = 1
		}
	}
	return c
}

func welchCoefficients(size int) []float64 {
	c := make([]float64, size)
	half := float64(size) / 2
	for i := range size {
		arg := (float64(i) - half) / half
		c[i] = 1 - arg*arg
	}
	return c
}

func boxcarCoefficients(size int) []float64 {
	c := make([]float64, size)
	for i := range c {
		c[i] = 1
	}
	return c
}
