package spectral

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/interp"
)

// Hydrophone sensitivity table (Hz -> dB) shared by every broadband node.
var (
	calibrationFrequencies = []float64{0, 13500, 27100, 40600, 54100}
	calibrationSensitivity = []float64{169, 169.4, 168.1, 169.7, 171.5}
)

// ReferenceLevelDB is subtracted after calibration so that levels are
// reported in dB re 1 uPa^2/Hz.
const ReferenceLevelDB = 128.9

// Calibration maps frequency to a sensitivity offset in dB through a
// not-a-knot cubic spline. It is immutable once built.
type Calibration struct {
	spline interp.NotAKnotCubic
	minF   float64
	maxF   float64

	// first and last spline pieces, sampled for extrapolation
	head, tail endPiece
}

// endPiece holds four points of one cubic spline piece, enough to evaluate
// that cubic anywhere.
type endPiece struct {
	x, y [4]float64
}

func sampleEndPiece(spline *interp.NotAKnotCubic, a, b float64) endPiece {
	var p endPiece
	for i := range 3 {
		p.x[i] = a + (b-a)*float64(i)/3
		p.y[i] = spline.Predict(p.x[i])
	}
	p.x[3] = b
	p.y[3] = spline.Predict(b)
	return p
}

// at evaluates the cubic through the sampled points in Lagrange form.
func (p endPiece) at(f float64) float64 {
	sum := 0.0
	for i := range p.x {
		term := p.y[i]
		for j := range p.x {
			if j != i {
				term *= (f - p.x[j]) / (p.x[i] - p.x[j])
			}
		}
		sum += term
	}
	return sum
}

// NewCalibration fits a spline through the given table. freqs must be
// strictly increasing.
func NewCalibration(freqs, sensitivity []float64) (*Calibration, error) {
	if len(freqs) != len(sensitivity) {
		return nil, fmt.Errorf("calibration table mismatch: %d frequencies, %d values", len(freqs), len(sensitivity))
	}
	if len(freqs) < 4 {
		return nil, fmt.Errorf("calibration table needs at least 4 points, got %d", len(freqs))
	}

	c := &Calibration{minF: freqs[0], maxF: freqs[len(freqs)-1]}
	if err := c.spline.Fit(freqs, sensitivity); err != nil {
		return nil, fmt.Errorf("failed to fit calibration spline: %w", err)
	}
	n := len(freqs)
	c.head = sampleEndPiece(&c.spline, freqs[0], freqs[1])
	c.tail = sampleEndPiece(&c.spline, freqs[n-2], freqs[n-1])
	return c, nil
}

// DefaultCalibration returns the process-wide calibration curve built from
// the broadband hydrophone table. It is constructed on first use.
var DefaultCalibration = sync.OnceValue(func() *Calibration {
	c, err := NewCalibration(calibrationFrequencies, calibrationSensitivity)
	if err != nil {
		panic(err)
	}
	return c
})

// Offset returns the sensitivity in dB at frequency f. Outside the table the
// first or last cubic piece is continued.
func (c *Calibration) Offset(f float64) float64 {
	switch {
	case f < c.minF:
		return c.head.at(f)
	case f > c.maxF:
		return c.tail.at(f)
	default:
		return c.spline.Predict(f)
	}
}

// Offsets evaluates Offset for every frequency.
func (c *Calibration) Offsets(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = c.Offset(f)
	}
	return out
}

// Scale selects the reported unit of calibrated power.
type Scale string

const (
	ScaleLog    Scale = "log"
	ScaleLinear Scale = "linear"
)

// ParseScale accepts "log", "lin" or "linear".
func ParseScale(s string) (Scale, error) {
	switch s {
	case "", "log":
		return ScaleLog, nil
	case "lin", "linear":
		return ScaleLinear, nil
	default:
		return "", fmt.Errorf("scale has to be either \"lin\" or \"log\", got %q", s)
	}
}

// Apply converts raw PSD values in place:
//
//	log:    10*log10(P) + offset - 128.9
//	linear: P * 10^(offset/10) * 10^(-12.89)
func (c *Calibration) Apply(power, offsets []float64, scale Scale) {
	linearRef := math.Pow(10, -ReferenceLevelDB/10)
	for k, p := range power {
		switch scale {
		case ScaleLinear:
			power[k] = p * math.Pow(10, offsets[k]/10) * linearRef
		default:
			power[k] = 10*math.Log10(p) + offsets[k] - ReferenceLevelDB
		}
	}
}
