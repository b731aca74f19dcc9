package spectral

import (
	"fmt"
	"strings"

	"github.com/lsetiawan/ooipy/algorithms/common"
	"github.com/lsetiawan/ooipy/algorithms/windowing"
)

// AverageMethod selects how Welch combines its segment periodograms.
type AverageMethod string

const (
	AverageMean   AverageMethod = "mean"
	AverageMedian AverageMethod = "median"
)

// ParseAverageMethod accepts "mean" or "median".
func ParseAverageMethod(s string) (AverageMethod, error) {
	switch AverageMethod(strings.ToLower(strings.TrimSpace(s))) {
	case AverageMean:
		return AverageMean, nil
	case AverageMedian, "":
		return AverageMedian, nil
	default:
		return "", fmt.Errorf("average method must be mean or median, got %q", s)
	}
}

// Estimator computes one-sided power spectral densities (units^2/Hz) of a
// block of samples, either as a single modified periodogram or as a Welch
// average of overlapping segments.
//
// Each segment is detrended by its mean, tapered and transformed with nfft
// points. Positions marked invalid in the optional mask do not contribute to
// the mean and are zeroed before tapering.
type Estimator struct {
	fft           *FFT
	window        *windowing.Window
	segmentLength int
	overlap       int
	nfft          int
	average       AverageMethod
}

// NewEstimator builds an estimator for segments of segmentLength samples.
// overlap is the number of samples shared by adjacent Welch segments.
func NewEstimator(window *windowing.Window, overlap, nfft int, average AverageMethod) (*Estimator, error) {
	segmentLength := window.GetSize()
	if overlap < 0 || overlap >= segmentLength {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", segmentLength, overlap)
	}
	if nfft < segmentLength {
		return nil, fmt.Errorf("nfft (%d) must be at least the segment length (%d)", nfft, segmentLength)
	}

	return &Estimator{
		fft:           NewFFT(),
		window:        window,
		segmentLength: segmentLength,
		overlap:       overlap,
		nfft:          nfft,
		average:       average,
	}, nil
}

// Bins returns the number of one-sided frequency bins produced.
func (e *Estimator) Bins() int {
	return e.nfft/2 + 1
}

// Frequencies returns the bin centre frequencies for sample rate fs.
func (e *Estimator) Frequencies(fs float64) []float64 {
	freqs := make([]float64, e.Bins())
	for k := range freqs {
		freqs[k] = float64(k) * fs / float64(e.nfft)
	}
	return freqs
}

// Periodogram returns the modified periodogram of x, which must be exactly
// one segment long.
func (e *Estimator) Periodogram(x []float64, valid []bool, fs float64) ([]float64, error) {
	if len(x) != e.segmentLength {
		return nil, fmt.Errorf("periodogram block has %d samples, want %d", len(x), e.segmentLength)
	}
	return e.segmentPSD(x, valid, fs), nil
}

// Welch returns the Welch PSD estimate of x.
func (e *Estimator) Welch(x []float64, valid []bool, fs float64) ([]float64, error) {
	if len(x) < e.segmentLength {
		return nil, fmt.Errorf("welch block has %d samples, fewer than segment length %d", len(x), e.segmentLength)
	}

	step := e.segmentLength - e.overlap
	numSegments := (len(x)-e.segmentLength)/step + 1

	segments := make([][]float64, numSegments)
	for s := range numSegments {
		start := s * step
		end := start + e.segmentLength
		var mask []bool
		if valid != nil {
			mask = valid[start:end]
		}
		segments[s] = e.segmentPSD(x[start:end], mask, fs)
	}

	return e.combine(segments), nil
}

func (e *Estimator) combine(segments [][]float64) []float64 {
	bins := e.Bins()
	out := make([]float64, bins)
	if len(segments) == 1 {
		copy(out, segments[0])
		return out
	}

	column := make([]float64, len(segments))
	bias := common.MedianBias(len(segments))
	for k := range bins {
		for s, seg := range segments {
			column[s] = seg[k]
		}
		if e.average == AverageMean {
			out[k] = common.Mean(column)
		} else {
			out[k] = common.Median(column) / bias
		}
	}
	return out
}

// segmentPSD detrends, tapers and transforms one segment with density scaling.
func (e *Estimator) segmentPSD(x []float64, valid []bool, fs float64) []float64 {
	buf := make([]float64, len(x))
	copy(buf, x)
	common.Demean(buf, valid)

	// lengths already checked by callers
	_ = e.window.ApplyInPlace(buf)

	power := e.fft.OneSidedPower(buf, e.nfft)

	scale := 1.0 / (fs * e.window.SumSquares())
	last := len(power) - 1
	if e.nfft%2 == 1 {
		last = len(power)
	}
	for k := range power {
		power[k] *= scale
		if k > 0 && k < last {
			power[k] *= 2
		}
	}
	return power
}
