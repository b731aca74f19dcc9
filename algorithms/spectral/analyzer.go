package spectral

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/lsetiawan/ooipy/algorithms/windowing"
	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/logging"
)

// Params configures a spectral analysis.
//
// AvgTime == 0 selects periodogram mode: one modified periodogram per block
// of SegmentLength samples. AvgTime > 0 selects Welch mode: one Welch estimate
// per AvgTime seconds of data.
type Params struct {
	Window        string        `yaml:"window"`
	SegmentLength int           `yaml:"segment_length"`
	AvgTime       float64       `yaml:"avg_time"`
	Overlap       float64       `yaml:"overlap"`
	Average       AverageMethod `yaml:"average"`
	Resolution    float64       `yaml:"resolution"` // Hz; zero-pads when finer than fs/SegmentLength
	Scale         Scale         `yaml:"scale"`
}

// DefaultParams returns a Hann window, 4096-sample segments, 50% overlap,
// median averaging and log scale in periodogram mode.
func DefaultParams() Params {
	return Params{
		Window:        "hann",
		SegmentLength: 4096,
		Overlap:       0.5,
		Average:       AverageMedian,
		Scale:         ScaleLog,
	}
}

// Validate checks the parameters that do not depend on the sample rate.
func (p Params) Validate() error {
	if p.SegmentLength <= 0 {
		return fmt.Errorf("segment length must be positive, got %d", p.SegmentLength)
	}
	if p.Overlap < 0 || p.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0, 1), got %g", p.Overlap)
	}
	if p.AvgTime < 0 {
		return fmt.Errorf("avg_time must not be negative, got %g", p.AvgTime)
	}
	if p.Resolution < 0 {
		return fmt.Errorf("resolution must not be negative, got %g", p.Resolution)
	}
	if _, err := ParseAverageMethod(string(p.Average)); err != nil {
		return err
	}
	if _, err := ParseScale(string(p.Scale)); err != nil {
		return err
	}
	return nil
}

// NFFT returns the transform length: SegmentLength, or fs/Resolution when the
// requested resolution is finer than fs/SegmentLength.
func (p Params) NFFT(fs float64) int {
	if p.Resolution > 0 && fs/float64(p.SegmentLength) > p.Resolution {
		return int(fs / p.Resolution)
	}
	return p.SegmentLength
}

// ExpectedBins is the number of frequency bins every block must produce.
func (p Params) ExpectedBins(fs float64) int {
	return p.NFFT(fs)/2 + 1
}

// Analyzer computes calibrated spectrograms and PSDs of assembled traces.
// An Analyzer holds no per-call state and may be shared between goroutines.
type Analyzer struct {
	calibration *Calibration
	logger      logging.Logger
}

// NewAnalyzer creates an analyzer. A nil calibration selects
// DefaultCalibration and a nil logger the global logger.
func NewAnalyzer(calibration *Calibration, logger logging.Logger) *Analyzer {
	if calibration == nil {
		calibration = DefaultCalibration()
	}
	return &Analyzer{
		calibration: calibration,
		logger:      logging.OrGlobal(logger).WithFields(logging.Fields{"component": "spectral_analyzer"}),
	}
}

// block is one time step of a spectrogram.
type block struct {
	start int
	end   int
	time  time.Time
}

func (a *Analyzer) newEstimator(p Params, fs float64) (*Estimator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if fs <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", fs)
	}

	window, err := windowing.New(p.Window, p.SegmentLength)
	if err != nil {
		return nil, err
	}
	average, _ := ParseAverageMethod(string(p.Average))
	overlap := int(float64(p.SegmentLength) * p.Overlap)

	return NewEstimator(window, overlap, p.NFFT(fs), average)
}

// planBlocks splits n samples into analysis blocks.
func planBlocks(n int, start time.Time, fs float64, p Params) ([]block, error) {
	L := p.SegmentLength
	if p.AvgTime == 0 {
		count := n / L
		blocks := make([]block, count)
		for i := range count {
			blocks[i] = block{start: i * L, end: (i + 1) * L, time: hydrophone.SampleTime(start, i*L, fs)}
		}
		return blocks, nil
	}

	size := int(math.Round(fs * p.AvgTime))
	if size < L {
		return nil, fmt.Errorf("avg_time of %gs holds %d samples, fewer than segment length %d", p.AvgTime, size, L)
	}

	count := (n + size - 1) / size
	blocks := make([]block, 0, count)
	for i := range count {
		b := block{
			start: i * size,
			end:   min((i+1)*size, n),
			time:  start.Add(hydrophone.SecondsToDuration(float64(i) * p.AvgTime)),
		}
		// only the final remainder can be short
		if b.end-b.start < L {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Spectrogram computes one calibrated spectrum per block of tr.
func (a *Analyzer) Spectrogram(tr *hydrophone.AssembledTrace, p Params) (*Spectrogram, error) {
	if tr == nil || tr.Len() == 0 {
		return nil, fmt.Errorf("%w: trace is empty", hydrophone.ErrNoDataAvailable)
	}

	fs := tr.SampleRate
	est, err := a.newEstimator(p, fs)
	if err != nil {
		return nil, err
	}

	blocks, err := planBlocks(tr.Len(), tr.StartTime, fs, p)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: spectrogram does not contain any data (%d samples, segment length %d)",
			hydrophone.ErrNoDataAvailable, tr.Len(), p.SegmentLength)
	}

	rows, err := a.computeBlocks(tr, blocks, est, p)
	if err != nil {
		return nil, err
	}

	freqs := est.Frequencies(fs)
	offsets := a.calibration.Offsets(freqs)
	scale, _ := ParseScale(string(p.Scale))

	times := make([]time.Time, len(blocks))
	for i, b := range blocks {
		times[i] = b.time
		a.calibration.Apply(rows[i], offsets, scale)
	}

	a.logger.Debug("Spectrogram computed", logging.Fields{
		"blocks":      len(blocks),
		"freq_bins":   len(freqs),
		"welch":       p.AvgTime > 0,
		"sample_rate": fs,
	})

	return &Spectrogram{Time: times, Freq: freqs, Values: rows}, nil
}

// PSD computes a single calibrated Welch estimate over the whole trace.
func (a *Analyzer) PSD(tr *hydrophone.AssembledTrace, p Params) (*Psd, error) {
	if tr == nil || tr.Len() == 0 {
		return nil, fmt.Errorf("%w: trace is empty", hydrophone.ErrNoDataAvailable)
	}

	fs := tr.SampleRate
	est, err := a.newEstimator(p, fs)
	if err != nil {
		return nil, err
	}

	psd, err := est.Welch(tr.Samples, tr.Valid, fs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hydrophone.ErrSpectralCompute, err)
	}
	if want := p.ExpectedBins(fs); len(psd) != want {
		return nil, fmt.Errorf("%w: PSD has %d bins, want %d", hydrophone.ErrSpectralCompute, len(psd), want)
	}

	freqs := est.Frequencies(fs)
	scale, _ := ParseScale(string(p.Scale))
	a.calibration.Apply(psd, a.calibration.Offsets(freqs), scale)

	return &Psd{Freq: freqs, Values: psd}, nil
}

// computeBlocks estimates every block with a pool of workers. Results are
// written by block index so completion order does not matter. Any failing
// block fails the whole call.
func (a *Analyzer) computeBlocks(tr *hydrophone.AssembledTrace, blocks []block, est *Estimator, p Params) ([][]float64, error) {
	fs := tr.SampleRate
	want := p.ExpectedBins(fs)

	rows := make([][]float64, len(blocks))
	errs := make([]error, len(blocks))

	jobs := make(chan int, len(blocks))
	for i := range blocks {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range getOptimalWorkerCount(len(blocks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				b := blocks[i]
				x := tr.Samples[b.start:b.end]
				var valid []bool
				if tr.Valid != nil {
					valid = tr.Valid[b.start:b.end]
				}

				var psd []float64
				var err error
				if p.AvgTime == 0 {
					psd, err = est.Periodogram(x, valid, fs)
				} else {
					psd, err = est.Welch(x, valid, fs)
				}

				switch {
				case err != nil:
					errs[i] = fmt.Errorf("%w: block %d: %v", hydrophone.ErrSpectralCompute, i, err)
				case len(psd) != want:
					errs[i] = fmt.Errorf("%w: block %d has %d bins, want %d", hydrophone.ErrSpectralCompute, i, len(psd), want)
				default:
					rows[i] = psd
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			a.logger.Error(err, "Spectral analysis aborted")
			return nil, err
		}
	}
	return rows, nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func getOptimalWorkerCount(numBlocks int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numBlocks < 100 {
		return max(1, min(numCPU/2, numBlocks))
	}

	// For medium workloads, use most CPUs
	if numBlocks < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
