package spectral

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lsetiawan/ooipy/algorithms/common"
)

// Spectrogram holds one calibrated spectrum per time bin.
// Values has len(Time) rows of len(Freq) columns.
type Spectrogram struct {
	Time   []time.Time `yaml:"t"`
	Freq   []float64   `yaml:"f"`
	Values [][]float64 `yaml:"spectrogram"`
}

// Validate checks the row/column invariants.
func (s *Spectrogram) Validate() error {
	if len(s.Values) != len(s.Time) {
		return fmt.Errorf("spectrogram has %d rows for %d time bins", len(s.Values), len(s.Time))
	}
	for i, row := range s.Values {
		if len(row) != len(s.Freq) {
			return fmt.Errorf("spectrogram row %d has %d columns for %d frequency bins", i, len(row), len(s.Freq))
		}
	}
	return nil
}

// Equal reports whether both spectrograms have the same axes and values
// within tol. Timestamps must match exactly.
func (s *Spectrogram) Equal(other *Spectrogram, tol float64) bool {
	if len(s.Time) != len(other.Time) || !sameAxis(s.Freq, other.Freq, tol) {
		return false
	}
	for i := range s.Time {
		if !s.Time[i].Equal(other.Time[i]) {
			return false
		}
		if !sameAxis(s.Values[i], other.Values[i], tol) {
			return false
		}
	}
	return true
}

// Psd is a single calibrated power spectral density estimate.
type Psd struct {
	Freq   []float64 `yaml:"f"`
	Values []float64 `yaml:"psd"`
}

// Validate checks that every frequency has a value.
func (p *Psd) Validate() error {
	if len(p.Freq) != len(p.Values) {
		return fmt.Errorf("psd has %d values for %d frequency bins", len(p.Values), len(p.Freq))
	}
	return nil
}

// SameFrequencyAxis reports whether two frequency axes are identical within tol.
func SameFrequencyAxis(a, b []float64, tol float64) bool {
	return sameAxis(a, b, tol)
}

func sameAxis(a, b []float64, tol float64) bool {
	return slices.EqualFunc(a, b, func(x, y float64) bool {
		return common.IsClose(x, y, tol)
	})
}

// Results are persisted as YAML: float formatting is shortest-round-trip and
// -Inf (log of zero power) survives, which JSON cannot encode.

// SaveSpectrogram writes s to path.
func SaveSpectrogram(path string, s *Spectrogram) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return writeYAML(path, s)
}

// LoadSpectrogram reads a spectrogram written by SaveSpectrogram.
func LoadSpectrogram(path string) (*Spectrogram, error) {
	var s Spectrogram
	if err := readYAML(path, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spectrogram file %s: %w", path, err)
	}
	return &s, nil
}

// SavePsd writes p to path.
func SavePsd(path string, p *Psd) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return writeYAML(path, p)
}

// LoadPsd reads a PSD written by SavePsd.
func LoadPsd(path string) (*Psd, error) {
	var p Psd
	if err := readYAML(path, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid psd file %s: %w", path, err)
	}
	return &p, nil
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
