// Package hydrophone holds the value types passed between the acquisition
// and analysis stages, and the shared error taxonomy.
package hydrophone

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DecodedSegment is one remote segment after decoding.
type DecodedSegment struct {
	Locator    string
	StartTime  time.Time
	SampleRate float64
	Samples    []float64
}

// EndTime returns the timestamp one sample period past the last sample.
func (s *DecodedSegment) EndTime() time.Time {
	return SampleTime(s.StartTime, len(s.Samples), s.SampleRate)
}

// AssembledTrace is a merged, gap-handled sample stream.
//
// Valid is nil unless the Flagged policy left invalid positions; when set
// it has the same length as Samples. MissingSamples counts positions that
// had no decoded sample before the gap policy ran, regardless of policy.
// Slicing narrows the count only when Valid is set; otherwise it keeps the
// count of the merged trace it came from. Extending a trace to a window adds
// the padded positions.
type AssembledTrace struct {
	StartTime      time.Time
	EndTime        time.Time
	SampleRate     float64
	Samples        []float64
	Valid          []bool
	HasGap         bool
	MissingSamples int
}

// Len returns the number of samples.
func (t *AssembledTrace) Len() int {
	return len(t.Samples)
}

// Duration returns EndTime - StartTime.
func (t *AssembledTrace) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// IsValid reports whether sample i carries real data.
func (t *AssembledTrace) IsValid(i int) bool {
	return t.Valid == nil || t.Valid[i]
}

// InvalidCount returns the number of flagged positions.
func (t *AssembledTrace) InvalidCount() int {
	n := 0
	for _, ok := range t.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// SampleTime returns start + index/sampleRate rounded to the nanosecond.
func SampleTime(start time.Time, index int, sampleRate float64) time.Time {
	return start.Add(SecondsToDuration(float64(index) / sampleRate))
}

// SecondsToDuration converts fractional seconds to a rounded Duration.
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// SampleOffset returns the signed sample index of t relative to start,
// rounded to the nearest sample.
func SampleOffset(start, t time.Time, sampleRate float64) int {
	return int(math.Round(t.Sub(start).Seconds() * sampleRate))
}

// GapPolicy selects how missing samples are handled by the merge stage.
type GapPolicy int

const (
	// GapInterpolate fills gaps linearly; the trace reports no gap.
	GapInterpolate GapPolicy = iota
	// GapFlagged marks gap positions invalid; the trace reports a gap.
	GapFlagged
	// GapZeroFilledDemeaned removes the valid-sample mean and zero-fills
	// gaps; the trace reports no gap.
	GapZeroFilledDemeaned
)

func (p GapPolicy) String() string {
	switch p {
	case GapInterpolate:
		return "interpolate"
	case GapFlagged:
		return "flagged"
	case GapZeroFilledDemeaned:
		return "zero_filled_demeaned"
	default:
		return "invalid(" + strconv.Itoa(int(p)) + ")"
	}
}

// Validate fails with ErrInvalidGapMode for values outside the enum.
func (p GapPolicy) Validate() error {
	switch p {
	case GapInterpolate, GapFlagged, GapZeroFilledDemeaned:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidGapMode, int(p))
	}
}

// ParseGapPolicy accepts the policy names or the legacy mode numbers 0, 1, 2.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "interpolate":
		return GapInterpolate, nil
	case "1", "flagged", "masked":
		return GapFlagged, nil
	case "2", "zero_filled_demeaned", "zero-filled-demeaned", "zerofill":
		return GapZeroFilledDemeaned, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGapMode, s)
	}
}

// UnmarshalText lets GapPolicy be used directly in config files.
func (p *GapPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseGapPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText writes the policy name.
func (p GapPolicy) MarshalText() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return []byte(p.String()), nil
}
