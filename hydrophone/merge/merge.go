// Package merge assembles decoded segments into one continuous trace and
// cuts traces to a requested window.
package merge

import (
	"fmt"
	"slices"

	"github.com/lsetiawan/ooipy/algorithms/common"
	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/logging"
)

// Merge places every segment at its sample offset from the earliest segment
// and resolves missing positions with policy.
//
// A segment that starts after the previous one ended leaves a gap of that
// many samples; a segment that starts early overwrites the overlapped range.
// Segments whose sample rate differs from the earliest one are dropped.
// The input slice is not modified.
func Merge(segments []*hydrophone.DecodedSegment, policy hydrophone.GapPolicy, logger logging.Logger) (*hydrophone.AssembledTrace, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrGlobal(logger).WithFields(logging.Fields{"component": "merge_engine"})

	segs := make([]*hydrophone.DecodedSegment, 0, len(segments))
	for _, s := range segments {
		if s != nil && len(s.Samples) > 0 && s.SampleRate > 0 {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", hydrophone.ErrNoDataAvailable)
	}
	slices.SortStableFunc(segs, func(a, b *hydrophone.DecodedSegment) int {
		return a.StartTime.Compare(b.StartTime)
	})

	first := segs[0]
	fs := first.SampleRate
	start := first.StartTime

	offsets := make([]int, 0, len(segs))
	kept := segs[:0:0]
	total := 0
	for _, s := range segs {
		if !common.IsClose(s.SampleRate, fs, 1e-9) {
			logger.Warn("Dropping segment with mismatched sample rate", logging.Fields{
				"locator":     s.Locator,
				"sample_rate": s.SampleRate,
				"expected":    fs,
			})
			continue
		}
		off := hydrophone.SampleOffset(start, s.StartTime, fs)
		offsets = append(offsets, off)
		kept = append(kept, s)
		total = max(total, off+len(s.Samples))
	}

	samples := make([]float64, total)
	filled := make([]bool, total)
	for i, s := range kept {
		off := offsets[i]
		copy(samples[off:], s.Samples)
		for j := off; j < off+len(s.Samples); j++ {
			filled[j] = true
		}
	}

	missing := 0
	for _, ok := range filled {
		if !ok {
			missing++
		}
	}

	trace := &hydrophone.AssembledTrace{
		StartTime:      start,
		EndTime:        hydrophone.SampleTime(start, total, fs),
		SampleRate:     fs,
		Samples:        samples,
		MissingSamples: missing,
	}

	switch policy {
	case hydrophone.GapInterpolate:
		interpolateGaps(samples, filled)
	case hydrophone.GapFlagged:
		if missing > 0 {
			trace.Valid = filled
			trace.HasGap = true
		}
	case hydrophone.GapZeroFilledDemeaned:
		common.Demean(samples, filled)
	}

	if missing > 0 {
		logger.Info("Merged trace has gaps", logging.Fields{
			"segments":        len(kept),
			"missing_samples": missing,
			"policy":          policy.String(),
		})
	}

	return trace, nil
}

// interpolateGaps fills every run of unfilled positions on a straight line
// between the samples that bound it. The first and last positions are
// always filled because a segment starts at offset 0 and one ends at len.
func interpolateGaps(samples []float64, filled []bool) {
	n := len(samples)
	for i := 0; i < n; i++ {
		if filled[i] {
			continue
		}
		a := i
		for i < n && !filled[i] {
			i++
		}
		b := i // first filled position after the run

		left, right := samples[a-1], samples[b]
		steps := float64(b - a + 1)
		for k := a; k < b; k++ {
			frac := float64(k-a+1) / steps
			samples[k] = left + (right-left)*frac
		}
	}
}
