package merge

import (
	"fmt"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
)

// Slice returns the part of trace between start and end. Both bounds snap to
// the nearest sample and are clamped to the trace. A window that does not
// overlap the trace fails with ErrWindowOutOfRange.
//
// The result owns its buffers.
func Slice(trace *hydrophone.AssembledTrace, start, end time.Time) (*hydrophone.AssembledTrace, error) {
	if trace == nil || trace.Len() == 0 {
		return nil, fmt.Errorf("%w: empty trace", hydrophone.ErrWindowOutOfRange)
	}

	n := trace.Len()
	fs := trace.SampleRate
	i0 := min(max(hydrophone.SampleOffset(trace.StartTime, start, fs), 0), n)
	i1 := min(max(hydrophone.SampleOffset(trace.StartTime, end, fs), 0), n)
	if i1 <= i0 {
		return nil, fmt.Errorf("%w: window %s to %s is outside trace %s to %s", hydrophone.ErrWindowOutOfRange,
			start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano),
			trace.StartTime.UTC().Format(time.RFC3339Nano), trace.EndTime.UTC().Format(time.RFC3339Nano))
	}

	out := &hydrophone.AssembledTrace{
		StartTime:      hydrophone.SampleTime(trace.StartTime, i0, fs),
		EndTime:        hydrophone.SampleTime(trace.StartTime, i1, fs),
		SampleRate:     fs,
		Samples:        append([]float64(nil), trace.Samples[i0:i1]...),
		HasGap:         trace.HasGap,
		MissingSamples: trace.MissingSamples,
	}

	if trace.Valid != nil {
		valid := trace.Valid[i0:i1]
		invalid := 0
		for _, ok := range valid {
			if !ok {
				invalid++
			}
		}
		out.HasGap = invalid > 0
		out.MissingSamples = invalid
		if invalid > 0 {
			out.Valid = append([]bool(nil), valid...)
		}
	}

	return out, nil
}
