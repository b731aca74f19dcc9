package merge

import (
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
)

// Extend grows trace in place so that it starts at the sample nearest to
// start and ends at the sample nearest to end. Bounds already inside the
// trace are left alone. Added positions count as missing and are resolved
// with policy: Flagged marks them invalid, Interpolate holds the edge
// sample and ZeroFilledDemeaned writes zeros.
//
// It returns the number of positions added.
func Extend(trace *hydrophone.AssembledTrace, start, end time.Time, policy hydrophone.GapPolicy) int {
	if trace == nil || trace.Len() == 0 {
		return 0
	}
	fs := trace.SampleRate
	head := max(hydrophone.SampleOffset(start, trace.StartTime, fs), 0)
	tail := max(hydrophone.SampleOffset(trace.EndTime, end, fs), 0)
	if head == 0 && tail == 0 {
		return 0
	}

	n := trace.Len()
	first, last := trace.Samples[0], trace.Samples[n-1]
	samples := make([]float64, head+n+tail)
	copy(samples[head:], trace.Samples)
	if policy == hydrophone.GapInterpolate {
		for i := range head {
			samples[i] = first
		}
		for i := head + n; i < len(samples); i++ {
			samples[i] = last
		}
	}

	if policy == hydrophone.GapFlagged {
		valid := make([]bool, len(samples))
		if trace.Valid != nil {
			copy(valid[head:], trace.Valid)
		} else {
			for i := head; i < head+n; i++ {
				valid[i] = true
			}
		}
		trace.Valid = valid
		trace.HasGap = true
	}

	trace.StartTime = hydrophone.SampleTime(trace.StartTime, -head, fs)
	trace.Samples = samples
	trace.EndTime = hydrophone.SampleTime(trace.StartTime, len(samples), fs)
	trace.MissingSamples += head + tail
	return head + tail
}
