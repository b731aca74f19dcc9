package merge

import (
	"fmt"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/logging"
)

// Join merges consecutive traces, typically the chunks of one range
// acquired separately, into a single trace resolved with policy.
//
// Valid runs of each trace become segments for Merge, so flagged positions
// and the space between traces are gaps of the joined trace.
// The result spans from the earliest trace start to the latest trace end.
// MissingSamples adds the counts of traces whose gaps were already filled.
func Join(traces []*hydrophone.AssembledTrace, policy hydrophone.GapPolicy, logger logging.Logger) (*hydrophone.AssembledTrace, error) {
	var segs []*hydrophone.DecodedSegment
	var first, last time.Time
	filled := 0
	for _, tr := range traces {
		if tr == nil || tr.Len() == 0 {
			continue
		}
		if first.IsZero() || tr.StartTime.Before(first) {
			first = tr.StartTime
		}
		if tr.EndTime.After(last) {
			last = tr.EndTime
		}
		if tr.Valid == nil {
			filled += tr.MissingSamples
		}
		segs = append(segs, validRuns(tr)...)
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: no valid samples to join", hydrophone.ErrNoDataAvailable)
	}

	joined, err := Merge(segs, policy, logger)
	if err != nil {
		return nil, err
	}
	Extend(joined, first, last, policy)
	joined.MissingSamples += filled
	return joined, nil
}

// validRuns splits tr at its invalid positions. The segments share tr's
// sample buffer.
func validRuns(tr *hydrophone.AssembledTrace) []*hydrophone.DecodedSegment {
	seg := func(a, b int) *hydrophone.DecodedSegment {
		return &hydrophone.DecodedSegment{
			StartTime:  hydrophone.SampleTime(tr.StartTime, a, tr.SampleRate),
			SampleRate: tr.SampleRate,
			Samples:    tr.Samples[a:b:b],
		}
	}
	if tr.Valid == nil {
		return []*hydrophone.DecodedSegment{seg(0, tr.Len())}
	}

	var runs []*hydrophone.DecodedSegment
	for i := 0; i < tr.Len(); {
		if !tr.Valid[i] {
			i++
			continue
		}
		a := i
		for i < tr.Len() && tr.Valid[i] {
			i++
		}
		runs = append(runs, seg(a, i))
	}
	return runs
}
