package parallel

import (
	"context"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/merge"
)

// TraceSource produces the trace of one chunk. Each call must return a
// trace the caller owns.
type TraceSource interface {
	Trace(ctx context.Context, start, end time.Time) (*hydrophone.AssembledTrace, error)
}

// TraceSlicer serves chunks from a trace that was already acquired.
type TraceSlicer struct {
	trace *hydrophone.AssembledTrace
}

// NewTraceSlicer wraps trace. The trace must not be modified afterwards.
func NewTraceSlicer(trace *hydrophone.AssembledTrace) *TraceSlicer {
	return &TraceSlicer{trace: trace}
}

// Trace implements TraceSource.
func (s *TraceSlicer) Trace(ctx context.Context, start, end time.Time) (*hydrophone.AssembledTrace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merge.Slice(s.trace, start, end)
}
