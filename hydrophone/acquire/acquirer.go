// Package acquire runs the acquisition pipeline for one time window:
// catalog listing, selection, concurrent fetch, merge, slicing and an
// optional bandpass.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lsetiawan/ooipy/algorithms/filters"
	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/hydrophone/fetch"
	"github.com/lsetiawan/ooipy/hydrophone/merge"
	"github.com/lsetiawan/ooipy/logging"
)

// Lister discovers the segments of a node. *catalog.Catalog implements it.
type Lister interface {
	ListRange(ctx context.Context, node string, start, end time.Time, pad bool) ([]catalog.Descriptor, error)
}

// Fetcher decodes selected segments. *fetch.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, descs []catalog.Descriptor) ([]fetch.Result, error)
}

// Request describes one acquisition.
type Request struct {
	Node   string
	Start  time.Time
	End    time.Time
	Policy hydrophone.GapPolicy

	// Pad adds the segment before and after the window so that data
	// straddling the boundaries is not lost.
	Pad bool

	// FMin and FMax enable a bandpass filter when both are positive.
	FMin float64
	FMax float64
}

// Validate checks the request before any remote call is made.
func (r Request) Validate() error {
	if r.Node == "" {
		return fmt.Errorf("node is required")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("end time %s must be after start time %s", r.End.Format(time.RFC3339Nano), r.Start.Format(time.RFC3339Nano))
	}
	if (r.FMin > 0) != (r.FMax > 0) {
		return fmt.Errorf("fmin and fmax must be set together, got %g and %g", r.FMin, r.FMax)
	}
	return r.Policy.Validate()
}

// Options configures an Acquirer.
type Options struct {
	// Ceiling is the largest candidate list accepted by selection.
	Ceiling int `yaml:"ceiling"`
}

// DefaultOptions returns the default selection ceiling.
func DefaultOptions() Options {
	return Options{Ceiling: catalog.DefaultCeiling}
}

// Acquirer produces assembled traces. It is safe for concurrent use when
// its Lister and Fetcher are.
type Acquirer struct {
	lister  Lister
	fetcher Fetcher
	opts    Options
	logger  logging.Logger
}

// New creates an acquirer. A nil logger selects the global logger.
func New(lister Lister, fetcher Fetcher, opts Options, logger logging.Logger) *Acquirer {
	return &Acquirer{
		lister:  lister,
		fetcher: fetcher,
		opts:    opts,
		logger:  logging.OrGlobal(logger).WithFields(logging.Fields{"component": "acquirer"}),
	}
}

// Acquire returns the trace covering [req.Start, req.End) of req.Node.
//
// Missing segments become gaps handled by req.Policy, including segments at
// the window edges: the trace spans every selected segment's share of the
// window even when the first or last one failed to decode. A window that
// ends up with no samples after slicing fails with ErrNoDataAvailable.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*hydrophone.AssembledTrace, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	ctx = logging.ContextWithFields(ctx, logging.Fields{"request_id": requestID})
	logger := a.logger.WithContext(ctx).WithFields(logging.Fields{
		"node":  req.Node,
		"start": req.Start.UTC().Format(time.RFC3339Nano),
		"end":   req.End.UTC().Format(time.RFC3339Nano),
	})
	started := time.Now()

	descs, err := a.lister.ListRange(ctx, req.Node, req.Start, req.End, req.Pad)
	if err != nil {
		return nil, err
	}

	selected, err := catalog.Select(descs, req.Start, req.End, req.Pad, a.opts.Ceiling)
	if err != nil {
		return nil, err
	}
	logger.Debug("Segments selected", logging.Fields{"candidates": len(descs), "selected": len(selected)})

	results, err := a.fetcher.FetchAll(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}

	segments, missing, err := fetch.Segments(results)
	if err != nil {
		return nil, err
	}
	if missing > 0 {
		logger.Warn("Some segments could not be decoded", logging.Fields{"missing": missing, "selected": len(selected)})
	}

	merged, err := merge.Merge(segments, req.Policy, logger)
	if err != nil {
		return nil, err
	}

	trace, err := merge.Slice(merged, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hydrophone.ErrNoDataAvailable, err)
	}

	from, to := coverage(selected, req.Start, req.End)
	if added := merge.Extend(trace, from, to, req.Policy); added > 0 {
		logger.Warn("Window edges not covered by decoded data", logging.Fields{"missing_samples": added})
	}

	if req.FMin > 0 && req.FMax > 0 {
		bp, err := filters.NewBandpassFilter(trace.SampleRate, req.FMin, req.FMax)
		if err != nil {
			return nil, err
		}
		trace.Samples = bp.ProcessBuffer(trace.Samples)
	}

	logger.Info("Trace acquired", logging.Fields{
		"samples":         trace.Len(),
		"sample_rate":     trace.SampleRate,
		"has_gap":         trace.HasGap,
		"missing_samples": trace.MissingSamples,
		"duration_ms":     time.Since(started).Milliseconds(),
	})

	return trace, nil
}

// coverage clips [start, end) to the span of the selected segments. Window
// edges inside that span but missing from the merged trace belong to
// segments that failed to decode.
func coverage(selected []catalog.Descriptor, start, end time.Time) (time.Time, time.Time) {
	first, last := selected[0].StartTime, selected[0].EndTime
	for _, d := range selected[1:] {
		if d.StartTime.Before(first) {
			first = d.StartTime
		}
		if d.EndTime.After(last) {
			last = d.EndTime
		}
	}
	if first.After(start) {
		start = first
	}
	if last.Before(end) {
		end = last
	}
	return start, end
}

// NodeSource acquires windows of one node with fixed request settings.
// It satisfies parallel.TraceSource.
type NodeSource struct {
	acquirer *Acquirer
	template Request
}

// Source returns a NodeSource that copies template for every window.
func (a *Acquirer) Source(template Request) *NodeSource {
	return &NodeSource{acquirer: a, template: template}
}

// Trace acquires [start, end) with the template's node, policy and filter.
func (s *NodeSource) Trace(ctx context.Context, start, end time.Time) (*hydrophone.AssembledTrace, error) {
	req := s.template
	req.Start = start
	req.End = end
	return s.acquirer.Acquire(ctx, req)
}
