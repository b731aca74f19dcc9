package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/merge"
	"github.com/lsetiawan/ooipy/logging"
	"github.com/lsetiawan/ooipy/metrics"
)

// frequencyTolerance is the relative tolerance when comparing chunk axes.
const frequencyTolerance = 1e-9

// Coordinator runs chunked acquisition and the spectral analyzer over chunks
// of a time range. The analyzer may be nil when only AcquireParallel is used.
type Coordinator struct {
	analyzer *spectral.Analyzer
	workers  int
	logger   logging.Logger
}

// NewCoordinator creates a coordinator running at most workers chunks at
// once. workers <= 0 selects the number of CPUs.
func NewCoordinator(analyzer *spectral.Analyzer, workers int, logger logging.Logger) *Coordinator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Coordinator{
		analyzer: analyzer,
		workers:  workers,
		logger:   logging.OrGlobal(logger).WithFields(logging.Fields{"component": "parallel_coordinator"}),
	}
}

// ChunkPsd is the PSD of one chunk.
type ChunkPsd struct {
	Chunk Chunk
	Psd   *spectral.Psd
}

// mapChunks acquires every chunk and runs fn on it with at most c.workers in
// flight. The first failure cancels the remaining chunks.
func mapChunks[T any](ctx context.Context, c *Coordinator, kind string, chunks []Chunk, source TraceSource,
	fn func(*hydrophone.AssembledTrace) (T, error)) ([]T, error) {

	out := make([]T, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, chunk := range chunks {
		g.Go(func() error {
			tr, err := source.Trace(gctx, chunk.Start, chunk.End)
			if err == nil {
				out[i], err = fn(tr)
			}
			if err != nil {
				metrics.RecordSpectralChunk(kind, chunkStatus(err))
				return fmt.Errorf("chunk %d (%s to %s): %w", i,
					chunk.Start.UTC().Format(time.RFC3339), chunk.End.UTC().Format(time.RFC3339), err)
			}
			metrics.RecordSpectralChunk(kind, metrics.StatusSuccess)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error(err, "Parallel analysis aborted", logging.Fields{"kind": kind, "chunks": len(chunks)})
		return nil, err
	}
	return out, nil
}

func chunkStatus(err error) string {
	if errors.Is(err, hydrophone.ErrNoDataAvailable) {
		return metrics.StatusNoData
	}
	return metrics.StatusFailed
}

// AnalyzeParallel computes the spectrogram of [start, end) chunk by chunk and
// concatenates the rows in chunk order. Every chunk must produce the same
// frequency axis. When chunk boundaries fall on analysis block boundaries
// the result equals a single Analyzer.Spectrogram call over the whole range.
func (c *Coordinator) AnalyzeParallel(ctx context.Context, start, end time.Time, source TraceSource,
	partition Partition, params spectral.Params) (*spectral.Spectrogram, error) {

	chunks, err := partition.Chunks(start, end)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	parts, err := mapChunks(ctx, c, "spectrogram", chunks, source, func(tr *hydrophone.AssembledTrace) (*spectral.Spectrogram, error) {
		return c.analyzer.Spectrogram(tr, params)
	})
	if err != nil {
		return nil, err
	}

	result := &spectral.Spectrogram{Freq: parts[0].Freq}
	for i, part := range parts {
		if !spectral.SameFrequencyAxis(result.Freq, part.Freq, frequencyTolerance) {
			return nil, fmt.Errorf("%w: chunk %d has %d bins up to %g Hz, chunk 0 has %d bins up to %g Hz",
				hydrophone.ErrInconsistentFrequencyAxis, i, len(part.Freq), last(part.Freq), len(result.Freq), last(result.Freq))
		}
		result.Time = append(result.Time, part.Time...)
		result.Values = append(result.Values, part.Values...)
	}

	c.logger.Info("Parallel spectrogram computed", logging.Fields{
		"chunks":    len(chunks),
		"time_bins": len(result.Time),
		"workers":   c.workers,
	})
	return result, nil
}

// PSDParallel computes one Welch PSD per chunk, in chunk order.
func (c *Coordinator) PSDParallel(ctx context.Context, start, end time.Time, source TraceSource,
	partition Partition, params spectral.Params) ([]ChunkPsd, error) {

	chunks, err := partition.Chunks(start, end)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	psds, err := mapChunks(ctx, c, "psd", chunks, source, func(tr *hydrophone.AssembledTrace) (*spectral.Psd, error) {
		return c.analyzer.PSD(tr, params)
	})
	if err != nil {
		return nil, err
	}

	out := make([]ChunkPsd, len(chunks))
	for i, psd := range psds {
		if !spectral.SameFrequencyAxis(psds[0].Freq, psd.Freq, frequencyTolerance) {
			return nil, fmt.Errorf("%w: chunk %d", hydrophone.ErrInconsistentFrequencyAxis, i)
		}
		out[i] = ChunkPsd{Chunk: chunks[i], Psd: psd}
	}
	return out, nil
}

// AcquireParallel acquires every chunk of [start, end) concurrently and
// joins them into one trace with policy, which should match the policy the
// source resolves gaps with. The returned chunks are the ones acquired; with
// a TraceSlicer over the trace they replay the same partition without
// another remote fetch.
func (c *Coordinator) AcquireParallel(ctx context.Context, start, end time.Time, source TraceSource,
	partition Partition, policy hydrophone.GapPolicy) (*hydrophone.AssembledTrace, ExplicitChunks, error) {

	chunks, err := partition.Chunks(start, end)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}

	traces, err := mapChunks(ctx, c, "acquire", chunks, source, func(tr *hydrophone.AssembledTrace) (*hydrophone.AssembledTrace, error) {
		return tr, nil
	})
	if err != nil {
		return nil, nil, err
	}

	trace, err := merge.Join(traces, policy, c.logger)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("Parallel acquisition joined", logging.Fields{
		"chunks":          len(chunks),
		"samples":         trace.Len(),
		"missing_samples": trace.MissingSamples,
		"workers":         c.workers,
	})
	return trace, ExplicitChunks(chunks), nil
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
