// Package fetch downloads and decodes selected segments concurrently.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/logging"
	"github.com/lsetiawan/ooipy/metrics"
)

// DefaultTimeout bounds one fetch-and-decode task.
const DefaultTimeout = 60 * time.Second

// Decoder turns a segment locator into samples. Implementations must be safe
// for concurrent use and should honour ctx.
type Decoder interface {
	Decode(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error) {
	return f(ctx, locator)
}

// Options configures a Fetcher.
type Options struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultOptions uses one task per CPU and a 60 second timeout.
func DefaultOptions() Options {
	return Options{Concurrency: runtime.NumCPU(), Timeout: DefaultTimeout}
}

// Result is the outcome of one task. Exactly one of Segment and Err is set.
type Result struct {
	Locator string
	Segment *hydrophone.DecodedSegment
	Err     error
}

// Fetcher runs decode tasks on a bounded number of goroutines.
type Fetcher struct {
	decoder     Decoder
	concurrency int
	timeout     time.Duration
	logger      logging.Logger
}

// NewFetcher creates a fetcher. Zero options select the defaults.
func NewFetcher(decoder Decoder, opts Options, logger logging.Logger) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Fetcher{
		decoder:     decoder,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		logger:      logging.OrGlobal(logger).WithFields(logging.Fields{"component": "segment_fetcher"}),
	}
}

// FetchAll decodes every descriptor. results[i] always belongs to descs[i].
// Failed, timed out or panicking tasks are recorded in their Result and never
// fail the call; the returned error is ctx.Err() when the caller cancelled,
// in which case tasks that had not started carry that error.
func (f *Fetcher) FetchAll(ctx context.Context, descs []catalog.Descriptor) ([]Result, error) {
	results := make([]Result, len(descs))
	sem := semaphore.NewWeighted(int64(f.concurrency))
	logger := f.logger.WithContext(ctx)

	var wg sync.WaitGroup
	for i, d := range descs {
		results[i].Locator = d.Locator

		err := sem.Acquire(ctx, 1)
		if err == nil && ctx.Err() != nil {
			sem.Release(1)
			err = ctx.Err()
		}
		if err != nil {
			for j := i; j < len(descs); j++ {
				results[j] = Result{Locator: descs[j].Locator, Err: err}
			}
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = f.fetchOne(ctx, d.Locator, logger)
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Debug("Fetch finished", logging.Fields{"segments": len(descs), "failed": failed})

	return results, ctx.Err()
}

type decodeOutcome struct {
	segment *hydrophone.DecodedSegment
	err     error
	panic   any
}

func (f *Fetcher) fetchOne(ctx context.Context, locator string, logger logging.Logger) Result {
	taskCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	done := make(chan decodeOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- decodeOutcome{panic: p}
			}
		}()
		seg, err := f.decoder.Decode(taskCtx, locator)
		done <- decodeOutcome{segment: seg, err: err}
	}()

	var out decodeOutcome
	select {
	case out = <-done:
	case <-taskCtx.Done():
		out = decodeOutcome{err: taskCtx.Err()}
	}
	if ctx.Err() != nil && out.err == nil && out.panic == nil {
		// the caller gave up; drop whatever finished meanwhile
		out = decodeOutcome{err: ctx.Err()}
	}
	elapsed := time.Since(started).Seconds()

	fields := logging.Fields{"locator": locator, "duration_s": elapsed}
	status := metrics.StatusFailed
	var err error
	switch {
	case out.panic != nil:
		status = metrics.StatusPanic
		err = fmt.Errorf("%w: %s: decoder panic: %v", hydrophone.ErrSegmentDecode, locator, out.panic)
	case out.err != nil:
		if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			status = metrics.StatusTimeout
		}
		err = fmt.Errorf("%w: %s: %w", hydrophone.ErrSegmentDecode, locator, out.err)
	default:
		err = validateSegment(out.segment)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", hydrophone.ErrSegmentDecode, locator, err)
		}
	}

	if err != nil {
		metrics.RecordSegmentFetch(status, elapsed)
		logger.Warn("Segment skipped", logging.Fields{"locator": locator, "status": status, "error": err.Error()})
		return Result{Locator: locator, Err: err}
	}

	metrics.RecordSegmentFetch(metrics.StatusSuccess, elapsed)
	logger.Debug("Segment decoded", fields)
	if out.segment.Locator == "" {
		out.segment.Locator = locator
	}
	return Result{Locator: locator, Segment: out.segment}
}

func validateSegment(seg *hydrophone.DecodedSegment) error {
	switch {
	case seg == nil:
		return errors.New("decoder returned no segment")
	case seg.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %g", seg.SampleRate)
	case len(seg.Samples) == 0:
		return errors.New("segment has no samples")
	}
	return nil
}

// Segments returns the decoded segments in input order and the number of
// failed positions. It fails with ErrNoDataAvailable when nothing decoded.
func Segments(results []Result) ([]*hydrophone.DecodedSegment, int, error) {
	segs := make([]*hydrophone.DecodedSegment, 0, len(results))
	for _, r := range results {
		if r.Segment != nil {
			segs = append(segs, r.Segment)
		}
	}
	missing := len(results) - len(segs)
	if len(segs) == 0 {
		return nil, missing, fmt.Errorf("%w: none of %d segments could be decoded", hydrophone.ErrNoDataAvailable, len(results))
	}
	return segs, missing, nil
}
