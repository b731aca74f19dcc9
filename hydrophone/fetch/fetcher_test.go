package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/logging"
)

var t0 = time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC)

func descriptors(names ...string) []catalog.Descriptor {
	descs := make([]catalog.Descriptor, len(names))
	for i, name := range names {
		descs[i] = catalog.Descriptor{
			Locator:   name,
			StartTime: t0.Add(time.Duration(i) * time.Minute),
			EndTime:   t0.Add(time.Duration(i+1) * time.Minute),
		}
	}
	return descs
}

// fakeDecoder decodes "ok-*" locators, fails "bad-*", blocks on "slow-*"
// and panics on "panic-*". It records the peak number of concurrent calls.
type fakeDecoder struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (d *fakeDecoder) Decode(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case len(locator) > 3 && locator[:3] == "ok-":
		return &hydrophone.DecodedSegment{StartTime: t0, SampleRate: 10, Samples: []float64{1, 2, 3}}, nil
	case len(locator) > 4 && locator[:4] == "bad-":
		return nil, errors.New("corrupt record")
	case len(locator) > 5 && locator[:5] == "slow-":
		<-ctx.Done()
		return nil, ctx.Err()
	case len(locator) > 6 && locator[:6] == "panic-":
		panic("decoder exploded")
	case len(locator) > 6 && locator[:6] == "empty-":
		return &hydrophone.DecodedSegment{StartTime: t0, SampleRate: 10}, nil
	}
	return nil, fmt.Errorf("unknown locator %s", locator)
}

func newTestFetcher(d Decoder, opts Options) *Fetcher {
	return NewFetcher(d, opts, &logging.NoOpLogger{})
}

func TestFetchAll_AlignsResultsAndAbsorbsFailures(t *testing.T) {
	f := newTestFetcher(&fakeDecoder{}, Options{Concurrency: 3, Timeout: 200 * time.Millisecond})

	names := []string{"ok-0", "bad-1", "ok-2", "slow-3", "panic-4", "empty-5", "ok-6"}
	results, err := f.FetchAll(context.Background(), descriptors(names...))
	require.NoError(t, err)
	require.Len(t, results, len(names))

	for i, r := range results {
		assert.Equal(t, names[i], r.Locator)
		assert.True(t, (r.Segment == nil) != (r.Err == nil), "exactly one of Segment and Err at %d", i)
	}
	for _, i := range []int{0, 2, 6} {
		require.NotNil(t, results[i].Segment)
		assert.Equal(t, names[i], results[i].Segment.Locator)
	}
	for _, i := range []int{1, 3, 4, 5} {
		assert.True(t, errors.Is(results[i].Err, hydrophone.ErrSegmentDecode), "result %d: %v", i, results[i].Err)
	}
	assert.True(t, errors.Is(results[3].Err, context.DeadlineExceeded))
	assert.Contains(t, results[4].Err.Error(), "panic")

	segs, missing, err := Segments(results)
	require.NoError(t, err)
	assert.Len(t, segs, 3)
	assert.Equal(t, 4, missing)
}

func TestFetchAll_BoundsConcurrency(t *testing.T) {
	d := &fakeDecoder{delay: 20 * time.Millisecond}
	f := newTestFetcher(d, Options{Concurrency: 2, Timeout: time.Second})

	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("ok-%d", i)
	}
	results, err := f.FetchAll(context.Background(), descriptors(names...))
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.LessOrEqual(t, d.peak.Load(), int32(2))
}

func TestFetchAll_CallerCancellation(t *testing.T) {
	f := newTestFetcher(&fakeDecoder{}, Options{Concurrency: 1, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	results, err := f.FetchAll(ctx, descriptors("slow-0", "ok-1", "ok-2"))
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Nil(t, r.Segment)
		assert.Error(t, r.Err)
	}
}

func TestSegments_AllMissing(t *testing.T) {
	results := []Result{
		{Locator: "a", Err: hydrophone.ErrSegmentDecode},
		{Locator: "b", Err: hydrophone.ErrSegmentDecode},
	}
	_, missing, err := Segments(results)
	assert.True(t, errors.Is(err, hydrophone.ErrNoDataAvailable))
	assert.Equal(t, 2, missing)

	_, _, err = Segments(nil)
	assert.True(t, errors.Is(err, hydrophone.ErrNoDataAvailable))
}

func TestDecoderFunc(t *testing.T) {
	var d Decoder = DecoderFunc(func(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error) {
		return &hydrophone.DecodedSegment{Locator: "renamed", StartTime: t0, SampleRate: 1, Samples: []float64{0}}, nil
	})
	results, err := newTestFetcher(d, Options{}).FetchAll(context.Background(), descriptors("x"))
	require.NoError(t, err)
	assert.Equal(t, "renamed", results[0].Segment.Locator)
}
