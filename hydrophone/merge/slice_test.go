package merge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsetiawan/ooipy/hydrophone"
)

func TestSlice(t *testing.T) {
	tr := merge(t, gappedDay(), hydrophone.GapInterpolate)

	cut, err := Slice(tr, t0.Add(10*time.Second), t0.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2000, cut.Len())
	assert.Equal(t, t0.Add(10*time.Second), cut.StartTime)
	assert.Equal(t, t0.Add(20*time.Second), cut.EndTime)
	assert.Equal(t, 2000.0, cut.Samples[0])
	assertLengthMatchesSpan(t, cut)

	// the result must not alias the source
	cut.Samples[0] = -1
	assert.Equal(t, 2000.0, tr.Samples[2000])
}

func TestSlice_SnapsAndClamps(t *testing.T) {
	tr := merge(t, []*hydrophone.DecodedSegment{segmentAt(0, 10, 0)}, hydrophone.GapInterpolate)

	// 2.4 ms is closer to sample 0 than to sample 1 (5 ms)
	cut, err := Slice(tr, t0.Add(-time.Hour), t0.Add(2400*time.Microsecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hydrophone.ErrWindowOutOfRange))
	assert.Nil(t, cut)

	cut, err = Slice(tr, t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, tr.Len(), cut.Len())
	assert.Equal(t, tr.StartTime, cut.StartTime)
	assert.Equal(t, tr.EndTime, cut.EndTime)

	cut, err = Slice(tr, t0.Add(2600*time.Microsecond), t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cut.Samples[0])
	assert.Equal(t, 199, cut.Len())
}

func TestSlice_OutOfRange(t *testing.T) {
	tr := merge(t, []*hydrophone.DecodedSegment{segmentAt(0, 10, 0)}, hydrophone.GapInterpolate)

	_, err := Slice(tr, t0.Add(20*time.Second), t0.Add(30*time.Second))
	assert.True(t, errors.Is(err, hydrophone.ErrWindowOutOfRange))

	_, err = Slice(tr, t0.Add(-30*time.Second), t0.Add(-20*time.Second))
	assert.True(t, errors.Is(err, hydrophone.ErrWindowOutOfRange))

	_, err = Slice(nil, t0, t0.Add(time.Second))
	assert.True(t, errors.Is(err, hydrophone.ErrWindowOutOfRange))
}

func TestSlice_FlaggedRecomputesGap(t *testing.T) {
	tr := merge(t, gappedDay(), hydrophone.GapFlagged)

	clean, err := Slice(tr, t0, t0.Add(100*time.Second))
	require.NoError(t, err)
	assert.False(t, clean.HasGap)
	assert.Nil(t, clean.Valid)
	assert.Equal(t, 0, clean.MissingSamples)

	gapped, err := Slice(tr, t0.Add(115*time.Second), t0.Add(135*time.Second))
	require.NoError(t, err)
	assert.True(t, gapped.HasGap)
	assert.Equal(t, 2000, gapped.InvalidCount())
	assert.Len(t, gapped.Valid, gapped.Len())
}
