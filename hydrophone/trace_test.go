package hydrophone

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGapPolicy(t *testing.T) {
	cases := map[string]GapPolicy{
		"0":                    GapInterpolate,
		"interpolate":          GapInterpolate,
		"1":                    GapFlagged,
		"Flagged":              GapFlagged,
		"2":                    GapZeroFilledDemeaned,
		"zero_filled_demeaned": GapZeroFilledDemeaned,
	}
	for in, want := range cases {
		got, err := ParseGapPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseGapPolicy("3")
	assert.True(t, errors.Is(err, ErrInvalidGapMode))
}

func TestGapPolicy_Validate(t *testing.T) {
	assert.NoError(t, GapFlagged.Validate())
	assert.ErrorIs(t, GapPolicy(7).Validate(), ErrInvalidGapMode)

	_, err := GapPolicy(-1).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidGapMode)
}

func TestGapPolicy_TextRoundTrip(t *testing.T) {
	for _, p := range []GapPolicy{GapInterpolate, GapFlagged, GapZeroFilledDemeaned} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var back GapPolicy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}
}

func TestDecodedSegment_EndTime(t *testing.T) {
	start := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	seg := &DecodedSegment{StartTime: start, SampleRate: 200, Samples: make([]float64, 12000)}
	assert.Equal(t, start.Add(60*time.Second), seg.EndTime())
}

func TestSampleOffset(t *testing.T) {
	start := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2000, SampleOffset(start, start.Add(10*time.Second), 200))
	assert.Equal(t, -200, SampleOffset(start, start.Add(-time.Second), 200))
	assert.Equal(t, 1, SampleOffset(start, start.Add(4*time.Millisecond), 200))
}

func TestAssembledTrace_Validity(t *testing.T) {
	tr := &AssembledTrace{Samples: []float64{1, 0, 0, 2}, Valid: []bool{true, false, false, true}}
	assert.Equal(t, 2, tr.InvalidCount())
	assert.False(t, tr.IsValid(1))
	assert.True(t, tr.IsValid(3))

	plain := &AssembledTrace{Samples: []float64{1, 2}}
	assert.True(t, plain.IsValid(0))
	assert.Zero(t, plain.InvalidCount())
}
