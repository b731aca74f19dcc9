package catalog

import (
	"fmt"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
)

// DefaultCeiling is the largest candidate list Select accepts.
const DefaultCeiling = 1000

// Select returns the descriptors whose [StartTime, EndTime) intersects
// [start, end), in input order. With pad the descriptor immediately before
// the first match and the one immediately after the last match are added
// when they exist. descs must be ordered by start time.
//
// The ceiling applies per UTC day: a day listing more than ceiling
// candidates fails with ErrTooManySegments. A ceiling <= 0 disables the
// check.
func Select(descs []Descriptor, start, end time.Time, pad bool, ceiling int) ([]Descriptor, error) {
	if err := checkCeiling(descs, ceiling); err != nil {
		return nil, err
	}

	first, last := -1, -1
	var picked []int
	for i, d := range descs {
		if d.StartTime.Before(end) && d.EndTime.After(start) {
			if first < 0 {
				first = i
			}
			last = i
			picked = append(picked, i)
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: no segment covers %s to %s", hydrophone.ErrNoDataAvailable,
			start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	}

	out := make([]Descriptor, 0, len(picked)+2)
	if pad && first > 0 {
		out = append(out, descs[first-1])
	}
	for _, i := range picked {
		out = append(out, descs[i])
	}
	if pad && last+1 < len(descs) {
		out = append(out, descs[last+1])
	}
	return out, nil
}

func checkCeiling(descs []Descriptor, ceiling int) error {
	if ceiling <= 0 {
		return nil
	}
	perDay := make(map[time.Time]int)
	for _, d := range descs {
		day := startOfDay(d.StartTime)
		perDay[day]++
		if perDay[day] > ceiling {
			return fmt.Errorf("%w: more than %d candidates on %s", hydrophone.ErrTooManySegments, ceiling, day.Format(time.DateOnly))
		}
	}
	return nil
}
