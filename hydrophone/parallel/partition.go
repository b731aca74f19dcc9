// Package parallel splits a long time range into chunks, analyses each chunk
// on its own worker and reduces the chunk results in order.
package parallel

import (
	"fmt"
	"time"
)

// Chunk is a half-open time range [Start, End).
type Chunk struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (c Chunk) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// Partition describes how a time range is split into chunks.
type Partition interface {
	Chunks(start, end time.Time) ([]Chunk, error)
}

// EqualChunks splits the range into that many chunks of equal duration.
type EqualChunks int

// Chunks implements Partition.
func (n EqualChunks) Chunks(start, end time.Time) ([]Chunk, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk count must be positive, got %d", int(n))
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end, start)
	}

	span := end.Sub(start)
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			Start: start.Add(share(span, i, int(n))),
			End:   start.Add(share(span, i+1, int(n))),
		}
	}
	return chunks, nil
}

// share returns floor(span*i/n) without forming span*i.
func share(span time.Duration, i, n int) time.Duration {
	q, r := span/time.Duration(n), span%time.Duration(n)
	return q*time.Duration(i) + r*time.Duration(i)/time.Duration(n)
}

// ChunksOf splits the range into chunks of the given duration. The last
// chunk is shorter when the range is not a multiple of it.
type ChunksOf time.Duration

// Chunks implements Partition.
func (d ChunksOf) Chunks(start, end time.Time) ([]Chunk, error) {
	size := time.Duration(d)
	if size <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", size)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end, start)
	}

	var chunks []Chunk
	for s := start; s.Before(end); s = s.Add(size) {
		e := s.Add(size)
		if e.After(end) {
			e = end
		}
		chunks = append(chunks, Chunk{Start: s, End: e})
	}
	return chunks, nil
}

// ExplicitChunks is a caller-supplied list, used as is. The range passed to
// Chunks is ignored.
type ExplicitChunks []Chunk

// Chunks implements Partition.
func (c ExplicitChunks) Chunks(_, _ time.Time) ([]Chunk, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("explicit partition is empty")
	}
	for i, ch := range c {
		if !ch.End.After(ch.Start) {
			return nil, fmt.Errorf("chunk %d: end %s must be after start %s", i, ch.End, ch.Start)
		}
	}
	return append([]Chunk(nil), c...), nil
}
