package hydrophone

import "errors"

// Error taxonomy shared by every stage of the pipeline. Callers match with
// errors.Is; stages add context with fmt.Errorf("...: %w").
var (
	// ErrCatalogUnavailable means the remote listing could not be reached.
	// It is recoverable; retry policy belongs to the caller.
	ErrCatalogUnavailable = errors.New("segment catalog unavailable")

	// ErrNoDataAvailable is terminal for a request but is not a bug.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrTooManySegments aborts a request whose candidate list exceeds the
	// configured ceiling.
	ErrTooManySegments = errors.New("too many segments")

	// ErrSegmentDecode marks a single segment that could not be fetched or
	// decoded. It is absorbed by the fetch stage.
	ErrSegmentDecode = errors.New("segment decode failed")

	ErrWindowOutOfRange = errors.New("window out of range")
	ErrInvalidGapMode   = errors.New("invalid gap mode")

	// ErrSpectralCompute reports a bin-count mismatch. The analysis is
	// aborted instead of returning a truncated or padded result.
	ErrSpectralCompute = errors.New("spectral compute error")

	ErrInconsistentFrequencyAxis = errors.New("inconsistent frequency axis")
)
