// Package catalog discovers the recording segments published for a
// hydrophone node and selects the ones that cover a time window.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/logging"
	"github.com/lsetiawan/ooipy/metrics"
)

const (
	// DefaultBaseURL is the root of the raw data archive.
	DefaultBaseURL = "https://rawdata.oceanobservatories.org/files"

	// DefaultTimeout bounds a single listing request.
	DefaultTimeout = 60 * time.Second
)

// Descriptor names one remote segment and the interval it is assumed to
// cover.
type Descriptor struct {
	Locator   string
	StartTime time.Time
	EndTime   time.Time
}

// Options configures a Catalog.
type Options struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultOptions returns the public archive with a 60 second timeout.
func DefaultOptions() Options {
	return Options{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
}

// Catalog lists the segments of a node from the archive's HTML directory
// indexes. It is safe for concurrent use.
type Catalog struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// New creates a catalog. A nil logger selects the global logger.
func New(opts Options, logger logging.Logger) (*Catalog, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog base url %q: %w", opts.BaseURL, err)
	}

	return &Catalog{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  logging.OrGlobal(logger).WithFields(logging.Fields{"component": "segment_catalog"}),
	}, nil
}

// ListSegments returns the segments recorded on the UTC day of day, ordered
// by start time. Entries that are not segment files are skipped.
func (c *Catalog) ListSegments(ctx context.Context, nodeName string, day time.Time) ([]Descriptor, error) {
	node, err := LookupNode(nodeName)
	if err != nil {
		return nil, err
	}

	dayURL, err := url.Parse(c.baseURL + "/" + node.DayPath(day))
	if err != nil {
		return nil, fmt.Errorf("failed to build listing url: %w", err)
	}

	logger := c.logger.WithFields(logging.Fields{"node": node.Name, "day": day.UTC().Format(time.DateOnly)})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dayURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordCatalogListing(node.Name, metrics.StatusUnavailable)
		return nil, fmt.Errorf("%w: %s: %v", hydrophone.ErrCatalogUnavailable, dayURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordCatalogListing(node.Name, metrics.StatusNoData)
		return nil, fmt.Errorf("%w: no listing for %s on %s", hydrophone.ErrNoDataAvailable, node.Name, day.UTC().Format(time.DateOnly))
	case resp.StatusCode != http.StatusOK:
		metrics.RecordCatalogListing(node.Name, metrics.StatusUnavailable)
		return nil, fmt.Errorf("%w: %s returned %s", hydrophone.ErrCatalogUnavailable, dayURL, resp.Status)
	}

	listed, err := parseListing(resp.Body, dayURL)
	if err != nil {
		metrics.RecordCatalogListing(node.Name, metrics.StatusUnavailable)
		return nil, fmt.Errorf("%w: %v", hydrophone.ErrCatalogUnavailable, err)
	}
	if len(listed) == 0 {
		metrics.RecordCatalogListing(node.Name, metrics.StatusNoData)
		return nil, fmt.Errorf("%w: empty listing for %s on %s", hydrophone.ErrNoDataAvailable, node.Name, day.UTC().Format(time.DateOnly))
	}

	descs := make([]Descriptor, len(listed))
	for i, seg := range listed {
		descs[i] = Descriptor{Locator: seg.locator, StartTime: seg.start}
	}
	sortDescriptors(descs)
	assignEndTimes(descs)

	metrics.RecordCatalogListing(node.Name, metrics.StatusSuccess)
	logger.Debug("Listed segments", logging.Fields{"segments": len(descs)})

	return descs, nil
}

// ListRange lists every UTC day touched by [start, end). With pad the days
// before and after are listed too so that Select can add neighbours; a
// failure on a padding day is only logged. Days without data are skipped.
// The result is deduplicated by locator and ordered by start time.
func (c *Catalog) ListRange(ctx context.Context, nodeName string, start, end time.Time, pad bool) ([]Descriptor, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", hydrophone.ErrNoDataAvailable, end, start)
	}

	first := startOfDay(start)
	var days []time.Time
	for day := first; day.Before(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}

	var all []Descriptor
	list := func(day time.Time, optional bool) error {
		descs, err := c.ListSegments(ctx, nodeName, day)
		switch {
		case err == nil:
			all = append(all, descs...)
			return nil
		case optional:
			c.logger.Warn("Padding day listing failed", logging.Fields{"day": day.Format(time.DateOnly), "error": err.Error()})
			return nil
		case errors.Is(err, hydrophone.ErrNoDataAvailable):
			c.logger.Info("No segments for day", logging.Fields{"day": day.Format(time.DateOnly)})
			return nil
		default:
			return err
		}
	}

	if pad {
		if err := list(first.AddDate(0, 0, -1), true); err != nil {
			return nil, err
		}
	}
	for _, day := range days {
		if err := list(day, false); err != nil {
			return nil, err
		}
	}
	if pad {
		if err := list(days[len(days)-1].AddDate(0, 0, 1), true); err != nil {
			return nil, err
		}
	}

	all = dedupe(all)
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no segments for %s between %s and %s", hydrophone.ErrNoDataAvailable, nodeName, start, end)
	}
	sortDescriptors(all)

	return all, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endOfDay is the last representable microsecond of t's UTC day.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Microsecond)
}

func sortDescriptors(descs []Descriptor) {
	slices.SortStableFunc(descs, func(a, b Descriptor) int {
		return a.StartTime.Compare(b.StartTime)
	})
}

// assignEndTimes sets each EndTime to the next start on the same UTC day, or
// to the end of the day for the last segment of a day. descs must be sorted.
func assignEndTimes(descs []Descriptor) {
	for i := range descs {
		end := endOfDay(descs[i].StartTime)
		if i+1 < len(descs) && startOfDay(descs[i+1].StartTime).Equal(startOfDay(descs[i].StartTime)) {
			end = descs[i+1].StartTime
		}
		descs[i].EndTime = end
	}
}

func dedupe(descs []Descriptor) []Descriptor {
	seen := make(map[string]bool, len(descs))
	out := descs[:0]
	for _, d := range descs {
		if seen[d.Locator] {
			continue
		}
		seen[d.Locator] = true
		out = append(out, d)
	}
	return out
}
