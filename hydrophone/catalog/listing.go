package catalog

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var segmentName = regexp.MustCompile(`YDH-(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?)\.mseed$`)

const segmentTimeLayout = "2006-01-02T15:04:05.999999999"

// ParseSegmentName extracts the start time from a segment file name such as
// "OO-HYVM1--YDH-2017-08-21T00:00:00.000000.mseed".
func ParseSegmentName(name string) (time.Time, bool) {
	m := segmentName.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(segmentTimeLayout, m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// listedSegment is one usable entry of a directory listing.
type listedSegment struct {
	locator string
	start   time.Time
}

// parseListing collects every anchor of an HTML directory index that names a
// segment file. Hrefs are resolved against base. Other entries are skipped.
func parseListing(r io.Reader, base *url.URL) ([]listedSegment, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	seen := make(map[string]bool)
	var out []listedSegment

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if seg, ok := resolveSegment(attr.Val, base); ok && !seen[seg.locator] {
					seen[seg.locator] = true
					out = append(out, seg)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out, nil
}

func resolveSegment(href string, base *url.URL) (listedSegment, bool) {
	if !strings.HasSuffix(href, ".mseed") {
		return listedSegment{}, false
	}
	ref, err := url.Parse(href)
	if err != nil || ref.Opaque != "" {
		// a bare name with a colon parses as scheme:opaque
		ref, err = url.Parse("./" + href)
		if err != nil {
			return listedSegment{}, false
		}
	}
	start, ok := ParseSegmentName(path.Base(ref.Path))
	if !ok {
		return listedSegment{}, false
	}
	return listedSegment{locator: base.ResolveReference(ref).String(), start: start}, true
}
