package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Node identifies a broadband hydrophone and the path parts of its raw data
// directory.
type Node struct {
	Name       string
	Array      string
	Instrument string
}

var nodes = map[string]Node{
	"LJ01D": {Name: "LJ01D", Array: "CE02SHBP", Instrument: "11-HYDBBA106"},
	"LJ01A": {Name: "LJ01A", Array: "RS01SLBS", Instrument: "09-HYDBBA102"},
	"PC01A": {Name: "PC01A", Array: "RS01SBPS", Instrument: "08-HYDBBA103"},
	"PC03A": {Name: "PC03A", Array: "RS03AXPS", Instrument: "08-HYDBBA303"},
	"LJ01C": {Name: "LJ01C", Array: "CE04OSBP", Instrument: "11-HYDBBA105"},
}

// LookupNode resolves a node name. A leading slash is accepted.
func LookupNode(name string) (Node, error) {
	key := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	n, ok := nodes[key]
	if !ok {
		return Node{}, fmt.Errorf("unknown hydrophone node %q (known: %s)", name, strings.Join(NodeNames(), ", "))
	}
	return n, nil
}

// NodeNames returns the known node names in sorted order.
func NodeNames() []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DayPath returns the directory of day relative to the archive root,
// e.g. "CE02SHBP/LJ01D/11-HYDBBA106/2017/08/21/".
func (n Node) DayPath(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%s/%s/%s/%04d/%02d/%02d/", n.Array, n.Name, n.Instrument, day.Year(), int(day.Month()), day.Day())
}
