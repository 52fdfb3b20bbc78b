package metrics

import "math"

// Direction describes how a metric moved between two reports.
type Direction string

const (
	DirectionIncrease    Direction = "increase"
	DirectionDecrease    Direction = "decrease"
	DirectionUnchanged   Direction = "unchanged"
	DirectionUnavailable Direction = "unavailable"
)

const epsilon = 1e-9

// ComparisonSet selects the metric names to compare. The zero value is the
// open set: every name found in either report.
type ComparisonSet struct {
	names []string
}

// OpenSet compares every metric present in either report.
func OpenSet() ComparisonSet {
	return ComparisonSet{}
}

// FixedSet compares only the given names, in the given order. Names are
// canonicalized, so "Hb" selects Hemoglobin.
func FixedSet(names ...string) ComparisonSet {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := CanonicalName(n)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return ComparisonSet{names: out}
}

// Open reports whether s is the open set.
func (s ComparisonSet) Open() bool {
	return len(s.names) == 0
}

// Names returns the fixed names, nil for the open set.
func (s ComparisonSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Delta is the change of one metric between two reports. Pointer fields are
// nil when the metric is missing on that side.
type Delta struct {
	Name           string    `json:"name"`
	Unit           string    `json:"unit,omitempty"`
	PreviousValue  *float64  `json:"previousValue,omitempty"`
	CurrentValue   *float64  `json:"currentValue,omitempty"`
	Delta          *float64  `json:"delta,omitempty"`
	Direction      Direction `json:"direction"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	CurrentStatus  Status    `json:"currentStatus,omitempty"`
}

// Compare diffs previous against current for every name in set that appears
// in at least one of them. When a name occurs more than once in a report its
// last occurrence is used.
//
// Output order: set order for a fixed set; for the open set, names in
// current-report order followed by names found only in previous.
func Compare(previous, current []Metric, set ComparisonSet) []Delta {
	prev, prevOrder := lastByName(previous)
	cur, curOrder := lastByName(current)

	var names []string
	if set.Open() {
		names = append(names, curOrder...)
		for _, n := range prevOrder {
			if _, ok := cur[n]; !ok {
				names = append(names, n)
			}
		}
	} else {
		names = set.names
	}

	out := make([]Delta, 0, len(names))
	for _, n := range names {
		p, hasPrev := prev[n]
		c, hasCur := cur[n]
		if !hasPrev && !hasCur {
			continue
		}
		out = append(out, diff(n, p, hasPrev, c, hasCur))
	}
	return out
}

func diff(name string, p Metric, hasPrev bool, c Metric, hasCur bool) Delta {
	d := Delta{Name: name, Direction: DirectionUnavailable}
	if hasPrev {
		v := p.Value
		d.PreviousValue = &v
		d.PreviousStatus = p.Status
		d.Unit = p.Unit
	}
	if hasCur {
		v := c.Value
		d.CurrentValue = &v
		d.CurrentStatus = c.Status
		if c.Unit != "" {
			d.Unit = c.Unit
		}
	}
	if hasPrev && hasCur {
		delta := c.Value - p.Value
		d.Delta = &delta
		switch {
		case math.Abs(delta) <= epsilon:
			d.Direction = DirectionUnchanged
		case delta > 0:
			d.Direction = DirectionIncrease
		default:
			d.Direction = DirectionDecrease
		}
	}
	return d
}

// lastByName indexes metrics by canonical name keeping the last occurrence,
// and returns the names in first-seen order.
func lastByName(ms []Metric) (map[string]Metric, []string) {
	byName := make(map[string]Metric, len(ms))
	order := make([]string, 0, len(ms))
	for _, m := range ms {
		n := CanonicalName(m.Name)
		if _, seen := byName[n]; !seen {
			order = append(order, n)
		}
		byName[n] = m
	}
	return byName, order
}
