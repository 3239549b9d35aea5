package wh23xx

import (
	"fmt"
	"sort"
	"strings"
)

// Observation is one decoded measurement. Valid is false when the console
// reported its "no reading" sentinel; Value is then zero and meaningless.
// Date and Time are set only for current-weather items that carry them.
type Observation struct {
	Value float64
	Valid bool
	Date  string
	Time  string
}

func valid(v float64) Observation {
	return Observation{Value: v, Valid: true}
}

func (o Observation) String() string {
	s := "--"
	if o.Valid {
		s = fmt.Sprintf("%g", o.Value)
	}
	if o.Date != "" {
		s += " " + o.Date
	}
	if o.Time != "" {
		s += " " + o.Time
	}
	return s
}

// Observations maps canonical names (wind_dir, out_temp, rain_totals...) to values
type Observations map[string]Observation

// Value returns the named value and whether it is present and valid
func (o Observations) Value(name string) (float64, bool) {
	obs, ok := o[name]
	if !ok || !obs.Valid {
		return 0, false
	}
	return obs.Value, true
}

// Names returns the observation names in sorted order
func (o Observations) Names() []string {
	names := make([]string, 0, len(o))
	for k := range o {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (o Observations) String() string {
	var sb strings.Builder
	for i, name := range o.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(o[name].String())
	}
	return sb.String()
}
