package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Sentinel is the legacy wire marker for a metric that could not be computed.
// It only appears in exported CSV text; in memory the state is Unavailable.
const Sentinel = -999

// Value is a metric that is either computed (possibly zero) or unavailable.
// The zero Value is unavailable.
type Value struct {
	v  float64
	ok bool
}

// Known wraps a computed number. NaN and infinities are treated as unavailable.
func Known(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{v: f, ok: true}
}

func Unavailable() Value { return Value{} }

// FromWire decodes the CSV representation, mapping the legacy sentinel back.
func FromWire(f float64) Value {
	if f == Sentinel {
		return Value{}
	}
	return Known(f)
}

func (v Value) Float() (float64, bool) { return v.v, v.ok }
func (v Value) IsKnown() bool          { return v.ok }

// Or returns the number, or def when unavailable.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

// Wire is the CSV representation: the number, or the sentinel.
func (v Value) Wire() float64 {
	if !v.ok {
		return Sentinel
	}
	return v.v
}

func (v Value) Equal(o Value) bool {
	if v.ok != o.ok {
		return false
	}
	return !v.ok || v.v == o.v
}

func (v Value) String() string {
	if !v.ok {
		return "-"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Known(f)
	return nil
}

// Sum adds the known values; unavailable ones contribute 0.
func Sum(vs ...Value) float64 {
	var total float64
	for _, v := range vs {
		total += v.Or(0)
	}
	return total
}
