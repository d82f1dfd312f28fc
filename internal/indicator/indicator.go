// Package indicator provides technical indicator calculations over price series.
//
// Every function is pure: it takes a series ordered oldest first and returns
// the derived series, also oldest first. A series too short for the requested
// period yields an empty result rather than an error, and callers surface the
// most recent value through Last so that "not computable" stays distinct from 0.
package indicator

import (
	"math"

	"github.com/guregu/null/v6"
)

// Last returns the most recent value of a derived series, or an invalid
// null.Float when the series is empty.
func Last(series []float64) null.Float {
	if len(series) == 0 {
		return null.Float{}
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// Prev returns the value before the most recent one, used for
// day-over-day comparisons such as crossovers and histogram acceleration.
func Prev(series []float64) null.Float {
	if len(series) < 2 {
		return null.Float{}
	}
	return Last(series[:len(series)-1])
}

// tail returns the last n values of s (all of s if it is shorter).
func tail(s []float64, n int) []float64 {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
