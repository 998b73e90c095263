package core

import (
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Series is an ordered time series of indicator or price values.
type Series[T constraints.Ordered] []T

// Values returns the underlying slice.
func (s Series[T]) Values() []T { return s }

// Length returns the number of values in the series.
func (s Series[T]) Length() int { return len(s) }

// Last returns the value at a position from the end; 0 is the most recent.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns the trailing 'size' values, or the whole series if shorter.
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// NumDecPlaces returns the number of decimal places in v's shortest representation.
func NumDecPlaces(v float64) int64 {
	str := strconv.FormatFloat(v, 'f', -1, 64)
	i := strings.IndexByte(str, '.')
	if i > -1 {
		return int64(len(str) - i - 1)
	}
	return 0
}
