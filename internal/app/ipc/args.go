package ipc

import (
	"encoding/json"
	"math"
	"strconv"
)

// Arg returns the i-th argument.
func (m Message) Arg(i int) (any, bool) {
	if i < 0 || i >= len(m.Args) {
		return nil, false
	}
	return m.Args[i], true
}

// Float returns the i-th argument as a finite number.
// NaN, infinities and non-numeric values report false.
func (m Message) Float(i int) (float64, bool) {
	v, ok := m.Arg(i)
	if !ok {
		return 0, false
	}
	return Number(v)
}

// maxExactInt is the largest integer a float64 represents exactly.
const maxExactInt = 1 << 53

// Int64 returns the i-th argument as an integer.
// Fractional numbers report false.
func (m Message) Int64(i int) (int64, bool) {
	f, ok := m.Float(i)
	if !ok || f != math.Trunc(f) || f > maxExactInt || f < -maxExactInt {
		return 0, false
	}
	return int64(f), true
}

// Int is Int64 narrowed to int.
func (m Message) Int(i int) (int, bool) {
	n, ok := m.Int64(i)
	return int(n), ok
}

// String returns the i-th argument as a string.
func (m Message) String(i int) (string, bool) {
	v, ok := m.Arg(i)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the i-th argument as a bool.
func (m Message) Bool(i int) (bool, bool) {
	v, ok := m.Arg(i)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Number converts a loosely typed value into a finite float64.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
