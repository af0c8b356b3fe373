package util

import (
	"fmt"
	"math"
)

// ToFloat converts any JSON-ish numeric value into float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// ToInt converts any JSON-ish numeric value into int, truncating fractions.
// NaN, infinities and values outside the int range are rejected.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, fmt.Errorf("number %d out of int range", n)
		}
		return int(n), nil
	}

	f, err := ToFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a finite number, got %v", f)
	}
	f = math.Trunc(f)
	if f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("number %v out of int range", f)
	}
	return int(f), nil
}
