// Package safe provides helpers for safe numeric conversions with overflow checks.
package safe

import (
	"fmt"
	"math"
)

// Integer lists the integer kinds accepted by the conversion helpers.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Uint32 converts signed or unsigned integers to uint32 with range validation.
func Uint32[T Integer](v T) (uint32, error) {
	if negative(v) || !fitsUint64(v, math.MaxUint32) {
		return 0, fmt.Errorf("value %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// Uint64 converts signed or unsigned integers to uint64 while guarding against negatives.
func Uint64[T Integer](v T) (uint64, error) {
	if negative(v) {
		return 0, fmt.Errorf("value %d out of uint64 range", v)
	}
	return uint64(v), nil
}

// Int64 converts signed or unsigned integers to int64, rejecting unsigned values above math.MaxInt64.
func Int64[T Integer](v T) (int64, error) {
	if !negative(v) && !fitsUint64(v, math.MaxInt64) {
		return 0, fmt.Errorf("value %d out of int64 range", v)
	}
	return int64(v), nil
}

func negative[T Integer](v T) bool {
	return v < 0
}

func fitsUint64[T Integer](v T, limit uint64) bool {
	if negative(v) {
		return false
	}
	return uint64(v) <= limit
}
