package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AsString converts a loaded value to a string.
// Only strings and byte slices are accepted; other types are an error so that a
// numeric value never silently stands in for a textual one.
func AsString(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("expected string, got null")
	default:
		return "", fmt.Errorf("expected string, got %T", val)
	}
}

// AsInt64 converts a loaded value to an int64 using explicit type switching.
// It handles the integer types, integral floats (as produced by JSON decoding),
// json.Number, and decimal strings or byte slices.
func AsInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case float32:
		return AsInt64(float64(v))
	case json.Number:
		return v.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", v)
		}
		return i, nil
	case []byte:
		return AsInt64(string(v))
	case nil:
		return 0, fmt.Errorf("expected integer, got null")
	default:
		return 0, fmt.Errorf("expected integer, got %T", val)
	}
}

// AsBool converts a loaded value to a bool.
// It handles bool, the integers 0 and 1, and the strings accepted by strconv.ParseBool.
func AsBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		i, err := AsInt64(v)
		if err != nil {
			return false, err
		}
		switch i {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("value %d is not a boolean", i)
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("value %q is not a boolean", v)
		}
		return b, nil
	case []byte:
		return AsBool(string(v))
	case nil:
		return false, fmt.Errorf("expected boolean, got null")
	default:
		return false, fmt.Errorf("expected boolean, got %T", val)
	}
}
