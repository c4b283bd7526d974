package util

import (
	"strconv"
)

// ToInt64 converts a Lua script reply element to int64.
// Redis returns integers as int64; miniredis and some proxies may hand back
// strings or floats. Anything else yields 0.
func ToInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case uint64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
