package handlers

// Attribute values arrive as the decoded ZCL types (bool, int64, float64,
// string) or as loosely typed JSON numbers when replayed from the cache.

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	case uint8:
		return t != 0, true
	case float64:
		return t != 0, true
	}
	return false, false
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case float64:
		return int64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	}
	return 0, false
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	if v < 0 {
		return float64(int64(v*10-0.5)) / 10
	}
	return float64(int64(v*10+0.5)) / 10
}

// round3 rounds to three decimal places.
func round3(v float64) float64 {
	if v < 0 {
		return float64(int64(v*1000-0.5)) / 1000
	}
	return float64(int64(v*1000+0.5)) / 1000
}

// round4 rounds to four decimal places.
func round4(v float64) float64 {
	if v < 0 {
		return float64(int64(v*10000-0.5)) / 10000
	}
	return float64(int64(v*10000+0.5)) / 10000
}
