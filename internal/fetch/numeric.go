package fetch

import "strconv"

// Numeric converts a decoded JSON scalar to float64. Booleans map to 0/1,
// including "true" and "false" strings, and numeric strings are parsed.
// Anything else reports false.
func Numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, true
		}
		b, err := strconv.ParseBool(t)
		if err != nil {
			return 0, false
		}
		if b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// NumericMap keeps the numeric-looking entries of a decoded JSON object.
func NumericMap(raw map[string]any) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := Numeric(v); ok {
			out[k] = f
		}
	}
	return out
}
