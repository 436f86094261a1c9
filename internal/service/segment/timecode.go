package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxOffsetMillis is 2^63; rounded milliseconds at or above it do not fit
// in an int64.
const maxOffsetMillis = float64(math.MaxInt64)

// FormatOffset normalizes a provider offset in fractional seconds into
// HH:MM:SS.mmm. Numbers and numeric strings are accepted.
func FormatOffset(v any) (string, error) {
	secs, err := toSeconds(v)
	if err != nil {
		return "", err
	}
	return FormatSeconds(secs)
}

// FormatSeconds renders a non-negative duration since job start as
// HH:MM:SS.mmm, rounding to the nearest millisecond. Hours are not wrapped
// at 24 and widen past two digits when needed.
func FormatSeconds(secs float64) (string, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return "", fmt.Errorf("%w: %v", ErrMalformedOffset, secs)
	}
	rounded := math.Round(secs * 1000)
	if rounded >= maxOffsetMillis {
		return "", fmt.Errorf("%w: %v", ErrMalformedOffset, secs)
	}

	ms := int64(rounded)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60

	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000), nil
}

func toSeconds(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformedOffset, v)
	}
}
