package fields

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// KeyDelimiter separates "key:value" entries in a room key.
const KeyDelimiter = "|"

// DeriveRoomKey renders the usable values of props for keys as
// "key:value" entries joined by KeyDelimiter, in the order of keys. Only
// strings and numbers are usable; anything else is skipped with a warning.
// The result is empty when nothing is usable.
func DeriveRoomKey(logger *slog.Logger, props map[string]any, keys []string) string {
	if logger == nil {
		logger = slog.Default()
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := props[key]
		rendered, ok := renderValue(value)
		if !ok {
			logger.Warn("room key field is not a string or number", "field", key, "value", value)
			continue
		}
		parts = append(parts, key+":"+rendered)
	}
	return strings.Join(parts, KeyDelimiter)
}

// RoomKey derives the room key for props using every key of t.
func (t Table) RoomKey(logger *slog.Logger, props map[string]any) string {
	return DeriveRoomKey(logger, props, t.Keys())
}

func renderValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		if !isFinite(float64(val)) {
			return "", false
		}
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		if !isFinite(val) {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

// NaN and the infinities have no stable text form across clients.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
