package services

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const dayKeyLayout = "2006-01-02"

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// decodeJSON unwraps a stored JSON document, returning nil for empty or
// malformed payloads.
func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// dayKey formats a timestamp as its UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// scannedDayKey normalises a day value scanned from a DATE() expression.
// SQLite hands back the bare day, Postgres and MySQL a midnight timestamp;
// the leading ten bytes are the calendar day either way.
func scannedDayKey(raw string) string {
	if len(raw) > len(dayKeyLayout) {
		return raw[:len(dayKeyLayout)]
	}
	return raw
}

// floorToUTCDay truncates a timestamp to UTC midnight.
func floorToUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// normaliseIDs trims, de-duplicates and drops empty identifiers while
// preserving first-seen order.
func normaliseIDs(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsString(values []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.TrimSpace(v) == target
	})
}
