// Package policy derives a session's last activity instant and classifies
// records for eviction against configured age and inactivity ceilings.
package policy

import (
	"time"

	"github.com/aatumaykin/sessmaint/internal/store"
)

// timestampLayouts are tried in order when parsing string timestamps found
// on a record. The bot writes RFC 3339 via toISOString; older stores carry
// a space-separated variant.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// LastActivity returns the most recent timestamp observable on the record:
// the cart's updatedAt, lastOtpSent, a record-level updatedAt, or a
// timestamp on the last viewed order. A record with no observable timestamp
// is treated as already maximally old (now minus maxAge) so that age-based
// expiry applies to it by default.
func LastActivity(rec *store.Record, now time.Time, maxAge time.Duration) time.Time {
	var last time.Time

	consider := func(t time.Time, ok bool) {
		if ok && t.After(last) {
			last = t
		}
	}

	if rec.Cart != nil && rec.Cart.UpdatedAt != "" {
		consider(parseTimestamp(rec.Cart.UpdatedAt))
	}
	if rec.LastOtpSent != nil {
		consider(time.UnixMilli(*rec.LastOtpSent), true)
	}
	if v, ok := rec.Extra["updatedAt"]; ok {
		consider(timestampValue(v))
	}
	if order, ok := rec.LastViewedOrder.(map[string]any); ok {
		for _, key := range []string{"updatedAt", "createdAt", "date"} {
			if v, ok := order[key]; ok {
				consider(timestampValue(v))
			}
		}
	}

	if last.IsZero() {
		return now.Add(-maxAge)
	}
	return last
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func timestampValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		return parseTimestamp(val)
	case float64:
		// Epoch milliseconds, the only numeric timestamp form the bot writes.
		return time.UnixMilli(int64(val)), true
	}
	return time.Time{}, false
}
