package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Instant is an absolute point in time normalised to UTC with second
// precision. It is comparable and safe to use as a map key, so every
// comparison inside the engine goes through it instead of time.Time.
type Instant struct {
	sec int64
	set bool
}

// At normalises t into an Instant. The zero time yields the zero Instant.
func At(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{sec: t.Unix(), set: true}
}

// Unix builds an Instant from seconds since the epoch.
func Unix(sec int64) Instant {
	return Instant{sec: sec, set: true}
}

// IsZero reports whether the instant was never set.
func (i Instant) IsZero() bool { return !i.set }

// Time returns the instant as a UTC time.Time.
func (i Instant) Time() time.Time {
	if !i.set {
		return time.Time{}
	}
	return time.Unix(i.sec, 0).UTC()
}

// In returns the instant expressed in loc.
func (i Instant) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return i.Time().In(loc)
}

// Before reports whether i is strictly earlier than o.
func (i Instant) Before(o Instant) bool { return i.sec < o.sec }

// After reports whether i is strictly later than o.
func (i Instant) After(o Instant) bool { return i.sec > o.sec }

// Add shifts the instant by d, truncated to whole seconds.
func (i Instant) Add(d time.Duration) Instant {
	return Instant{sec: i.sec + int64(d/time.Second), set: true}
}

// Sub returns the duration i-o.
func (i Instant) Sub(o Instant) time.Duration {
	return time.Duration(i.sec-o.sec) * time.Second
}

// Unix returns seconds since the epoch.
func (i Instant) Unix() int64 { return i.sec }

// String renders the canonical RFC 3339 UTC form used for persisted exceptions.
func (i Instant) String() string {
	if !i.set {
		return ""
	}
	return i.Time().Format(time.RFC3339)
}

// Min returns the earlier of a and b.
func Min(a, b Instant) Instant {
	if b.Before(a) {
		return b
	}
	return a
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"20060102T150405Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"20060102T150405",
}

// ParseInstant accepts the ISO-8601 shapes found in stored exception lists and
// request payloads. Values without an offset are read in loc.
func ParseInstant(raw string, loc *time.Location) (Instant, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Instant{}, fmt.Errorf("empty instant")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return At(t), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return At(t), nil
		}
	}
	return Instant{}, fmt.Errorf("unrecognised instant %q", raw)
}
