package recurrence

import (
	"sort"
	"strings"
	"time"
)

// ExceptionSet holds the occurrence starts excluded from a series. It is
// stored as comma-joined text; entries that fail to parse are carried
// along untouched but never match anything.
type ExceptionSet struct {
	entries []string
	members map[Instant]struct{}
	invalid []string
}

// ParseExceptionSet reads a stored exception list. It never fails.
func ParseExceptionSet(raw string, loc *time.Location) *ExceptionSet {
	set := &ExceptionSet{members: make(map[Instant]struct{})}
	for _, part := range strings.Split(raw, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		set.entries = append(set.entries, entry)
		at, err := ParseInstant(entry, loc)
		if err != nil {
			set.invalid = append(set.invalid, entry)
			continue
		}
		set.members[at] = struct{}{}
	}
	return set
}

// Contains reports whether at is excluded.
func (s *ExceptionSet) Contains(at Instant) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[at]
	return ok
}

// Add records at as excluded and returns the resulting text. Adding an
// instant already present leaves the text unchanged and reports false.
func (s *ExceptionSet) Add(at Instant) (string, bool) {
	if s.members == nil {
		s.members = make(map[Instant]struct{})
	}
	if at.IsZero() || s.Contains(at) {
		return s.String(), false
	}
	s.members[at] = struct{}{}
	s.entries = append(s.entries, at.String())
	return s.String(), true
}

// String renders the set in its stored form.
func (s *ExceptionSet) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.entries, ",")
}

// Len returns the number of distinct parsable exceptions.
func (s *ExceptionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// Invalid lists stored entries that could not be parsed.
func (s *ExceptionSet) Invalid() []string {
	if s == nil {
		return nil
	}
	return s.invalid
}

// Instants returns the parsable exceptions in ascending order.
func (s *ExceptionSet) Instants() []Instant {
	if s == nil {
		return nil
	}
	out := make([]Instant, 0, len(s.members))
	for at := range s.members {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
