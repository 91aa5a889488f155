package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// InvalidRuleError reports repeat-rule text that could not be interpreted.
type InvalidRuleError struct {
	Rule string
	Err  error
}

func (e *InvalidRuleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid recurrence rule %q", e.Rule)
	}
	return fmt.Sprintf("invalid recurrence rule %q: %v", e.Rule, e.Err)
}

func (e *InvalidRuleError) Unwrap() error { return e.Err }

// Rule is a parsed repeat rule anchored at a series start. Wall-clock
// stepping happens in the clinic location, so a weekly 09:00 session keeps
// its local hour across daylight-saving transitions.
type Rule struct {
	text    string
	rule    *rrule.RRule
	loc     *time.Location
	bounded bool
}

// ParseRule parses an RRULE value (with or without the "RRULE:" prefix)
// anchored at dtstart.
func ParseRule(text string, dtstart Instant, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.UTC
	}
	normalized, err := normalizeRuleText(text)
	if err != nil {
		return nil, &InvalidRuleError{Rule: text, Err: err}
	}
	if dtstart.IsZero() {
		return nil, &InvalidRuleError{Rule: text, Err: errors.New("series start is required")}
	}

	opt, err := rrule.StrToROptionInLocation(normalized, loc)
	if err != nil {
		return nil, &InvalidRuleError{Rule: text, Err: err}
	}
	opt.Dtstart = dtstart.In(loc)

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &InvalidRuleError{Rule: text, Err: err}
	}

	return &Rule{
		text:    normalized,
		rule:    r,
		loc:     loc,
		bounded: opt.Count > 0 || !opt.Until.IsZero(),
	}, nil
}

// Validate checks that text is an acceptable repeat rule.
func Validate(text string, dtstart Instant, loc *time.Location) error {
	_, err := ParseRule(text, dtstart, loc)
	return err
}

// Expand returns every candidate start of the rule within [from, to].
func Expand(text string, dtstart, from, to Instant, loc *time.Location) ([]Instant, error) {
	r, err := ParseRule(text, dtstart, loc)
	if err != nil {
		return nil, err
	}
	return r.Between(from, to), nil
}

// String returns the normalised rule text.
func (r *Rule) String() string { return r.text }

// Bounded reports whether the rule carries COUNT or UNTIL.
func (r *Rule) Bounded() bool { return r.bounded }

// Between returns candidate starts in [from, to], inclusive on both ends,
// ascending and without duplicates. Callers own any horizon cap.
func (r *Rule) Between(from, to Instant) []Instant {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	times := r.rule.Between(from.In(r.loc), to.In(r.loc), true)
	if len(times) == 0 {
		return nil
	}

	out := make([]Instant, 0, len(times))
	seen := make(map[Instant]struct{}, len(times))
	for _, t := range times {
		at := At(t)
		if _, dup := seen[at]; dup {
			continue
		}
		seen[at] = struct{}{}
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Includes reports whether at is one of the rule's occurrence starts.
func (r *Rule) Includes(at Instant) bool {
	if at.IsZero() {
		return false
	}
	return len(r.Between(at, at)) > 0
}

func normalizeRuleText(text string) (string, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return "", errors.New("rule is empty")
	}
	if strings.ContainsAny(value, "\r\n") {
		return "", errors.New("multi-line rules are not supported")
	}
	value = strings.ToUpper(value)
	value = strings.TrimPrefix(value, "RRULE:")
	value = strings.Trim(value, "; ")
	if !strings.Contains(value, "FREQ=") {
		return "", errors.New("FREQ is required")
	}
	return value, nil
}
