package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(year int, month time.Month, day, hour, min int) Instant {
	return At(time.Date(year, month, day, hour, min, 0, 0, time.UTC))
}

func TestParseRuleWeeklyCount(t *testing.T) {
	rule, err := ParseRule("FREQ=WEEKLY;COUNT=4", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)
	assert.True(t, rule.Bounded())

	got := rule.Between(utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	assert.Equal(t, []Instant{
		utc(2024, 1, 1, 9, 0),
		utc(2024, 1, 8, 9, 0),
		utc(2024, 1, 15, 9, 0),
		utc(2024, 1, 22, 9, 0),
	}, got)
}

func TestRuleBetweenIsInclusive(t *testing.T) {
	rule, err := ParseRule("FREQ=WEEKLY", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)
	assert.False(t, rule.Bounded())

	got := rule.Between(utc(2024, 1, 8, 9, 0), utc(2024, 1, 15, 9, 0))
	assert.Equal(t, []Instant{utc(2024, 1, 8, 9, 0), utc(2024, 1, 15, 9, 0)}, got)
}

func TestRuleBetweenEmptyWhenWindowInverted(t *testing.T) {
	rule, err := ParseRule("FREQ=DAILY", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, rule.Between(utc(2024, 2, 1, 0, 0), utc(2024, 1, 1, 0, 0)))
}

func TestRuleUntil(t *testing.T) {
	got, err := Expand("FREQ=DAILY;UNTIL=20240103T090000Z", utc(2024, 1, 1, 9, 0), utc(2024, 1, 1, 0, 0), utc(2024, 2, 1, 0, 0), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []Instant{utc(2024, 1, 1, 9, 0), utc(2024, 1, 2, 9, 0), utc(2024, 1, 3, 9, 0)}, got)
}

func TestRuleAcceptsPrefixAndLowercase(t *testing.T) {
	rule, err := ParseRule("rrule:freq=daily;count=2", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "FREQ=DAILY;COUNT=2", rule.String())
	assert.Len(t, rule.Between(utc(2024, 1, 1, 0, 0), utc(2024, 12, 31, 0, 0)), 2)
}

func TestRuleByDay(t *testing.T) {
	rule, err := ParseRule("FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)
	got := rule.Between(utc(2024, 1, 1, 0, 0), utc(2024, 1, 31, 0, 0))
	assert.Equal(t, []Instant{
		utc(2024, 1, 1, 9, 0),
		utc(2024, 1, 3, 9, 0),
		utc(2024, 1, 8, 9, 0),
		utc(2024, 1, 10, 9, 0),
	}, got)
}

func TestParseRuleInvalid(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{name: "empty", rule: "   "},
		{name: "no frequency", rule: "NOT A RULE"},
		{name: "unknown frequency", rule: "FREQ=SOMETIMES"},
		{name: "unknown property", rule: "FREQ=DAILY;FOO=BAR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRule(tt.rule, utc(2024, 1, 1, 9, 0), time.UTC)
			require.Error(t, err)
			var ruleErr *InvalidRuleError
			assert.True(t, errors.As(err, &ruleErr))
			assert.Equal(t, tt.rule, ruleErr.Rule)
		})
	}
}

func TestParseRuleRequiresStart(t *testing.T) {
	err := Validate("FREQ=DAILY", Instant{}, time.UTC)
	var ruleErr *InvalidRuleError
	assert.True(t, errors.As(err, &ruleErr))
}

func TestRuleIncludes(t *testing.T) {
	rule, err := ParseRule("FREQ=DAILY", utc(2024, 1, 1, 9, 0), time.UTC)
	require.NoError(t, err)

	assert.True(t, rule.Includes(utc(2024, 1, 3, 9, 0)))
	assert.False(t, rule.Includes(utc(2024, 1, 3, 10, 0)))
	assert.False(t, rule.Includes(utc(2023, 12, 31, 9, 0)))
	assert.False(t, rule.Includes(Instant{}))
}

func TestRuleKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	start := At(time.Date(2024, 3, 4, 9, 0, 0, 0, loc))

	got, err := Expand("FREQ=WEEKLY;COUNT=2", start, start, utc(2024, 4, 1, 0, 0), loc)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, utc(2024, 3, 4, 14, 0), got[0])
	assert.Equal(t, utc(2024, 3, 11, 13, 0), got[1])
	assert.Equal(t, 9, got[1].In(loc).Hour())
}
