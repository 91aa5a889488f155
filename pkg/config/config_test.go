package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "UTC", cfg.Agenda.Timezone)
	assert.Equal(t, time.UTC, cfg.Agenda.Location)
	assert.Equal(t, DefaultRecurrenceHorizon, cfg.Agenda.Horizon)
	assert.True(t, cfg.Agenda.CacheEnabled)
}

func TestLoadAgendaOverrides(t *testing.T) {
	t.Setenv("CLINIC_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("RECURRENCE_HORIZON", "720h")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	assert.Equal(t, "America/Sao_Paulo", cfg.Agenda.Location.String())
	assert.Equal(t, 720*time.Hour, cfg.Agenda.Horizon)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("CLINIC_TIMEZONE", "Mars/Olympus_Mons")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}
