package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
	"github.com/noah-isme/clinic-agenda-api/internal/recurrence"
)

// ExpanderConfig tunes occurrence expansion.
type ExpanderConfig struct {
	// Location is the clinic zone used for wall-clock rule stepping and for
	// exception entries stored without an offset.
	Location *time.Location
	// Horizon caps expansion at now+Horizon regardless of the window.
	Horizon time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// OccurrenceExpander turns stored series into the concrete occurrences of a
// time window. Callers are responsible for scoping the series they pass in.
type OccurrenceExpander struct {
	loc     *time.Location
	horizon time.Duration
	now     func() time.Time
	metrics *MetricsService
	logger  *zap.Logger
}

// NewOccurrenceExpander constructs an expander.
func NewOccurrenceExpander(cfg ExpanderConfig, metrics *MetricsService, logger *zap.Logger) *OccurrenceExpander {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 2 * 365 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceExpander{loc: cfg.Location, horizon: cfg.Horizon, now: cfg.Now, metrics: metrics, logger: logger}
}

// Location returns the clinic zone.
func (e *OccurrenceExpander) Location() *time.Location { return e.loc }

// Expand returns the occurrences of series within [windowStart, windowEnd).
// Output is series-major: each series' occurrences are ascending but the
// sequence is not globally sorted. A series whose rule cannot be parsed is
// logged and left out.
func (e *OccurrenceExpander) Expand(series []models.Appointment, windowStart, windowEnd time.Time) []models.Occurrence {
	ws, we := recurrence.At(windowStart), recurrence.At(windowEnd)
	if ws.IsZero() || we.IsZero() || !ws.Before(we) {
		return nil
	}
	limit := recurrence.Min(we, recurrence.At(e.now()).Add(e.horizon))

	out := make([]models.Occurrence, 0, len(series))
	virtual, materialized := 0, 0
	for _, s := range series {
		if !s.IsRecurring() {
			if overlaps(recurrence.At(s.StartTime), recurrence.At(s.EndTime), ws, we) {
				out = append(out, models.MaterializedOccurrence{Appointment: s})
				materialized++
			}
			continue
		}

		occurrences, err := e.expandSeries(s, ws, we, limit)
		if err != nil {
			reason := "invalid_rule"
			var ruleErr *recurrence.InvalidRuleError
			if !errors.As(err, &ruleErr) {
				reason = "error"
			}
			e.logger.Warn("skipping series during expansion",
				zap.String("series_id", s.ID),
				zap.String("reason", reason),
				zap.Error(err),
			)
			e.metrics.RecordSkippedSeries(reason)
			continue
		}
		out = append(out, occurrences...)
		virtual += len(occurrences)
	}

	e.metrics.RecordExpansion(virtual, materialized)
	return out
}

// OccurrenceSpan returns the span of the occurrence of series starting at
// originalStart, failing when the rule does not produce that start.
func (e *OccurrenceExpander) OccurrenceSpan(series models.Appointment, originalStart recurrence.Instant) (recurrence.Instant, recurrence.Instant, error) {
	rule, err := recurrence.ParseRule(derefString(series.RRule), recurrence.At(series.StartTime), e.loc)
	if err != nil {
		return recurrence.Instant{}, recurrence.Instant{}, err
	}
	if !rule.Includes(originalStart) {
		return recurrence.Instant{}, recurrence.Instant{}, errNotAnOccurrence
	}
	duration := series.EndTime.Sub(series.StartTime)
	return originalStart, originalStart.Add(duration), nil
}

func (e *OccurrenceExpander) expandSeries(s models.Appointment, windowStart, windowEnd, limit recurrence.Instant) ([]models.Occurrence, error) {
	seriesStart := recurrence.At(s.StartTime)
	duration := recurrence.At(s.EndTime).Sub(seriesStart)
	if duration <= 0 {
		return nil, errors.New("series end is not after start")
	}

	rule, err := recurrence.ParseRule(derefString(s.RRule), seriesStart, e.loc)
	if err != nil {
		return nil, err
	}

	exceptions := recurrence.ParseExceptionSet(derefString(s.ExDates), e.loc)
	if invalid := exceptions.Invalid(); len(invalid) > 0 {
		e.logger.Debug("ignoring unparsable exception entries", zap.String("series_id", s.ID), zap.Strings("entries", invalid))
	}

	// Occurrences that began before the window but still run into it count too.
	candidates := rule.Between(windowStart.Add(-duration), limit)
	out := make([]models.Occurrence, 0, len(candidates))
	for _, at := range candidates {
		end := at.Add(duration)
		if !overlaps(at, end, windowStart, windowEnd) {
			continue
		}
		if exceptions.Contains(at) {
			continue
		}
		out = append(out, synthesizeVirtual(s, at, end))
	}
	return out, nil
}

// synthesizeVirtual builds a virtual occurrence of s. Only these fields are
// carried over from the parent: ID, OwnerID, PatientID, PatientName and Status.
// OriginalStart is the rule instant that identifies the occurrence.
func synthesizeVirtual(s models.Appointment, start, end recurrence.Instant) models.VirtualOccurrence {
	return models.VirtualOccurrence{
		SeriesID:      s.ID,
		OwnerID:       s.OwnerID,
		PatientID:     s.PatientID,
		PatientName:   s.PatientName,
		OriginalStart: start.Time(),
		Start:         start.Time(),
		End:           end.Time(),
		Status:        s.Status,
	}
}

// overlaps is the half-open interval test: touching endpoints do not overlap.
func overlaps(start, end, windowStart, windowEnd recurrence.Instant) bool {
	return start.Before(windowEnd) && end.After(windowStart)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var errNotAnOccurrence = errors.New("instant is not an occurrence of the series")
