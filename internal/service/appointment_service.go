package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	"github.com/noah-isme/clinic-agenda-api/internal/recurrence"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

type appointmentStore interface {
	ListInScope(ctx context.Context, scope models.AppointmentScope) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error
	UpdateExceptions(ctx context.Context, exec sqlx.ExtContext, id, exdates string) error
	UpdateSchedule(ctx context.Context, id string, start, end time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error
	Delete(ctx context.Context, id string) error
}

type patientLookup interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Detach operations, used as metric labels.
const (
	DetachOperationMove   = "move"
	DetachOperationStatus = "status"
)

// DetachRequest describes the fate of one occurrence of a series. A zero
// Start or End falls back to the occurrence's own span and an empty Status
// to SCHEDULED.
type DetachRequest struct {
	OriginalStart recurrence.Instant
	Start         recurrence.Instant
	End           recurrence.Instant
	Status        models.AppointmentStatus
	Operation     string
}

// AppointmentServiceConfig tunes the appointment service.
type AppointmentServiceConfig struct {
	CacheTTL time.Duration
}

// AppointmentServiceParams groups the collaborators of AppointmentService.
type AppointmentServiceParams struct {
	Repo      appointmentStore
	Patients  patientLookup
	Tx        txProvider
	Expander  *OccurrenceExpander
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AppointmentServiceConfig
}

// AppointmentService owns series creation, occurrence listing and the
// detach protocol.
type AppointmentService struct {
	repo      appointmentStore
	patients  patientLookup
	tx        txProvider
	expander  *OccurrenceExpander
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AppointmentServiceConfig
}

// NewAppointmentService constructs the appointment service.
func NewAppointmentService(params AppointmentServiceParams) *AppointmentService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	expander := params.Expander
	if expander == nil {
		expander = NewOccurrenceExpander(ExpanderConfig{}, params.Metrics, logger)
	}
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	svc := &AppointmentService{
		repo:      params.Repo,
		patients:  params.Patients,
		tx:        params.Tx,
		expander:  expander,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
	svc.validator.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
		return models.AppointmentStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// Location returns the clinic time zone used to read naive timestamps.
func (s *AppointmentService) Location() *time.Location {
	return s.expander.Location()
}

// Occurrences expands every series of the owner that can touch the window
// and returns the result sorted by start time.
func (s *AppointmentService) Occurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery) ([]models.Occurrence, error) {
	if query.Start.IsZero() || query.End.IsZero() || !query.Start.Before(query.End) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start must be before end")
	}
	loadStart := time.Now()
	series, err := s.repo.ListInScope(ctx, models.AppointmentScope{
		OwnerID:     ownerID,
		PatientID:   query.PatientID,
		WindowStart: query.Start,
		WindowEnd:   query.End,
	})
	s.metrics.ObserveDBQuery("appointments_in_scope", time.Since(loadStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}

	occurrences := s.expander.Expand(series, query.Start, query.End)
	sort.SliceStable(occurrences, func(i, j int) bool {
		si, _ := occurrences[i].Span()
		sj, _ := occurrences[j].Span()
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return occurrences[i].SeriesRef() < occurrences[j].SeriesRef()
	})
	return occurrences, nil
}

// ListOccurrences returns the wire form of a window listing. The boolean
// reports a cache hit.
func (s *AppointmentService) ListOccurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery) (*dto.OccurrenceListResponse, bool, error) {
	key := occurrenceCacheKey(ownerID, query.PatientID, query.Start, query.End)
	if s.cache != nil && s.cache.Enabled() {
		var cached dto.OccurrenceListResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	occurrences, err := s.Occurrences(ctx, ownerID, query)
	if err != nil {
		return nil, false, err
	}
	resp := &dto.OccurrenceListResponse{
		Start:       query.Start.UTC(),
		End:         query.End.UTC(),
		Occurrences: make([]dto.OccurrenceResponse, 0, len(occurrences)),
	}
	for _, occ := range occurrences {
		resp.Occurrences = append(resp.Occurrences, dto.NewOccurrenceResponse(occ))
	}
	if s.cache != nil && s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

// CreateSeries stores a standalone appointment, or a recurring series when
// the request carries a repeat rule.
func (s *AppointmentService) CreateSeries(ctx context.Context, ownerID string, req dto.CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	start, end, err := s.parseSpan(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	status := models.AppointmentStatus(strings.ToUpper(req.Status))
	if status == "" {
		status = models.AppointmentStatusScheduled
	}

	var rule *string
	if req.RRule != nil && strings.TrimSpace(*req.RRule) != "" {
		text := strings.TrimSpace(*req.RRule)
		if err := recurrence.Validate(text, start, s.Location()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidRule.Code, appErrors.ErrInvalidRule.Status, err.Error())
		}
		rule = &text
	}

	patient, err := s.ownedPatient(ctx, ownerID, req.PatientID)
	if err != nil {
		return nil, err
	}

	appointment := &models.Appointment{
		OwnerID:   ownerID,
		PatientID: patient.ID,
		StartTime: start.Time(),
		EndTime:   end.Time(),
		Status:    status,
		RRule:     rule,
	}
	if err := s.repo.Create(ctx, nil, appointment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	appointment.PatientName = patient.Name

	s.logger.Info("appointment created",
		zap.String("appointment_id", appointment.ID),
		zap.String("owner_id", ownerID),
		zap.Bool("recurring", appointment.IsRecurring()),
	)
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return appointment, nil
}

// Get returns a series owned by ownerID.
func (s *AppointmentService) Get(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	return s.owned(ctx, ownerID, id)
}

// Update reschedules a standalone appointment in place.
func (s *AppointmentService) Update(ctx context.Context, ownerID, id string, req dto.UpdateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appointment, err := s.standalone(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	start, end, err := s.parseSpan(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSchedule(ctx, id, start.Time(), end.Time()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	appointment.StartTime = start.Time()
	appointment.EndTime = end.Time()
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return appointment, nil
}

// CheckIn marks a standalone appointment as attended.
func (s *AppointmentService) CheckIn(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	return s.setStatus(ctx, ownerID, id, models.AppointmentStatusAttended)
}

// Cancel marks a standalone appointment as canceled.
func (s *AppointmentService) Cancel(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	return s.setStatus(ctx, ownerID, id, models.AppointmentStatusCanceled)
}

// MarkNoShow marks a standalone appointment as missed.
func (s *AppointmentService) MarkNoShow(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	return s.setStatus(ctx, ownerID, id, models.AppointmentStatusNoShow)
}

// Delete removes a series or standalone appointment together with its notes.
func (s *AppointmentService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return nil
}

// MoveOccurrence detaches one occurrence of a series to a new time slot.
func (s *AppointmentService) MoveOccurrence(ctx context.Context, ownerID, seriesID string, req dto.MoveOccurrenceRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	original, err := s.parseInstant("originalStart", req.OriginalStart)
	if err != nil {
		return nil, err
	}
	start, end, err := s.parseSpan(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return s.Detach(ctx, ownerID, seriesID, DetachRequest{
		OriginalStart: original,
		Start:         start,
		End:           end,
		Status:        models.AppointmentStatusScheduled,
		Operation:     DetachOperationMove,
	})
}

// OverrideOccurrenceStatus detaches one occurrence of a series with a new
// status, keeping its time slot unless one is supplied.
func (s *AppointmentService) OverrideOccurrenceStatus(ctx context.Context, ownerID, seriesID string, req dto.OverrideOccurrenceStatusRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	original, err := s.parseInstant("originalStart", req.OriginalStart)
	if err != nil {
		return nil, err
	}
	detach := DetachRequest{
		OriginalStart: original,
		Status:        models.AppointmentStatus(strings.ToUpper(req.Status)),
		Operation:     DetachOperationStatus,
	}
	if req.Start != nil {
		if detach.Start, err = s.parseInstant("start", *req.Start); err != nil {
			return nil, err
		}
	}
	if req.End != nil {
		if detach.End, err = s.parseInstant("end", *req.End); err != nil {
			return nil, err
		}
	}
	return s.Detach(ctx, ownerID, seriesID, detach)
}

// Detach splits one occurrence off a recurring series: the original start
// joins the series' exception list and a standalone record takes its place.
// Both writes commit together or not at all.
func (s *AppointmentService) Detach(ctx context.Context, ownerID, seriesID string, req DetachRequest) (_ *models.Appointment, err error) {
	if req.OriginalStart.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "originalStart is required")
	}
	status := req.Status
	if status == "" {
		status = models.AppointmentStatusScheduled
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown appointment status")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	series, err := s.repo.LockByID(ctx, tx, seriesID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock appointment")
		return nil, err
	}
	if series.OwnerID != ownerID {
		err = appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		return nil, err
	}
	if !series.IsRecurring() {
		err = appErrors.Clone(appErrors.ErrNotRecurring, "appointment is not recurring")
		return nil, err
	}

	originalStart, originalEnd, spanErr := s.expander.OccurrenceSpan(*series, req.OriginalStart)
	if spanErr != nil {
		var ruleErr *recurrence.InvalidRuleError
		if errors.As(spanErr, &ruleErr) {
			err = appErrors.Wrap(spanErr, appErrors.ErrInvalidRule.Code, appErrors.ErrInvalidRule.Status, "stored repeat rule is invalid")
			return nil, err
		}
		err = appErrors.Wrap(spanErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "originalStart is not an occurrence of the series")
		return nil, err
	}
	start, end := req.Start, req.End
	if start.IsZero() {
		start = originalStart
	}
	if end.IsZero() {
		end = start.Add(originalEnd.Sub(originalStart))
	}
	if !end.After(start) {
		err = appErrors.Clone(appErrors.ErrValidation, "end must be after start")
		return nil, err
	}

	exceptions := recurrence.ParseExceptionSet(derefString(series.ExDates), s.Location())
	text, added := exceptions.Add(req.OriginalStart)
	if !added {
		err = appErrors.Clone(appErrors.ErrAlreadyDetached, "occurrence already detached")
		return nil, err
	}
	if err = s.repo.UpdateExceptions(ctx, tx, series.ID, text); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record exception")
		return nil, err
	}

	record := &models.Appointment{
		OwnerID:   series.OwnerID,
		PatientID: series.PatientID,
		StartTime: start.Time(),
		EndTime:   end.Time(),
		Status:    status,
	}
	if err = s.repo.Create(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create detached appointment")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit detach")
		return nil, err
	}

	record.PatientName = series.PatientName
	s.metrics.RecordDetach(req.Operation)
	s.logger.Info("occurrence detached",
		zap.String("series_id", series.ID),
		zap.String("appointment_id", record.ID),
		zap.String("original_start", req.OriginalStart.String()),
		zap.String("operation", req.Operation),
	)
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return record, nil
}

func (s *AppointmentService) setStatus(ctx context.Context, ownerID, id string, status models.AppointmentStatus) (*models.Appointment, error) {
	appointment, err := s.standalone(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	appointment.Status = status
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return appointment, nil
}

func (s *AppointmentService) owned(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if appointment.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	return appointment, nil
}

// standalone loads an appointment that may be mutated in place. Series with
// a repeat rule must go through Detach first.
func (s *AppointmentService) standalone(ctx context.Context, ownerID, id string) (*models.Appointment, error) {
	appointment, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if appointment.IsRecurring() {
		return nil, appErrors.Clone(appErrors.ErrRecurringSeries, "recurring appointments must be changed per occurrence")
	}
	return appointment, nil
}

func (s *AppointmentService) ownedPatient(ctx context.Context, ownerID, patientID string) (*models.Patient, error) {
	if s.patients == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "patient lookup unavailable")
	}
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if patient.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
	}
	return patient, nil
}

func (s *AppointmentService) parseSpan(rawStart, rawEnd string) (recurrence.Instant, recurrence.Instant, error) {
	start, err := s.parseInstant("start", rawStart)
	if err != nil {
		return recurrence.Instant{}, recurrence.Instant{}, err
	}
	end, err := s.parseInstant("end", rawEnd)
	if err != nil {
		return recurrence.Instant{}, recurrence.Instant{}, err
	}
	if !end.After(start) {
		return recurrence.Instant{}, recurrence.Instant{}, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	return start, end, nil
}

func (s *AppointmentService) parseInstant(field, raw string) (recurrence.Instant, error) {
	at, err := recurrence.ParseInstant(raw, s.Location())
	if err != nil {
		return recurrence.Instant{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+field+" timestamp")
	}
	return at, nil
}
