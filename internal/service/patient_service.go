package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

type patientRepository interface {
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	Create(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	Delete(ctx context.Context, id string) error
}

// PatientService handles patient use-cases. Every call is scoped to the
// practitioner owning the records.
type PatientService struct {
	repo      patientRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPatientService constructs the patient service.
func NewPatientService(repo patientRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns patients and pagination metadata.
func (s *PatientService) List(ctx context.Context, filter models.PatientFilter) ([]dto.PatientResponse, *models.Pagination, error) {
	patients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patients")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	now := s.now()
	out := make([]dto.PatientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, dto.NewPatientResponse(p, now))
	}
	return out, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, ownerID, id string) (*dto.PatientResponse, error) {
	patient, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewPatientResponse(*patient, s.now())
	return &resp, nil
}

// Create registers a patient for the owner.
func (s *PatientService) Create(ctx context.Context, ownerID string, req dto.CreatePatientRequest) (*dto.PatientResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}
	birth, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	patient := &models.Patient{
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(req.Name),
		Phone:     req.Phone,
		BirthDate: birth,
		Sex:       req.Sex,
		Diagnosis: req.Diagnosis,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create patient")
	}
	resp := dto.NewPatientResponse(*patient, s.now())
	return &resp, nil
}

// Update patches the supplied fields of a patient.
func (s *PatientService) Update(ctx context.Context, ownerID, id string, req dto.UpdatePatientRequest) (*dto.PatientResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}
	patient, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		patient.Phone = req.Phone
	}
	if req.BirthDate != nil {
		if patient.BirthDate, err = parseBirthDate(req.BirthDate); err != nil {
			return nil, err
		}
	}
	if req.Sex != nil {
		patient.Sex = req.Sex
	}
	if req.Diagnosis != nil {
		patient.Diagnosis = req.Diagnosis
	}
	if err := s.repo.Update(ctx, patient); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update patient")
	}
	// Listings carry the patient name.
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	resp := dto.NewPatientResponse(*patient, s.now())
	return &resp, nil
}

// Delete removes a patient together with their appointments and notes.
func (s *PatientService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete patient")
	}
	s.logger.Info("patient deleted", zap.String("patient_id", id), zap.String("owner_id", ownerID))
	invalidateOwnerViews(ctx, s.cache, s.logger, ownerID)
	return nil
}

func (s *PatientService) owned(ctx context.Context, ownerID, id string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
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

func parseBirthDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "birthDate must be YYYY-MM-DD")
	}
	return &t, nil
}
