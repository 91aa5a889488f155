package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

type sessionCounter interface {
	AttendedSessions(ctx context.Context, ownerID string, from, to time.Time) ([]models.SessionCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// DashboardService composes the practitioner's monthly summaries.
type DashboardService struct {
	repo   sessionCounter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo   sessionCounter
	Cache  *CacheService
	Logger *zap.Logger
	Config DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:   params.Repo,
		cache:  params.Cache,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Sessions counts attended sessions per patient for a calendar month in the
// clinic time zone. Zero year and month select the current month.
func (s *DashboardService) Sessions(ctx context.Context, ownerID string, year, month int) (*dto.SessionsReportResponse, bool, error) {
	if year == 0 && month == 0 {
		current := s.now().In(s.cfg.Location)
		year, month = current.Year(), int(current.Month())
	}
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "year is out of range")
	}

	cacheKey := dashboardCacheKey(ownerID, year, month)
	if summary, hit := s.trySessionsCache(ctx, cacheKey); hit {
		return summary, true, nil
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.cfg.Location)
	to := from.AddDate(0, 1, 0)
	rows, err := s.repo.AttendedSessions(ctx, ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	if rows == nil {
		rows = []models.SessionCount{}
	}
	summary := &dto.SessionsReportResponse{Year: year, Month: month, Patients: rows}
	for _, row := range rows {
		summary.Total += row.Sessions
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

func (s *DashboardService) trySessionsCache(ctx context.Context, key string) (*dto.SessionsReportResponse, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached dto.SessionsReportResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
