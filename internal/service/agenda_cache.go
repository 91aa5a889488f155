package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

func occurrenceCacheKey(ownerID, patientID string, start, end time.Time) string {
	if patientID == "" {
		patientID = "all"
	}
	return fmt.Sprintf("agenda:occ:%s:%s:%d:%d", ownerID, patientID, start.Unix(), end.Unix())
}

func dashboardCacheKey(ownerID string, year, month int) string {
	return fmt.Sprintf("agenda:dash:%s:%04d-%02d", ownerID, year, month)
}

// invalidateOwnerViews drops every cached listing and dashboard of an
// owner. It runs synchronously so the next read after a write never sees
// the pre-write agenda.
func invalidateOwnerViews(ctx context.Context, cache *CacheService, logger *zap.Logger, ownerID string) {
	if cache == nil || !cache.Enabled() {
		return
	}
	err := cache.Invalidate(ctx,
		fmt.Sprintf("agenda:occ:%s:*", ownerID),
		fmt.Sprintf("agenda:dash:%s:*", ownerID),
	)
	if err != nil && logger != nil {
		logger.Warn("agenda cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
