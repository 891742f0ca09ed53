package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type dashboardRepository interface {
	Totals(ctx context.Context) (*models.DashboardSummary, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService aggregates counters for the admin landing page. Totals
// are cached briefly since the summary tolerates slight staleness.
type DashboardService struct {
	repo     dashboardRepository
	cache    dashboardCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs a DashboardService instance. The cache is
// optional; without it every request hits storage.
func NewDashboardService(repo dashboardRepository, cache dashboardCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns roster and ledger totals, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate dashboard totals")
	}
	summary.GeneratedAt = s.now()

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
