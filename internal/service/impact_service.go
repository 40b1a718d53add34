package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/repositories"
)

const maxActivityLimit = 50

// ImpactService is the read gateway for the impact dashboard, plus the
// writers coordinators use to feed it.
type ImpactService struct {
	metrics    repositories.MetricsRepository
	activities repositories.ActivityRepository
	validate   *validator.Validate
	now        func() time.Time
	newID      func() string
}

func NewImpactService(metrics repositories.MetricsRepository, activities repositories.ActivityRepository) *ImpactService {
	return &ImpactService{
		metrics:    metrics,
		activities: activities,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// FetchCurrentMetrics returns the latest snapshot, ErrNotFound when none was published.
func (s *ImpactService) FetchCurrentMetrics(ctx context.Context) (*models.ImpactMetrics, error) {
	m, err := s.metrics.Latest(ctx)
	if err != nil {
		return nil, storeError("fetch metrics", err)
	}
	return m, nil
}

// FetchRecentActivities returns up to limit activities, newest first.
func (s *ImpactService) FetchRecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	if limit < 1 {
		limit = models.RecentActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	activities, err := s.activities.Recent(ctx, int64(limit))
	if err != nil {
		return nil, storeError("fetch activities", err)
	}
	return activities, nil
}

// PublishMetrics stores a new snapshot, which replaces the previous one for
// every subscriber.
func (s *ImpactService) PublishMetrics(ctx context.Context, m models.ImpactMetrics) (*models.ImpactMetrics, error) {
	m.ID = s.newID()
	m.LastUpdated = s.now()
	if err := s.validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.metrics.Insert(ctx, &m); err != nil {
		return nil, storeError("publish metrics", err)
	}
	return &m, nil
}

// RecordActivity adds an entry to the feed under a display-sanitized name.
func (s *ImpactService) RecordActivity(ctx context.Context, req models.CreateActivityRequest) (*models.RecentActivity, error) {
	a := &models.RecentActivity{
		ID:          s.newID(),
		Type:        req.Type,
		DisplayName: models.DisplayName(req.Name, req.Anonymous),
		Timestamp:   s.now(),
		Message:     strings.TrimSpace(req.Message),
	}
	if err := s.validate.Struct(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, storeError("record activity", err)
	}
	return a, nil
}
