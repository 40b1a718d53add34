package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/middleware"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/validators"
)

const testSecret = "handler-secret"

type fakeNotifications struct {
	mu      sync.Mutex
	items   map[string][]models.Notification
	marked  []string
	markAll error
	listErr error
	created []models.CreateNotificationRequest
	deleted []string
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{items: map[string][]models.Notification{}}
}

func (f *fakeNotifications) ListNotifications(_ context.Context, userID string, _ int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Notification(nil), f.items[userID]...), nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.items[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items[userID] {
		if n.ID == id {
			f.marked = append(f.marked, id)
			return nil
		}
	}
	return service.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(context.Context, string) (int, error) {
	if f.markAll != nil {
		return 1, f.markAll
	}
	return 2, nil
}

func (f *fakeNotifications) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeNotifications) Broadcast(_ context.Context, req models.CreateNotificationRequest) ([]models.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	out := make([]models.Notification, 0, len(req.RecipientIDs))
	for _, r := range req.RecipientIDs {
		out = append(out, notification("new-"+r, r, false))
	}
	return out, 0, nil
}

type fakePreferences struct {
	prefs   map[string]models.NotificationPreferences
	devices []models.DeviceToken
}

func (f *fakePreferences) Get(_ context.Context, userID string) (models.NotificationPreferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(userID), nil
}

func (f *fakePreferences) Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.NotificationPreferences, error) {
	p, _ := f.Get(ctx, userID)
	req.Apply(&p)
	f.prefs[userID] = p
	return p, nil
}

func (f *fakePreferences) RegisterDevice(_ context.Context, userID string, req models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	d := models.DeviceToken{UserID: userID, Token: req.Token, Platform: req.Platform}
	f.devices = append(f.devices, d)
	return &d, nil
}

func (f *fakePreferences) RemoveDevice(context.Context, string, string) error {
	return service.ErrNotFound
}

func (f *fakePreferences) Devices(context.Context, string) ([]models.DeviceToken, error) {
	return f.devices, nil
}

type fakeImpact struct {
	metrics    *models.ImpactMetrics
	activities []models.RecentActivity
}

func (f *fakeImpact) FetchCurrentMetrics(context.Context) (*models.ImpactMetrics, error) {
	if f.metrics == nil {
		return nil, service.ErrNotFound
	}
	return f.metrics, nil
}

func (f *fakeImpact) FetchRecentActivities(context.Context, int) ([]models.RecentActivity, error) {
	return f.activities, nil
}

func (f *fakeImpact) PublishMetrics(_ context.Context, m models.ImpactMetrics) (*models.ImpactMetrics, error) {
	m.ID = "m-new"
	f.metrics = &m
	return &m, nil
}

func (f *fakeImpact) RecordActivity(_ context.Context, req models.CreateActivityRequest) (*models.RecentActivity, error) {
	a := models.RecentActivity{ID: "a-new", Type: req.Type, DisplayName: models.DisplayName(req.Name, req.Anonymous), Timestamp: time.Now()}
	f.activities = append([]models.RecentActivity{a}, f.activities...)
	return &a, nil
}

func notification(id, recipient string, read bool) models.Notification {
	return models.Notification{
		ID:          id,
		Type:        models.NotificationVolunteerUpdate,
		Priority:    models.PriorityLow,
		Title:       "Shift roster published",
		RecipientID: recipient,
		Read:        read,
		CreatedAt:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := middleware.NewJWTVerifier(testSecret).SignToken(
		models.Identity{UserID: userID, Role: role},
		jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type testServer struct {
	e             *echo.Echo
	notifications *fakeNotifications
	preferences   *fakePreferences
	impact        *fakeImpact
}

func newTestServer() *testServer {
	s := &testServer{
		e:             echo.New(),
		notifications: newFakeNotifications(),
		preferences:   &fakePreferences{prefs: map[string]models.NotificationPreferences{}},
		impact:        &fakeImpact{},
	}
	s.e.Validator = validators.NewValidator()
	api := s.e.Group("/api/v1", middleware.Auth(middleware.NewJWTVerifier(testSecret)))
	NewNotificationHandler(s.notifications).RegisterNotificationRoutes(api)
	NewPreferencesHandler(s.preferences).RegisterPreferencesRoutes(api)
	NewImpactHandler(s.impact).RegisterImpactRoutes(api)
	return s
}
