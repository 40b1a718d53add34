package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
)

const (
	testDatabase   = "campus"
	testCollection = "notifications"
	testTopic      = "databases.campus.collections.notifications.documents"
)

// fakeGateway serves a fixed seed. When gate is set, seeding blocks until
// the test closes it.
type fakeGateway struct {
	mu      sync.Mutex
	items   map[string][]models.Notification
	unread  map[string]int
	listErr error
	gate    chan struct{}
	seeds   int
	marked  []string
	markErr error
	markAll error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{items: map[string][]models.Notification{}, unread: map[string]int{}}
}

func (g *fakeGateway) ListNotifications(ctx context.Context, userID string, _ int) ([]models.Notification, error) {
	g.mu.Lock()
	gate := g.gate
	g.seeds++
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]models.Notification(nil), g.items[userID]...), nil
}

func (g *fakeGateway) CountUnread(_ context.Context, userID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unread[userID], nil
}

func (g *fakeGateway) MarkRead(_ context.Context, _ string, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.markErr != nil {
		return g.markErr
	}
	g.marked = append(g.marked, id)
	return nil
}

func (g *fakeGateway) MarkAllRead(context.Context, string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.markAll != nil {
		return 0, g.markAll
	}
	return g.unread["u1"], nil
}

func (g *fakeGateway) seedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seeds
}

func (g *fakeGateway) setGate(ch chan struct{}) {
	g.mu.Lock()
	g.gate = ch
	g.mu.Unlock()
}

type fakeImpactGateway struct {
	metrics    *models.ImpactMetrics
	activities []models.RecentActivity
}

func (g *fakeImpactGateway) FetchCurrentMetrics(context.Context) (*models.ImpactMetrics, error) {
	if g.metrics == nil {
		return nil, service.ErrNotFound
	}
	return g.metrics, nil
}

func (g *fakeImpactGateway) FetchRecentActivities(context.Context, int) ([]models.RecentActivity, error) {
	return g.activities, nil
}

var (
	baseTime    = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	beforeCount = baseTime.Add(30 * time.Second)
	countTime   = baseTime.Add(time.Minute)
	afterCount  = baseTime.Add(2 * time.Minute)
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func readAt(n models.Notification, at time.Time) models.Notification {
	n.ReadAt = &at
	return n
}

func createdAt(n models.Notification, at time.Time) models.Notification {
	n.CreatedAt = at
	return n
}

func notification(id, recipient string, read bool) models.Notification {
	return models.Notification{
		ID:          id,
		Type:        models.NotificationTaskReminder,
		Priority:    models.PriorityMedium,
		Title:       "Water bowls at hostel 4",
		RecipientID: recipient,
		Read:        read,
		CreatedAt:   baseTime,
	}
}

func testBackoff() realtime.Backoff {
	return realtime.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond, MaxAttempts: 50}
}

func publish(t *testing.T, hub *realtime.Hub, topic string, action realtime.Action, id string, doc any) {
	t.Helper()
	ev, err := realtime.NewEvent(topic, id, action, doc)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	hub.Publish(topic, ev)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func ids(ns []models.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func sameIDs(got []models.Notification, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}
