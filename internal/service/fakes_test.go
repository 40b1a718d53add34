package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type fakeNotificationRepo struct {
	mu        sync.Mutex
	docs      map[string]models.Notification
	markCalls []string
	failMark  map[string]error
	failList  error
}

func newFakeNotificationRepo(docs ...models.Notification) *fakeNotificationRepo {
	r := &fakeNotificationRepo{docs: map[string]models.Notification{}, failMark: map[string]error{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[n.ID] = *n
	return nil
}

func (r *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID string, limit int64) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	out := []models.Notification{}
	for _, d := range r.docs {
		if d.RecipientID == recipientID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, recipientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.docs {
		if d.RecipientID == recipientID && !d.Read {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) ListUnreadIDs(_ context.Context, recipientID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, d := range r.docs {
		if d.RecipientID == recipientID && !d.Read {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, recipientID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls = append(r.markCalls, id)
	if err := r.failMark[id]; err != nil {
		return err
	}
	d, ok := r.docs[id]
	if !ok || d.RecipientID != recipientID {
		return mongo.ErrNoDocuments
	}
	if !d.Read {
		d.Read = true
		d.ReadAt = &at
		r.docs[id] = d
	}
	return nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.RecipientID != recipientID {
		return mongo.ErrNoDocuments
	}
	delete(r.docs, id)
	return nil
}

type fakePrefs struct {
	byUser map[string]models.NotificationPreferences
	err    error
}

func (p *fakePrefs) Get(_ context.Context, userID string) (models.NotificationPreferences, error) {
	if p.err != nil {
		return models.NotificationPreferences{}, p.err
	}
	if prefs, ok := p.byUser[userID]; ok {
		return prefs, nil
	}
	return models.DefaultPreferences(userID), nil
}

type fakePrefsRepo struct {
	rows map[string]models.NotificationPreferences
}

func (r *fakePrefsRepo) GetByUserID(_ context.Context, userID string) (*models.NotificationPreferences, error) {
	p, ok := r.rows[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *fakePrefsRepo) Upsert(_ context.Context, prefs *models.NotificationPreferences) error {
	r.rows[prefs.UserID] = *prefs
	return nil
}

type fakeDeviceRepo struct {
	tokens    map[string]models.DeviceToken
	forgotten []string
}

func (r *fakeDeviceRepo) Register(_ context.Context, token *models.DeviceToken) error {
	r.tokens[token.Token] = *token
	return nil
}

func (r *fakeDeviceRepo) ListByUserID(_ context.Context, userID string) ([]models.DeviceToken, error) {
	var out []models.DeviceToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (r *fakeDeviceRepo) Delete(_ context.Context, userID, token string) error {
	t, ok := r.tokens[token]
	if !ok || t.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *fakeDeviceRepo) DeleteToken(_ context.Context, token string) error {
	r.forgotten = append(r.forgotten, token)
	delete(r.tokens, token)
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []*messaging.Message
	fail map[string]error
}

func (m *fakeMessenger) Send(_ context.Context, msg *messaging.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[msg.Token]; err != nil {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return "projects/test/messages/1", nil
}

var errBoom = errors.New("connection reset")

func note(id, recipient string, read bool, age time.Duration) models.Notification {
	return models.Notification{
		ID:          id,
		Type:        models.NotificationTaskReminder,
		Priority:    models.PriorityMedium,
		Title:       "Feed the colony at Block C",
		RecipientID: recipient,
		Read:        read,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

type fakeMetricsRepo struct {
	latest *models.ImpactMetrics
	err    error
}

func (r *fakeMetricsRepo) Latest(context.Context) (*models.ImpactMetrics, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.latest == nil {
		return nil, mongo.ErrNoDocuments
	}
	return r.latest, nil
}

func (r *fakeMetricsRepo) Insert(_ context.Context, m *models.ImpactMetrics) error {
	r.latest = m
	return nil
}

type fakeActivityRepo struct {
	items []models.RecentActivity
	limit int64
}

func (r *fakeActivityRepo) Recent(_ context.Context, limit int64) ([]models.RecentActivity, error) {
	r.limit = limit
	out := append([]models.RecentActivity(nil), r.items...)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeActivityRepo) Create(_ context.Context, a *models.RecentActivity) error {
	r.items = append([]models.RecentActivity{*a}, r.items...)
	return nil
}
