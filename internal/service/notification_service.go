package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/repositories"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100

	markAllConcurrency = 8
)

// PreferencesReader resolves a user's delivery toggles.
type PreferencesReader interface {
	Get(ctx context.Context, userID string) (models.NotificationPreferences, error)
}

// NewNotification describes a notification to raise for one recipient.
type NewNotification struct {
	Type              models.NotificationType
	Priority          models.NotificationPriority
	Title             string
	Message           string
	RecipientID       string
	RelatedEntityID   string
	RelatedEntityType string
	ActionURL         string
	ExpiresAt         *time.Time
}

// NotificationService is the request/response gateway for notifications.
type NotificationService struct {
	repo     repositories.NotificationRepository
	prefs    PreferencesReader
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func NewNotificationService(repo repositories.NotificationRepository, prefs PreferencesReader) *NotificationService {
	return &NotificationService{
		repo:     repo,
		prefs:    prefs,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// ListNotifications returns up to limit notifications for userID, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	notifications, err := s.repo.ListByRecipient(ctx, userID, int64(limit))
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, storeError("count unread", err)
	}
	return int(count), nil
}

// MarkRead is idempotent: an already-read notification succeeds unchanged.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}
	return storeError("mark read", s.repo.MarkRead(ctx, userID, notificationID, s.now()))
}

// MarkAllRead issues one independent write per currently-unread notification
// of userID. It returns how many writes succeeded; when some fail the error
// is a *PartialBatchFailure and the successful writes stand.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ids, err := s.repo.ListUnreadIDs(ctx, userID)
	if err != nil {
		return 0, storeError("list unread", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.now()
	var (
		mu     sync.Mutex
		failed []string
		g      errgroup.Group
	)
	g.SetLimit(markAllConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := s.repo.MarkRead(ctx, userID, id, now)
			if err == nil || errors.Is(err, mongo.ErrNoDocuments) {
				return nil
			}
			mu.Lock()
			failed = append(failed, id)
			mu.Unlock()
			return err
		})
	}
	if first := g.Wait(); first != nil {
		return len(ids) - len(failed), &PartialBatchFailure{
			Attempted: len(ids),
			Failed:    failed,
			First:     storeError("mark read", first),
		}
	}
	return len(ids), nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	return storeError("delete notification", s.repo.Delete(ctx, userID, notificationID))
}

// Notify stores a notification unless the recipient switched off its
// category. A suppressed notification returns nil, nil.
func (s *NotificationService) Notify(ctx context.Context, in NewNotification) (*models.Notification, error) {
	if s.prefs != nil {
		prefs, err := s.prefs.Get(ctx, in.RecipientID)
		if err != nil {
			log.Printf("Preferences lookup for %s failed, delivering anyway: %v", in.RecipientID, err)
		} else if !prefs.Allows(in.Type) {
			return nil, nil
		}
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	n := &models.Notification{
		ID:                s.newID(),
		Type:              in.Type,
		Priority:          priority,
		Title:             strings.TrimSpace(in.Title),
		Message:           strings.TrimSpace(in.Message),
		RecipientID:       in.RecipientID,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
		ActionURL:         in.ActionURL,
		CreatedAt:         s.now(),
		ExpiresAt:         in.ExpiresAt,
	}
	if err := s.validate.Struct(n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, storeError("create notification", err)
	}
	return n, nil
}

// Broadcast raises req for every recipient. Recipients that suppressed the
// category are skipped; the first store failure aborts the remainder.
func (s *NotificationService) Broadcast(ctx context.Context, req models.CreateNotificationRequest) ([]models.Notification, int, error) {
	created := make([]models.Notification, 0, len(req.RecipientIDs))
	skipped := 0
	for _, recipientID := range req.RecipientIDs {
		n, err := s.Notify(ctx, NewNotification{
			Type:              req.Type,
			Priority:          req.Priority,
			Title:             req.Title,
			Message:           req.Message,
			RecipientID:       recipientID,
			RelatedEntityID:   req.RelatedEntityID,
			RelatedEntityType: req.RelatedEntityType,
			ActionURL:         req.ActionURL,
			ExpiresAt:         req.ExpiresAt,
		})
		if err != nil {
			return created, skipped, err
		}
		if n == nil {
			skipped++
			continue
		}
		created = append(created, *n)
	}
	return created, skipped, nil
}

func (s *NotificationService) NotifyTaskAssigned(ctx context.Context, volunteerID, taskID, taskTitle string) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:              models.NotificationTaskAssigned,
		Title:             "New task assigned",
		Message:           "You have been assigned: " + taskTitle,
		RecipientID:       volunteerID,
		RelatedEntityID:   taskID,
		RelatedEntityType: "task",
		ActionURL:         "/tasks/" + taskID,
	})
}

func (s *NotificationService) NotifyTaskReminder(ctx context.Context, volunteerID, taskID, taskTitle string, due time.Time) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:              models.NotificationTaskReminder,
		Priority:          models.PriorityHigh,
		Title:             "Task due soon",
		Message:           fmt.Sprintf("%s is due %s", taskTitle, due.Format("Mon 2 Jan 15:04")),
		RecipientID:       volunteerID,
		RelatedEntityID:   taskID,
		RelatedEntityType: "task",
		ActionURL:         "/tasks/" + taskID,
		ExpiresAt:         &due,
	})
}

func (s *NotificationService) NotifyTaskCompleted(ctx context.Context, coordinatorID, taskID, taskTitle, volunteerName string) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:              models.NotificationTaskCompleted,
		Priority:          models.PriorityLow,
		Title:             "Task completed",
		Message:           models.DisplayName(volunteerName, false) + " completed " + taskTitle,
		RecipientID:       coordinatorID,
		RelatedEntityID:   taskID,
		RelatedEntityType: "task",
		ActionURL:         "/tasks/" + taskID,
	})
}

func (s *NotificationService) NotifyMedicalAlert(ctx context.Context, recipientID, animalID, animalName, detail string) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:              models.NotificationMedicalAlert,
		Priority:          models.PriorityUrgent,
		Title:             "Medical alert: " + animalName,
		Message:           detail,
		RecipientID:       recipientID,
		RelatedEntityID:   animalID,
		RelatedEntityType: "animal",
		ActionURL:         "/animals/" + animalID + "/medical",
	})
}

func (s *NotificationService) NotifyMedicalFollowup(ctx context.Context, recipientID, recordID, animalName string, due time.Time) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:              models.NotificationMedicalFollowup,
		Priority:          models.PriorityHigh,
		Title:             "Follow-up due for " + animalName,
		Message:           "Medical follow-up scheduled for " + due.Format("Mon 2 Jan"),
		RecipientID:       recipientID,
		RelatedEntityID:   recordID,
		RelatedEntityType: "medical_record",
	})
}

func (s *NotificationService) NotifyVolunteerUpdate(ctx context.Context, recipientID, title, message string) (*models.Notification, error) {
	return s.Notify(ctx, NewNotification{
		Type:        models.NotificationVolunteerUpdate,
		Priority:    models.PriorityLow,
		Title:       title,
		Message:     message,
		RecipientID: recipientID,
	})
}

// Announce sends a system announcement to every recipient.
func (s *NotificationService) Announce(ctx context.Context, recipientIDs []string, title, message string) ([]models.Notification, int, error) {
	return s.Broadcast(ctx, models.CreateNotificationRequest{
		Type:         models.NotificationSystemAnnouncement,
		Priority:     models.PriorityMedium,
		Title:        title,
		Message:      message,
		RecipientIDs: recipientIDs,
	})
}
