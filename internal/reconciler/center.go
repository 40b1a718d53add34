package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
)

// NotificationCenter is the read/write surface rendering code binds to.
//
// By default intents only reach the gateway and local state changes when the
// resulting update event arrives, keeping the event stream the single source
// of truth. With Optimistic set, an acknowledged write is also applied
// locally at once; the later event is then a no-op because application is an
// idempotent upsert. A failed intent never changes local state.
type NotificationCenter struct {
	Optimistic bool

	reconciler *NotificationReconciler
	gateway    NotificationGateway
	now        func() time.Time
}

func NewNotificationCenter(r *NotificationReconciler) *NotificationCenter {
	return &NotificationCenter{
		reconciler: r,
		gateway:    r.gateway,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *NotificationCenter) Notifications() []models.Notification {
	return c.reconciler.Snapshot().Notifications
}

func (c *NotificationCenter) UnreadCount() int {
	return c.reconciler.Snapshot().UnreadCount
}

func (c *NotificationCenter) Loading() bool {
	return c.reconciler.Snapshot().Loading
}

func (c *NotificationCenter) Snapshot() NotificationSnapshot {
	return c.reconciler.Snapshot()
}

func (c *NotificationCenter) Changes() <-chan struct{} {
	return c.reconciler.Changes()
}

func (c *NotificationCenter) MarkNotificationAsRead(ctx context.Context, id string) error {
	userID := c.reconciler.UserID()
	if userID == "" {
		return ErrNotStarted
	}
	if err := c.gateway.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	if c.Optimistic {
		c.reconciler.markLocal(map[string]struct{}{id: {}}, c.now())
	}
	return nil
}

// MarkAllNotificationsAsRead returns the gateway's error unchanged, so a
// partial failure arrives as *service.PartialBatchFailure.
func (c *NotificationCenter) MarkAllNotificationsAsRead(ctx context.Context) error {
	userID := c.reconciler.UserID()
	if userID == "" {
		return ErrNotStarted
	}
	var ids map[string]struct{}
	if c.Optimistic {
		ids = c.reconciler.unreadIDs()
	}
	_, err := c.gateway.MarkAllRead(ctx, userID)
	if !c.Optimistic {
		return err
	}

	var partial *service.PartialBatchFailure
	switch {
	case err == nil:
	case errors.As(err, &partial):
		for _, id := range partial.Failed {
			delete(ids, id)
		}
	default:
		return err
	}
	c.reconciler.markLocal(ids, c.now())
	return err
}

func (c *NotificationCenter) RefreshNotifications(ctx context.Context) error {
	return c.reconciler.Refresh(ctx)
}
