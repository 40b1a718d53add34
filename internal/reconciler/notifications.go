package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
	"golang.org/x/sync/errgroup"
)

// NotificationGateway is the fetch side the reconciler seeds from and the
// center sends intents to. *service.NotificationService satisfies it.
type NotificationGateway interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Options tune a reconciler.
type Options struct {
	// Limit is the seed page size; zero uses the gateway default.
	Limit int
	// Backoff governs resubscription after a dropped feed.
	Backoff realtime.Backoff
	// HideExpired filters notifications past their expiry out of snapshots.
	HideExpired bool
	// Now overrides the clock used for expiry checks and seed stamps.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// NotificationSnapshot is a consistent copy of a reconciler's state.
type NotificationSnapshot struct {
	UserID        string                `json:"userId"`
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Loading       bool                  `json:"loading"`
	State         string                `json:"state"`
	Error         string                `json:"error,omitempty"`
	Reconnecting  bool                  `json:"reconnecting"`
	Realtime      bool                  `json:"realtime"`

	Err error `json:"-"`
}

// NotificationReconciler keeps one user's notification list and unread
// counter current by seeding from the gateway and applying live events.
// The list holds at most one entry per id, newest first as received, and
// the counter never goes below zero.
type NotificationReconciler struct {
	*session

	gateway  NotificationGateway
	source   realtime.Source
	topic    string
	realtime bool
	opts     Options
	decoder  *realtime.Decoder

	// guarded by session.mu
	userID string
	items  []models.Notification
	unread int

	// countedAt is when the seed's unread count was read. replayed holds,
	// per id touched by replay, whether the counter currently counts it.
	countedAt time.Time
	replayed  map[string]bool
}

// NewNotificationReconciler builds a reconciler for the notifications
// collection. Missing ids leave the reconciler without a live feed: seeding
// still works, events never arrive.
func NewNotificationReconciler(gateway NotificationGateway, source realtime.Source, databaseID, collectionID string, opts Options) *NotificationReconciler {
	r := &NotificationReconciler{
		gateway:  gateway,
		source:   source,
		realtime: true,
		opts:     opts,
		decoder:  realtime.NewDecoder(),
	}
	topic, err := realtime.Topic(databaseID, collectionID)
	if err == nil && source == nil {
		err = errNoSource
	}
	if err != nil {
		log.Printf("[notifications] Live updates disabled: %v", err)
		r.source = realtime.Inert{}
		r.realtime = false
	}
	r.topic = topic
	r.session = newSession("notifications", r, opts.Backoff)
	return r
}

// Start binds the reconciler to userID and seeds it. Calling Start again for
// the same user while seeding or live is a no-op; a different user tears the
// previous session down first. The subscription lives until Stop or until
// ctx ends. A seed failure is returned and also retained in the snapshot.
func (r *NotificationReconciler) Start(ctx context.Context, userID string) error {
	r.mu.Lock()
	if r.cancel != nil && r.userID == userID && (r.state == StateLive || r.state == StateSeeding) {
		r.mu.Unlock()
		return nil
	}
	epoch := r.openLocked(ctx)
	r.userID = userID
	r.mu.Unlock()
	return r.run(ctx, epoch)
}

// Stop unsubscribes synchronously and clears every trace of the user.
func (r *NotificationReconciler) Stop() {
	r.stop()
}

// Refresh discards the current seed and seeds again for the same user.
func (r *NotificationReconciler) Refresh(ctx context.Context) error {
	return r.restart(ctx)
}

// UserID returns the user the reconciler is bound to, or "".
func (r *NotificationReconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

func (r *NotificationReconciler) Snapshot() NotificationSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := NotificationSnapshot{
		UserID:        r.userID,
		Notifications: make([]models.Notification, 0, len(r.items)),
		UnreadCount:   r.unread,
		Loading:       r.state == StateSeeding,
		State:         r.state.String(),
		Reconnecting:  r.reconnecting,
		Realtime:      r.realtime,
		Err:           r.err,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	now := r.opts.now()
	for _, n := range r.items {
		if r.opts.HideExpired && n.Expired(now) {
			if !n.Read && snap.UnreadCount > 0 {
				snap.UnreadCount--
			}
			continue
		}
		snap.Notifications = append(snap.Notifications, n)
	}
	return snap
}

func (r *NotificationReconciler) subscribe(ctx context.Context, onEvent func(string, realtime.Event), onDrop func(error)) (func(), error) {
	return subscribeAll(ctx, r.source, []string{r.topic}, onEvent, onDrop)
}

// fetch issues the list and count requests together; either failing fails
// the seed as a whole.
func (r *NotificationReconciler) fetch(ctx context.Context) (func(), error) {
	r.mu.Lock()
	userID := r.userID
	r.mu.Unlock()

	var (
		items     []models.Notification
		unread    int
		countedAt time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = r.gateway.ListNotifications(gctx, userID, r.opts.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		countedAt = r.opts.now()
		unread, err = r.gateway.CountUnread(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return func() {
		r.items = r.items[:0]
		seen := make(map[string]struct{}, len(items))
		for _, n := range items {
			if n.RecipientID != r.userID {
				continue
			}
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			r.items = append(r.items, n)
		}
		r.unread = max(unread, 0)
		r.countedAt = countedAt
		r.replayed = make(map[string]bool)
	}, nil
}

func (r *NotificationReconciler) reset() {
	r.items = nil
	r.unread = 0
	r.countedAt = time.Time{}
	r.replayed = nil
	if r.state == StateUnsubscribed {
		r.userID = ""
	}
}

func (r *NotificationReconciler) apply(_ string, ev realtime.Event) {
	action := ev.Action()
	switch action {
	case realtime.ActionCreate, realtime.ActionUpdate:
		var n models.Notification
		if err := r.decoder.Decode(ev, &n); err != nil {
			log.Printf("[notifications] Rejected %s event: %v", action, err)
			return
		}
		if n.RecipientID != r.userID {
			return
		}
		r.upsert(n, action == realtime.ActionCreate)
	case realtime.ActionDelete:
		r.remove(ev.DocumentID())
	default:
		log.Printf("[notifications] Ignoring event with unknown action: %v", ev.Events)
	}
}

// replay applies a buffered event to the list like a live event. The
// counter does not follow the list transition, since the list and the count
// are separate reads and either may already include the event. Instead it
// moves by how the event changes what the count saw, judged by the
// document's createdAt and readAt against countedAt.
func (r *NotificationReconciler) replay(_ string, ev realtime.Event) {
	action := ev.Action()
	switch action {
	case realtime.ActionCreate, realtime.ActionUpdate:
		var n models.Notification
		if err := r.decoder.Decode(ev, &n); err != nil {
			log.Printf("[notifications] Rejected buffered %s event: %v", action, err)
			return
		}
		if n.RecipientID != r.userID {
			return
		}
		if _, listed := r.find(n.ID); !listed && action != realtime.ActionCreate {
			return
		}
		before := r.countedUnread(n.ID, r.unreadAtCount(n, ev.Timestamp))
		unread := r.unread
		r.upsert(n, action == realtime.ActionCreate)
		r.settle(n.ID, unread, before, !n.Read)
	case realtime.ActionDelete:
		id := ev.DocumentID()
		prev, listed := r.find(id)
		if !listed {
			return
		}
		// a delete the count already saw leaves nothing to take back
		before := r.countedUnread(id, ev.Timestamp.After(r.countedAt) && r.unreadAtCount(prev, r.countedAt))
		unread := r.unread
		r.remove(id)
		r.settle(id, unread, before, false)
	default:
		log.Printf("[notifications] Ignoring event with unknown action: %v", ev.Events)
	}
}

// unreadAtCount reports whether n was unread when the count was read. A read
// notification without readAt is taken as read at readFallback.
func (r *NotificationReconciler) unreadAtCount(n models.Notification, readFallback time.Time) bool {
	if n.CreatedAt.After(r.countedAt) {
		return false
	}
	if !n.Read {
		return true
	}
	readAt := readFallback
	if n.ReadAt != nil {
		readAt = *n.ReadAt
	}
	return readAt.After(r.countedAt)
}

func (r *NotificationReconciler) countedUnread(id string, atCount bool) bool {
	if counted, ok := r.replayed[id]; ok {
		return counted
	}
	return atCount
}

// settle sets the counter from its value before the list change, moved by
// the difference between what was counted for id and what now should be.
func (r *NotificationReconciler) settle(id string, unread int, before, after bool) {
	switch {
	case before && !after:
		unread--
	case !before && after:
		unread++
	}
	r.unread = max(unread, 0)
	if r.replayed == nil {
		r.replayed = make(map[string]bool)
	}
	r.replayed[id] = after
}

func (r *NotificationReconciler) find(id string) (models.Notification, bool) {
	for _, n := range r.items {
		if n.ID == id {
			return n, true
		}
	}
	return models.Notification{}, false
}

// upsert replaces the entry with n's id, or prepends n when insert is set.
// The counter follows the read-state transition.
func (r *NotificationReconciler) upsert(n models.Notification, insert bool) {
	for i := range r.items {
		if r.items[i].ID != n.ID {
			continue
		}
		wasRead := r.items[i].Read
		r.items[i] = n
		switch {
		case !wasRead && n.Read:
			r.decrement()
		case wasRead && !n.Read:
			r.unread++
		}
		return
	}
	if !insert {
		return
	}
	r.items = append([]models.Notification{n}, r.items...)
	if !n.Read {
		r.unread++
	}
}

func (r *NotificationReconciler) remove(id string) {
	for i := range r.items {
		if r.items[i].ID != id {
			continue
		}
		if !r.items[i].Read {
			r.decrement()
		}
		r.items = append(r.items[:i], r.items[i+1:]...)
		return
	}
}

func (r *NotificationReconciler) decrement() {
	if r.unread > 0 {
		r.unread--
	}
}

// markLocal applies an acknowledged read to the local list.
func (r *NotificationReconciler) markLocal(ids map[string]struct{}, at time.Time) {
	r.mu.Lock()
	changed := false
	for i := range r.items {
		n := r.items[i]
		if _, ok := ids[n.ID]; !ok || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		r.upsert(n, false)
		changed = true
	}
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

// unreadIDs lists the ids of unread entries currently held.
func (r *NotificationReconciler) unreadIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{})
	for _, n := range r.items {
		if !n.Read {
			ids[n.ID] = struct{}{}
		}
	}
	return ids
}

var _ NotificationGateway = (*service.NotificationService)(nil)
