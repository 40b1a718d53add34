package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
)

func TestMarkReadWaitsForEvent(t *testing.T) {
	gw := seededGateway()
	r, hub := newLiveReconciler(t, gw, Options{})
	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	center := NewNotificationCenter(r)

	if err := center.MarkNotificationAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if len(gw.marked) != 1 || gw.marked[0] != "n1" {
		t.Fatalf("expected gateway write for n1, got %v", gw.marked)
	}
	if center.UnreadCount() != 1 || center.Notifications()[0].Read {
		t.Fatalf("local state changed before the update event")
	}

	publish(t, hub, testTopic, realtime.ActionUpdate, "n1", notification("n1", "u1", true))
	eventually(t, "update event applied", func() bool { return center.UnreadCount() == 0 })
}

func TestOptimisticMarkReadAppliesOnAck(t *testing.T) {
	r, hub := newLiveReconciler(t, seededGateway(), Options{})
	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	center := NewNotificationCenter(r)
	center.Optimistic = true

	if err := center.MarkNotificationAsRead(context.Background(), "n1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if center.UnreadCount() != 0 || !center.Notifications()[0].Read || center.Notifications()[0].ReadAt == nil {
		t.Fatalf("expected local read applied, got %+v", center.Snapshot())
	}

	// The round-tripped event must not double count.
	publish(t, hub, testTopic, realtime.ActionUpdate, "n1", notification("n1", "u1", true))
	publish(t, hub, testTopic, realtime.ActionCreate, "n5", notification("n5", "u1", true))
	eventually(t, "sentinel applied", func() bool { return len(center.Notifications()) == 3 })
	if center.UnreadCount() != 0 {
		t.Fatalf("expected 0 unread, got %d", center.UnreadCount())
	}
}

func TestFailedIntentLeavesStateUnchanged(t *testing.T) {
	gw := seededGateway()
	gw.markErr = service.ErrRemoteUnavailable
	r, _ := newLiveReconciler(t, gw, Options{})
	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	center := NewNotificationCenter(r)
	center.Optimistic = true

	before := center.Snapshot()
	if err := center.MarkNotificationAsRead(context.Background(), "n1"); !errors.Is(err, service.ErrRemoteUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	after := center.Snapshot()
	if after.UnreadCount != before.UnreadCount || after.Notifications[0].Read {
		t.Fatalf("failed intent changed local state")
	}
}

func TestOptimisticMarkAllSkipsFailedIDs(t *testing.T) {
	gw := seededGateway()
	gw.items["u1"] = append(gw.items["u1"], notification("n3", "u1", false))
	gw.unread["u1"] = 2
	gw.markAll = &service.PartialBatchFailure{Attempted: 2, Failed: []string{"n3"}, First: service.ErrRemoteUnavailable}
	r, _ := newLiveReconciler(t, gw, Options{})
	if err := r.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	center := NewNotificationCenter(r)
	center.Optimistic = true

	err := center.MarkAllNotificationsAsRead(context.Background())
	var partial *service.PartialBatchFailure
	if !errors.As(err, &partial) {
		t.Fatalf("expected partial batch failure, got %v", err)
	}
	snap := center.Snapshot()
	if snap.UnreadCount != 1 {
		t.Fatalf("expected 1 unread, got %d", snap.UnreadCount)
	}
	for _, n := range snap.Notifications {
		if n.ID == "n3" && n.Read {
			t.Fatalf("failed id was marked read locally")
		}
		if n.ID == "n1" && !n.Read {
			t.Fatalf("acknowledged id was not marked read locally")
		}
	}
}

func TestTwoSessionsStayIndependent(t *testing.T) {
	gw := seededGateway()
	hub := realtime.NewHub()
	defer hub.Close()
	tabA := NewNotificationReconciler(gw, hub, testDatabase, testCollection, Options{Backoff: testBackoff()})
	tabB := NewNotificationReconciler(gw, hub, testDatabase, testCollection, Options{Backoff: testBackoff()})
	defer tabA.Stop()
	defer tabB.Stop()
	ctx := context.Background()
	if err := tabA.Start(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := tabB.Start(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	centerA := NewNotificationCenter(tabA)
	centerA.Optimistic = true
	if err := centerA.MarkNotificationAsRead(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if centerA.UnreadCount() != 0 {
		t.Fatalf("tab A should reflect its own acknowledged write")
	}
	if tabB.Snapshot().UnreadCount != 1 {
		t.Fatalf("tab B changed before its own event arrived")
	}

	publish(t, hub, testTopic, realtime.ActionUpdate, "n1", notification("n1", "u1", true))
	eventually(t, "tab B catches up", func() bool { return tabB.Snapshot().UnreadCount == 0 })
}

func TestIntentsBeforeStart(t *testing.T) {
	r := NewNotificationReconciler(newFakeGateway(), realtime.NewHub(), testDatabase, testCollection, Options{})
	center := NewNotificationCenter(r)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := center.MarkNotificationAsRead(ctx, "n1"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := center.MarkAllNotificationsAsRead(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := center.RefreshNotifications(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if center.Loading() || len(center.Notifications()) != 0 {
		t.Fatalf("unexpected state before start")
	}
}
