package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/cenkalti/backoff/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
)

// Messenger sends one push message. *messaging.Client satisfies it.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// DeviceDirectory resolves and prunes a user's push tokens.
type DeviceDirectory interface {
	Devices(ctx context.Context, userID string) ([]models.DeviceToken, error)
	ForgetToken(ctx context.Context, token string) error
}

const (
	pushSendTimeout = 10 * time.Second
	maxPushInFlight = 16
	pushQueueSize   = 256
)

// PushDispatcher follows the notifications feed and forwards newly created
// notifications to the recipient's devices through FCM, honouring the push
// and category toggles.
type PushDispatcher struct {
	messenger Messenger
	prefs     PreferencesReader
	devices   DeviceDirectory
	decoder   *realtime.Decoder
	backoff   realtime.Backoff
	queue     chan models.Notification
	skipped   atomic.Int64
}

func NewPushDispatcher(messenger Messenger, prefs PreferencesReader, devices DeviceDirectory, backoff realtime.Backoff) *PushDispatcher {
	return &PushDispatcher{
		messenger: messenger,
		prefs:     prefs,
		devices:   devices,
		decoder:   realtime.NewDecoder(),
		backoff:   backoff,
		queue:     make(chan models.Notification, pushQueueSize),
	}
}

// Run subscribes to topic until ctx ends, resubscribing after drops. Sends
// happen on a fixed set of workers so the feed is never held up by FCM.
func (d *PushDispatcher) Run(ctx context.Context, src realtime.Source, topic string) error {
	var workers sync.WaitGroup
	defer workers.Wait()
	workCtx, stop := context.WithCancel(ctx)
	defer stop()
	for i := 0; i < maxPushInFlight; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			d.work(workCtx)
		}()
	}

	retry := d.backoff.New(ctx)
	for {
		dropped := make(chan error, 1)
		unsubscribe, err := src.Subscribe(ctx, topic, d.handle, func(err error) {
			dropped <- err
		})
		if err == nil {
			retry.Reset()
			select {
			case <-ctx.Done():
				unsubscribe()
				return ctx.Err()
			case err = <-dropped:
			}
		}
		log.Printf("[FCM] Notification feed lost: %v", err)
		delay := retry.NextBackOff()
		if delay == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if waitErr := realtime.Wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

// Skipped reports how many notifications were not pushed because the
// delivery queue was full.
func (d *PushDispatcher) Skipped() int64 {
	return d.skipped.Load()
}

// handle runs on the hub's delivery goroutine and must not block.
func (d *PushDispatcher) handle(ev realtime.Event) {
	if ev.Action() != realtime.ActionCreate {
		return
	}
	var n models.Notification
	if err := d.decoder.Decode(ev, &n); err != nil {
		log.Printf("[FCM] Ignoring event: %v", err)
		return
	}
	select {
	case d.queue <- n:
	default:
		skipped := d.skipped.Add(1)
		log.Printf("[FCM] Delivery queue full, skipping push for %s (%d skipped)", n.ID, skipped)
	}
}

func (d *PushDispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			if _, err := d.Deliver(ctx, n); err != nil {
				log.Printf("[FCM] Delivery of %s failed: %v", n.ID, err)
			}
		}
	}
}

// Deliver pushes n to every device of its recipient and returns how many
// sends succeeded. Tokens FCM reports as unregistered are forgotten.
func (d *PushDispatcher) Deliver(ctx context.Context, n models.Notification) (int, error) {
	if d == nil || d.messenger == nil {
		return 0, nil
	}
	prefs, err := d.prefs.Get(ctx, n.RecipientID)
	if err != nil {
		return 0, err
	}
	if !prefs.PushNotifications || !prefs.Allows(n.Type) {
		return 0, nil
	}
	devices, err := d.devices.Devices(ctx, n.RecipientID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, device := range devices {
		sendCtx, cancel := context.WithTimeout(ctx, pushSendTimeout)
		_, err := d.messenger.Send(sendCtx, buildPushMessage(device.Token, n))
		cancel()
		if err == nil {
			sent++
			continue
		}
		if messaging.IsUnregistered(err) {
			if forgetErr := d.devices.ForgetToken(ctx, device.Token); forgetErr != nil {
				log.Printf("[FCM] Could not forget stale token for %s: %v", n.RecipientID, forgetErr)
			}
			continue
		}
		log.Printf("[FCM] Send error for %s: %v", n.RecipientID, err)
	}
	return sent, nil
}

func buildPushMessage(token string, n models.Notification) *messaging.Message {
	androidPriority := "normal"
	if n.Priority == models.PriorityHigh || n.Priority == models.PriorityUrgent {
		androidPriority = "high"
	}
	data := map[string]string{
		"type":           string(n.Type),
		"priority":       string(n.Priority),
		"notificationId": n.ID,
	}
	if n.ActionURL != "" {
		data["actionUrl"] = n.ActionURL
	}
	if n.RelatedEntityID != "" {
		data["relatedEntityId"] = n.RelatedEntityID
		data["relatedEntityType"] = n.RelatedEntityType
	}
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data:  data,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}
