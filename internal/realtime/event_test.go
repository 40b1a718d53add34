package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type sampleDoc struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
}

func TestEventActionFromSuffix(t *testing.T) {
	cases := map[string]Action{
		"databases.main.collections.notifications.documents.n1.create": ActionCreate,
		"databases.main.collections.notifications.documents.n1.update": ActionUpdate,
		"databases.main.collections.notifications.documents.n1.delete": ActionDelete,
		"databases.main.collections.notifications.documents.n1":        ActionUnknown,
	}
	for name, want := range cases {
		got := Event{Events: []string{name}}.Action()
		if got != want {
			t.Fatalf("action for %q: expected %q, got %q", name, want, got)
		}
	}
}

func TestDocumentIDFallsBackToEventName(t *testing.T) {
	ev := Event{Events: []string{"databases.main.collections.notifications.documents.n42.delete"}}
	if id := ev.DocumentID(); id != "n42" {
		t.Fatalf("expected n42, got %q", id)
	}
	ev.Payload = []byte(`{"id":"n7"}`)
	if id := ev.DocumentID(); id != "n7" {
		t.Fatalf("expected payload id n7, got %q", id)
	}
}

func TestTopicRequiresIDs(t *testing.T) {
	if _, err := Topic("", "notifications"); !errors.Is(err, ErrMisconfiguredCollection) {
		t.Fatalf("expected misconfigured collection error, got %v", err)
	}
	topic, err := Topic("main", "notifications")
	if err != nil {
		t.Fatalf("topic failed: %v", err)
	}
	if topic != "databases.main.collections.notifications.documents" {
		t.Fatalf("unexpected topic %q", topic)
	}
}

func TestDecoderRejectsMalformedPayload(t *testing.T) {
	d := NewDecoder()
	var doc sampleDoc
	if err := d.Decode(Event{Payload: []byte(`{"id":`)}, &doc); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload for bad json, got %v", err)
	}
	if err := d.Decode(Event{Payload: []byte(`{"id":"x"}`)}, &doc); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload for missing title, got %v", err)
	}
	if err := d.Decode(Event{}, &doc); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload for empty payload, got %v", err)
	}

	ev, err := NewEvent("t", "x", ActionCreate, sampleDoc{ID: "x", Title: "ok"})
	if err != nil {
		t.Fatalf("new event failed: %v", err)
	}
	if err := d.Decode(ev, &doc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if doc.Title != "ok" || ev.Action() != ActionCreate {
		t.Fatalf("unexpected decode result %+v action=%q", doc, ev.Action())
	}
}

func delays(b Backoff, n int) []time.Duration {
	policy := b.New(context.Background())
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = policy.NextBackOff()
	}
	return out
}

func TestBackoffDelayIsCapped(t *testing.T) {
	got := delays(Backoff{Base: 100 * time.Millisecond, Max: time.Second}, 20)
	if got[0] != 100*time.Millisecond {
		t.Fatalf("expected base delay, got %s", got[0])
	}
	if got[2] != 400*time.Millisecond {
		t.Fatalf("expected 400ms, got %s", got[2])
	}
	if got[19] != time.Second {
		t.Fatalf("expected cap, got %s", got[19])
	}
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	for _, d := range delays(Backoff{Base: time.Second, Max: time.Second, Jitter: 0.5}, 50) {
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of range: %s", d)
		}
	}
}

func TestBackoffStopsAfterMaxAttempts(t *testing.T) {
	got := delays(Backoff{Base: time.Millisecond, MaxAttempts: 2}, 3)
	if got[0] == backoff.Stop || got[1] == backoff.Stop || got[2] != backoff.Stop {
		t.Fatalf("unexpected schedule %v", got)
	}
	for _, d := range delays(Backoff{Base: time.Millisecond, Max: time.Millisecond}, 1000) {
		if d == backoff.Stop {
			t.Fatalf("zero max attempts must retry forever")
		}
	}
}

func TestBackoffResetRestartsCount(t *testing.T) {
	policy := Backoff{Base: time.Millisecond, MaxAttempts: 1}.New(context.Background())
	policy.NextBackOff()
	if policy.NextBackOff() != backoff.Stop {
		t.Fatalf("expected stop after one attempt")
	}
	policy.Reset()
	if policy.NextBackOff() == backoff.Stop {
		t.Fatalf("reset should allow another attempt")
	}
}

func TestBackoffStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Backoff{Base: time.Millisecond}.New(ctx)
	cancel()
	if policy.NextBackOff() != backoff.Stop {
		t.Fatalf("expected stop once the context is cancelled")
	}
}
