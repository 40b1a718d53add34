package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
)

// State is the lifecycle state of a reconciler.
type State int

const (
	StateUnsubscribed State = iota
	StateSeeding
	StateLive
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSeeding:
		return "seeding"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrNotStarted is returned by intents issued before Start.
var ErrNotStarted = errors.New("reconciler not started")

var (
	errNoSource   = errors.New("no change source")
	errStaleEpoch = errors.New("subscription superseded")
)

// projection is the data half of a reconciler. apply, replay, reset and the
// install func returned by fetch run with the session lock held. replay
// applies an event that was buffered while the seed was in flight, so the
// seed may or may not already reflect it.
type projection interface {
	subscribe(ctx context.Context, onEvent func(topic string, ev realtime.Event), onDrop func(error)) (func(), error)
	fetch(ctx context.Context) (install func(), err error)
	apply(topic string, ev realtime.Event)
	replay(topic string, ev realtime.Event)
	reset()
}

type pendingEvent struct {
	topic string
	ev    realtime.Event
}

// session drives a projection through Seeding, Live and Degraded. Every
// subscription and seed is tagged with the epoch it was started under;
// callbacks from an older epoch are ignored, which is how a torn-down
// subscription or an abandoned seed is kept from touching current state.
type session struct {
	name    string
	proj    projection
	backoff realtime.Backoff

	mu           sync.Mutex
	state        State
	err          error
	reconnecting bool
	epoch        uint64
	ctx          context.Context
	cancel       context.CancelFunc
	unsubscribe  func()
	pending      []pendingEvent
	changes      chan struct{}
}

func newSession(name string, proj projection, backoff realtime.Backoff) *session {
	return &session{
		name:    name,
		proj:    proj,
		backoff: backoff,
		changes: make(chan struct{}, 1),
	}
}

// Changes signals after every state change. Signals coalesce: a receiver
// that falls behind sees one pending signal, then reads a fresh snapshot.
func (s *session) Changes() <-chan struct{} {
	return s.changes
}

func (s *session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// openLocked clears any previous session and starts a new one bound to parent.
func (s *session) openLocked(parent context.Context) uint64 {
	s.closeLocked()
	s.ctx, s.cancel = context.WithCancel(parent)
	s.epoch++
	return s.epoch
}

func (s *session) closeLocked() {
	s.epoch++
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = nil
	s.state = StateUnsubscribed
	s.err = nil
	s.reconnecting = false
	s.proj.reset()
}

// stop tears the subscription down synchronously and clears all state.
func (s *session) stop() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	s.notify()
}

// restart re-enters Seeding under a new epoch of the current session.
func (s *session) restart(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.epoch++
	epoch := s.epoch
	s.reconnecting = false
	s.mu.Unlock()
	return s.run(ctx, epoch)
}

// run connects for epoch and hands subscription failures to the reconnect loop.
func (s *session) run(ctx context.Context, epoch uint64) error {
	err := s.connect(ctx, epoch)
	if errors.Is(err, realtime.ErrSubscriptionDropped) {
		s.mu.Lock()
		if s.epoch == epoch {
			s.reconnecting = true
		}
		s.mu.Unlock()
		go s.reconnect(epoch)
	}
	return err
}

// connect subscribes, then seeds. Events that arrive before the seed lands
// are buffered in arrival order and replayed on top of it, so a seed fetched
// before a change can never overwrite that change.
func (s *session) connect(fetchCtx context.Context, epoch uint64) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	ctx := s.ctx
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = StateSeeding
	s.pending = nil
	s.mu.Unlock()
	s.notify()

	unsubscribe, err := s.proj.subscribe(ctx,
		func(topic string, ev realtime.Event) { s.onEvent(epoch, topic, ev) },
		func(err error) { s.onDrop(epoch, err) },
	)
	if err != nil {
		if !errors.Is(err, realtime.ErrSubscriptionDropped) {
			err = fmt.Errorf("%w: %w", realtime.ErrSubscriptionDropped, err)
		}
		s.fail(epoch, err)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	install, err := s.proj.fetch(fetchCtx)
	if err != nil {
		s.fail(epoch, err)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	install()
	for _, p := range s.pending {
		s.proj.replay(p.topic, p.ev)
	}
	s.pending = nil
	s.state = StateLive
	s.err = nil
	s.reconnecting = false
	s.mu.Unlock()
	s.notify()
	return nil
}

// fail moves epoch to Degraded with an empty projection and the error retained.
func (s *session) fail(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.pending = nil
	s.proj.reset()
	s.state = StateDegraded
	s.err = err
	s.mu.Unlock()
	log.Printf("[%s] Connect failed: %v", s.name, err)
	s.notify()
}

func (s *session) onEvent(epoch uint64, topic string, ev realtime.Event) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StateSeeding:
		s.pending = append(s.pending, pendingEvent{topic: topic, ev: ev})
		s.mu.Unlock()
		return
	case StateLive:
		s.proj.apply(topic, ev)
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

// onDrop keeps the last known projection visible, marks the session
// Degraded and starts resubscribing under a new epoch.
func (s *session) onDrop(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if !errors.Is(err, realtime.ErrSubscriptionDropped) {
		err = fmt.Errorf("%w: %w", realtime.ErrSubscriptionDropped, err)
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.epoch++
	next := s.epoch
	s.pending = nil
	s.state = StateDegraded
	s.err = err
	s.reconnecting = true
	s.mu.Unlock()

	log.Printf("[%s] Subscription dropped, reconnecting: %v", s.name, err)
	s.notify()
	go s.reconnect(next)
}

// reconnect retries connect under epoch until it succeeds or the policy
// runs out. A newer epoch ends it early.
func (s *session) reconnect(epoch uint64) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	attempts := 0
	err := backoff.RetryNotify(func() error {
		if !s.current(epoch) {
			return backoff.Permanent(errStaleEpoch)
		}
		attempts++
		return s.connect(ctx, epoch)
	}, s.backoff.New(ctx), func(err error, delay time.Duration) {
		log.Printf("[%s] Reconnect attempt %d failed, retrying in %s: %v", s.name, attempts, delay, err)
	})
	if err == nil || ctx.Err() != nil || errors.Is(err, errStaleEpoch) {
		return
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.reconnecting = false
		log.Printf("[%s] Giving up after %d reconnect attempts", s.name, attempts)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// subscribeAll subscribes to every topic, unwinding on the first failure.
func subscribeAll(ctx context.Context, src realtime.Source, topics []string, onEvent func(topic string, ev realtime.Event), onDrop func(error)) (func(), error) {
	var unsubs []func()
	unsubscribe := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for _, topic := range topics {
		unsub, err := src.Subscribe(ctx, topic, func(ev realtime.Event) { onEvent(topic, ev) }, onDrop)
		if err != nil {
			unsubscribe()
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return unsubscribe, nil
}
