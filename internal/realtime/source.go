package realtime

import "context"

// Source is a push-based feed of document changes keyed by topic.
//
// onEvent is invoked serially per subscription, in the order the source
// emitted the events. onDrop is invoked at most once when the subscription
// ends for any reason other than the caller unsubscribing or ctx ending.
// The returned unsubscribe func is idempotent.
type Source interface {
	Subscribe(ctx context.Context, topic string, onEvent func(Event), onDrop func(error)) (unsubscribe func(), err error)
}

// Inert is a Source that never delivers anything. It stands in when the
// collection configuration is missing.
type Inert struct{}

func (Inert) Subscribe(context.Context, string, func(Event), func(error)) (func(), error) {
	return func() {}, nil
}
