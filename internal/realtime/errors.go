package realtime

import "errors"

var (
	// ErrSubscriptionDropped is reported to a subscriber whose live channel
	// closed unexpectedly.
	ErrSubscriptionDropped = errors.New("subscription dropped")

	// ErrMisconfiguredCollection is returned when the database or collection
	// id needed to build a topic is absent.
	ErrMisconfiguredCollection = errors.New("misconfigured collection")

	// ErrSourceClosed is returned when subscribing to a closed source.
	ErrSourceClosed = errors.New("change source closed")

	// ErrMalformedPayload is returned when an event payload fails decoding
	// or validation.
	ErrMalformedPayload = errors.New("malformed event payload")
)
