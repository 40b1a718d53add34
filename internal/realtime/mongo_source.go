package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Codec converts a stored BSON document into the JSON payload subscribers see.
type Codec func(bson.Raw) (json.RawMessage, error)

// JSONCodec decodes documents into T and re-encodes them with T's json tags.
func JSONCodec[T any]() Codec {
	return func(raw bson.Raw) (json.RawMessage, error) {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID bson.RawValue `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument             bson.Raw            `bson:"fullDocument"`
	FullDocumentBeforeChange bson.Raw            `bson:"fullDocumentBeforeChange"`
	ClusterTime              primitive.Timestamp `bson:"clusterTime"`
}

// MongoSource turns MongoDB change streams into events on a Hub. One stream
// is opened per watched collection regardless of how many subscribers the
// topic has.
type MongoSource struct {
	hub     *Hub
	backoff Backoff
}

func NewMongoSource(hub *Hub, backoff Backoff) *MongoSource {
	return &MongoSource{hub: hub, backoff: backoff}
}

func (m *MongoSource) Subscribe(ctx context.Context, topic string, onEvent func(Event), onDrop func(error)) (func(), error) {
	return m.hub.Subscribe(ctx, topic, onEvent, onDrop)
}

// Watch streams changes of coll onto topic until ctx ends. When the stream
// fails, subscribers of topic are dropped and the stream is reopened from
// the last resume token after a backoff delay.
func (m *MongoSource) Watch(ctx context.Context, topic string, coll *mongo.Collection, codec Codec) error {
	var resumeToken bson.Raw
	retry := m.backoff.New(ctx)
	failures := 0
	for {
		opts := options.ChangeStream().
			SetFullDocument(options.UpdateLookup).
			SetFullDocumentBeforeChange(options.WhenAvailable)
		if resumeToken != nil {
			opts.SetResumeAfter(resumeToken)
		}

		stream, err := coll.Watch(ctx, mongo.Pipeline{}, opts)
		if err == nil {
			retry.Reset()
			failures = 0
			log.Printf("Change stream opened for %s", topic)
			err = m.pump(ctx, topic, stream, codec, &resumeToken)
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = stream.Close(closeCtx)
			cancel()
		} else if resumeToken != nil {
			// the token may have fallen off the oplog
			resumeToken = nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("change stream closed")
		}

		log.Printf("Change stream for %s failed: %v", topic, err)
		m.hub.Drop(topic, fmt.Errorf("%w: %v", ErrSubscriptionDropped, err))

		failures++
		delay := retry.NextBackOff()
		if delay == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("change stream for %s: giving up after %d failures: %w", topic, failures, err)
		}
		if waitErr := Wait(ctx, delay); waitErr != nil {
			return waitErr
		}
	}
}

func (m *MongoSource) pump(ctx context.Context, topic string, stream *mongo.ChangeStream, codec Codec, resumeToken *bson.Raw) error {
	for stream.Next(ctx) {
		*resumeToken = stream.ResumeToken()

		var change changeEvent
		if err := stream.Decode(&change); err != nil {
			log.Printf("Skipping undecodable change on %s: %v", topic, err)
			continue
		}
		ev, ok, err := translateChange(topic, change, codec)
		if err != nil {
			log.Printf("Skipping change on %s: %v", topic, err)
			continue
		}
		if ok {
			m.hub.Publish(topic, ev)
		}
	}
	return stream.Err()
}

func translateChange(topic string, change changeEvent, codec Codec) (Event, bool, error) {
	id := documentKeyString(change.DocumentKey.ID)
	if id == "" {
		return Event{}, false, fmt.Errorf("change without document key")
	}

	var action Action
	var doc bson.Raw
	switch change.OperationType {
	case "insert":
		action, doc = ActionCreate, change.FullDocument
	case "update", "replace":
		action, doc = ActionUpdate, change.FullDocument
		if doc == nil {
			// deleted before the lookup ran; the delete event follows
			return Event{}, false, nil
		}
	case "delete":
		action, doc = ActionDelete, change.FullDocumentBeforeChange
	default:
		return Event{}, false, nil
	}

	var payload json.RawMessage
	if doc != nil {
		var err error
		if payload, err = codec(doc); err != nil {
			return Event{}, false, fmt.Errorf("encode %s: %w", id, err)
		}
	} else {
		payload, _ = json.Marshal(map[string]string{"id": id})
	}

	ts := time.Now().UTC()
	if change.ClusterTime.T != 0 {
		ts = time.Unix(int64(change.ClusterTime.T), 0).UTC()
	}
	return Event{
		Events:    []string{EventName(topic, id, action)},
		Payload:   payload,
		Timestamp: ts,
	}, true, nil
}

func documentKeyString(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return ""
}
