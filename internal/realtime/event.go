package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Action is the document operation an event encodes.
type Action string

const (
	ActionUnknown Action = ""
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// Event is one change pushed by the remote store. Events holds names of the
// form databases.<db>.collections.<coll>.documents.<id>.<action>; Payload is
// the full current document, or for deletes at least its id.
type Event struct {
	Events    []string        `json:"events"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Action classifies the event by the suffix of its event names.
func (e Event) Action() Action {
	for _, name := range e.Events {
		switch {
		case strings.HasSuffix(name, ".create"):
			return ActionCreate
		case strings.HasSuffix(name, ".update"):
			return ActionUpdate
		case strings.HasSuffix(name, ".delete"):
			return ActionDelete
		}
	}
	return ActionUnknown
}

// DocumentID returns the id of the changed document, read from the payload
// and falling back to the event name.
func (e Event) DocumentID() string {
	var doc struct {
		ID string `json:"id"`
	}
	if len(e.Payload) > 0 && json.Unmarshal(e.Payload, &doc) == nil && doc.ID != "" {
		return doc.ID
	}
	for _, name := range e.Events {
		parts := strings.Split(name, ".")
		if len(parts) >= 2 {
			return parts[len(parts)-2]
		}
	}
	return ""
}

// Topic builds the subscription key for a collection's documents.
func Topic(databaseID, collectionID string) (string, error) {
	databaseID = strings.TrimSpace(databaseID)
	collectionID = strings.TrimSpace(collectionID)
	if databaseID == "" || collectionID == "" {
		return "", fmt.Errorf("%w: database=%q collection=%q", ErrMisconfiguredCollection, databaseID, collectionID)
	}
	return fmt.Sprintf("databases.%s.collections.%s.documents", databaseID, collectionID), nil
}

// EventName builds the event name for one document change under topic.
func EventName(topic, documentID string, action Action) string {
	return topic + "." + documentID + "." + string(action)
}

// NewEvent builds an event for a document change, marshalling doc as payload.
func NewEvent(topic, documentID string, action Action, doc any) (Event, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Events:    []string{EventName(topic, documentID, action)},
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decoder turns loosely typed payloads into validated records before they
// reach a reconciler.
type Decoder struct {
	validate *validator.Validate
}

func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// Decode unmarshals the event payload into out and validates it.
func (d *Decoder) Decode(e Event, out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := d.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
