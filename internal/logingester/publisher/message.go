package publisher

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/G-Research/logingester/internal/logingester/model"
)

const (
	MessageKindBatch = "batch"
	// Message property carrying the kind, for brokers that support properties
	KindProperty = "kind"
	// Message property carrying the number of events in the message
	CountProperty = "count"
)

// BatchMessage is the envelope every broker sink publishes.  One batch is always exactly one message, so consumers
// see a batch either whole or not at all.
type BatchMessage struct {
	Kind   string                 `json:"kind"`
	Events []*model.IngestedEvent `json:"events"`
}

func EncodeBatch(events []*model.IngestedEvent) ([]byte, error) {
	payload, err := json.Marshal(BatchMessage{Kind: MessageKindBatch, Events: events})
	if err != nil {
		return nil, errors.Wrapf(err, "error serialising batch of %d events", len(events))
	}
	return payload, nil
}

func DecodeBatch(payload []byte) (*BatchMessage, error) {
	msg := &BatchMessage{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, errors.WithStack(err)
	}
	if msg.Kind != MessageKindBatch {
		return nil, errors.Errorf("unexpected message kind %q", msg.Kind)
	}
	return msg, nil
}
