package mesh

import (
	"context"
	"encoding/json"
	"time"
)

// Land lifecycle topics.
const (
	TopicLandListed      = "land.listed"
	TopicLandForSale     = "land.for_sale"
	TopicLandSold        = "land.sold"
	TopicLandTransferred = "land.transferred"
)

type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}
