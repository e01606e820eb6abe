// Package notify is the boundary to customer notifications. Producers publish events
// after their transaction commits; delivery is best effort and at most once.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-petstore/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

var ErrQueueFull = errors.New("notification queue full")

type Notifier interface {
	OrderPlaced(ctx context.Context, p OrderPlacedPayload) error
	DiscountAvailable(ctx context.Context, p DiscountPayload) error
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) bool
}

// KafkaNotifier publishes notification envelopes to the notifications topic.
type KafkaNotifier struct {
	Producer publisher
	Service  string
}

func (n *KafkaNotifier) OrderPlaced(ctx context.Context, p OrderPlacedPayload) error {
	return n.publish(ctx, EventOrderPlaced, p.DeliveryID, p)
}

func (n *KafkaNotifier) DiscountAvailable(ctx context.Context, p DiscountPayload) error {
	return n.publish(ctx, EventDiscountAvailable, p.UserEmail, p)
}

func (n *KafkaNotifier) publish(ctx context.Context, eventType, key string, payload any) error {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	ok := n.Producer.Publish([]byte(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if !ok {
		return fmt.Errorf("%s for %s: %w", eventType, key, ErrQueueFull)
	}
	return nil
}
