package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-petstore/internal/kafka"
	"github.com/ariefcatur/go-petstore/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Sink delivers a rendered message. Mail transport lives outside this service.
type Sink interface {
	Deliver(ctx context.Context, m Message) error
}

type LogSink struct{}

func (LogSink) Deliver(_ context.Context, m Message) error {
	log.Printf("notify to=%s subject=%q", m.To, m.Subject)
	return nil
}

// Dispatcher is the consumer side of the notifications topic.
type Dispatcher struct {
	Redis       *redis.Client
	Sink        Sink
	ServiceName string
}

// HandleMessage is installed as the kafka consumer handler.
func (d *Dispatcher) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("drop malformed notification offset=%d: %v", m.Offset, err)
		return nil
	}

	var msg Message
	switch env.EventType {
	case EventDiscountAvailable:
		p, err := kafkax.UnwrapPayload[DiscountPayload](env.Payload)
		if err != nil {
			return err
		}
		msg = RenderDiscount(p)
	case EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		msg = RenderInvoice(p)
	default:
		return nil
	}

	// at most once: the claim is taken before delivery and never released
	key := fmt.Sprintf(redisx.KeyDedup, d.ServiceName, env.EventID)
	won, err := redisx.Claim(ctx, d.Redis, key, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !won {
		return nil
	}

	if err := d.Sink.Deliver(ctx, msg); err != nil {
		log.Printf("deliver %s event=%s to=%s: %v", env.EventType, env.EventID, msg.To, err)
	}
	return nil
}
