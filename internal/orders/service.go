package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/notify"
	"github.com/ariefcatur/go-petstore/internal/redisx"
	"github.com/ariefcatur/go-petstore/internal/validate"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const deliveryIDAttempts = 3

type Store interface {
	CreateWithReservation(ctx context.Context, o *Order) error
	Get(ctx context.Context, deliveryID string) (*Order, error)
	List(ctx context.Context, status Status) ([]Order, error)
	History(ctx context.Context, email string) ([]Order, error)
	UpdateStatus(ctx context.Context, deliveryID string, fn func(o *Order) error) (*Order, error)
	Stats(ctx context.Context, today time.Time) (*Stats, error)
}

// Service is the order workflow. Redis is optional and only backs Idempotency-Key replay.
type Service struct {
	Store    Store
	Notifier notify.Notifier
	Redis    *redis.Client
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateCart(c Cart) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := validate.Var("customer_email", strings.TrimSpace(c.CustomerEmail), "email"); err != nil {
		return err
	}
	for i, it := range c.Items {
		if err := validate.StructAt(fmt.Sprintf("items[%d]", i), it); err != nil {
			return err
		}
	}
	return nil
}

// Create places an order. With a non-empty idemKey a repeated request returns the order
// created by the first one instead of reserving stock again.
func (s *Service) Create(ctx context.Context, c Cart, idemKey string) (*Order, bool, error) {
	ctx, span := otel.Tracer("orders").Start(ctx, "orders.Create")
	defer span.End()

	if err := validateCart(c); err != nil {
		return nil, false, err
	}

	claimed, existing, err := s.claim(ctx, idemKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("idempotent_replay", true))
		return existing, true, nil
	}

	o := &Order{
		CustomerID:      c.CustomerID,
		CustomerName:    strings.TrimSpace(c.CustomerName),
		CustomerEmail:   strings.TrimSpace(c.CustomerEmail),
		DeliveryAddress: strings.TrimSpace(c.DeliveryAddress),
		Status:          StatusProcessing,
	}
	if o.CustomerID == "" {
		o.CustomerID = NewCustomerID()
	}

	for attempt := 0; attempt < deliveryIDAttempts; attempt++ {
		o.DeliveryID = NewDeliveryID()
		o.Items = make([]OrderItem, 0, len(c.Items))
		for _, it := range c.Items {
			o.Items = append(o.Items, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		err = s.Store.CreateWithReservation(ctx, o)
		if !errors.Is(err, ErrDuplicateDeliveryID) {
			break
		}
		log.Printf("delivery id collision on %s, retrying", o.DeliveryID)
	}
	if err != nil {
		if claimed {
			s.release(ctx, idemKey)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, false, err
	}
	span.SetAttributes(
		attribute.String("delivery_id", o.DeliveryID),
		attribute.Int("items", len(o.Items)),
	)

	if claimed {
		s.remember(ctx, idemKey, o.DeliveryID)
	}
	if s.Redis != nil {
		// cached discounted listing carries quantity_in_stock
		if err := redisx.DropDiscounted(ctx, s.Redis); err != nil {
			log.Printf("discounted cache invalidate: %v", err)
		}
	}
	s.notifyPlaced(ctx, o)
	return o, false, nil
}

// claim takes idemKey for this request. When an earlier request already finished under the
// same key its order is returned; while that request is still running the call is ErrConflict.
// Redis errors are logged and the request proceeds unclaimed.
func (s *Service) claim(ctx context.Context, idemKey string) (bool, *Order, error) {
	if idemKey == "" || s.Redis == nil {
		return false, nil, nil
	}
	key := fmt.Sprintf(redisx.KeyIdemOrderCreate, idemKey)
	won, err := redisx.Claim(ctx, s.Redis, key, redisx.TTLIdempotency)
	if err != nil {
		log.Printf("idempotency claim %s: %v", idemKey, err)
		return false, nil, nil
	}
	if won {
		return true, nil, nil
	}

	id, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// owner released the key between SETNX and GET
		return false, nil, fmt.Errorf("idempotency key %q: previous attempt failed, retry: %w", idemKey, apperr.ErrConflict)
	}
	if err != nil {
		log.Printf("idempotency lookup %s: %v", idemKey, err)
		return false, nil, nil
	}
	if id == redisx.Pending {
		return false, nil, fmt.Errorf("request with idempotency key %q is still in progress: %w", idemKey, apperr.ErrConflict)
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return false, nil, fmt.Errorf("idempotency key %q points at %s: %w", idemKey, id, err)
	}
	return false, o, nil
}

// release and remember outlive a cancelled request so the key never stays pending.
func (s *Service) release(ctx context.Context, idemKey string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, idemKey)).Err(); err != nil {
		log.Printf("release idempotency key %s: %v", idemKey, err)
	}
}

func (s *Service) remember(ctx context.Context, idemKey, deliveryID string) {
	ctx = context.WithoutCancel(ctx)
	key := fmt.Sprintf(redisx.KeyIdemOrderCreate, idemKey)
	if err := s.Redis.Set(ctx, key, deliveryID, redisx.TTLIdempotency).Err(); err != nil {
		log.Printf("store idempotency key %s: %v", idemKey, err)
	}
}

// notifyPlaced runs after commit; failures are logged and never surface to the caller.
func (s *Service) notifyPlaced(ctx context.Context, o *Order) {
	if s.Notifier == nil {
		return
	}
	lines := make([]notify.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, notify.OrderLine{
			ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity, Price: it.Price,
		})
	}
	err := s.Notifier.OrderPlaced(ctx, notify.OrderPlacedPayload{
		DeliveryID:      o.DeliveryID,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		DeliveryAddress: o.DeliveryAddress,
		OrderDate:       o.OrderDate.Format(time.DateOnly),
		Items:           lines,
		TotalPrice:      o.TotalPrice,
	})
	if err != nil {
		log.Printf("order %s placed, notification failed: %v", o.DeliveryID, err)
	}
}

func (s *Service) Get(ctx context.Context, deliveryID string) (*Order, error) {
	return s.Store.Get(ctx, deliveryID)
}

// List filters by status when one is given; an unknown status is a validation error.
func (s *Service) List(ctx context.Context, status string) ([]Order, error) {
	var st Status
	if status != "" {
		var err error
		if st, err = ParseStatus(status); err != nil {
			return nil, err
		}
	}
	return s.Store.List(ctx, st)
}

func (s *Service) History(ctx context.Context, email string) ([]Order, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Missing("email")
	}
	return s.Store.History(ctx, strings.TrimSpace(email))
}

func (s *Service) SetStatus(ctx context.Context, deliveryID, status string) (*Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return s.Store.UpdateStatus(ctx, deliveryID, func(o *Order) error {
		return o.Advance(to, now)
	})
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.Store.Stats(ctx, s.now())
}
