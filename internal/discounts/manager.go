// Package discounts applies and removes discount rates across product batches and tells
// wishlist subscribers about new sales.
package discounts

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/notify"
	"github.com/ariefcatur/go-petstore/internal/redisx"
	"github.com/ariefcatur/go-petstore/internal/wishlist"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	Apply(ctx context.Context, ids []int64, rate decimal.Decimal, w Window) ([]catalog.Product, []wishlist.Entry, error)
	Remove(ctx context.Context, ids []int64) ([]catalog.Product, error)
	Discounted(ctx context.Context) ([]catalog.Product, error)
}

type ApplyResult struct {
	UpdatedProducts    []catalog.Product `json:"updated_products"`
	NotifiedUsersCount int               `json:"notified_users_count"`
}

// Manager is the discount campaign manager. Redis is optional and caches Discounted.
type Manager struct {
	Store     Store
	Notifier  notify.Notifier
	Redis     *redis.Client
	Campaigns CampaignStore
	Now       func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func validateIDs(ids []int64) error {
	if len(ids) == 0 {
		return apperr.Validation("product_ids", "must not be empty")
	}
	for _, id := range ids {
		if id <= 0 {
			return apperr.Validation("product_ids", "ids must be positive")
		}
	}
	return nil
}

// Apply sets rate on every known product in ids, then sends one notification per
// wishlist entry on those products. Notification failures never fail the call.
func (m *Manager) Apply(ctx context.Context, ids []int64, rate decimal.Decimal, w Window) (*ApplyResult, error) {
	ctx, span := otel.Tracer("discounts").Start(ctx, "discounts.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("discount_rate", rate.String()), attribute.Int("products", len(ids)))

	if err := catalog.ValidateRate(rate); err != nil {
		return nil, err
	}
	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return nil, apperr.Validation("discount_end_date", "must not be before discount_start_date")
	}
	// subscribers are only told about sales they can still buy at
	if w.End != nil && w.End.Before(m.now()) {
		return nil, apperr.Validation("discount_end_date", "must not be in the past")
	}

	updated, subs, err := m.Store.Apply(ctx, ids, rate, w)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	m.Invalidate(ctx)

	notified := m.notifySubscribers(ctx, updated, subs)
	span.SetAttributes(attribute.Int("notified_users", notified))
	return &ApplyResult{UpdatedProducts: updated, NotifiedUsersCount: notified}, nil
}

// notifySubscribers returns how many distinct users got at least one notification out.
func (m *Manager) notifySubscribers(ctx context.Context, products []catalog.Product, subs []wishlist.Entry) int {
	if m.Notifier == nil {
		return 0
	}
	byID := make(map[int64]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	reached := map[string]struct{}{}
	for _, e := range subs {
		p, ok := byID[e.ProductID]
		if !ok {
			continue
		}
		err := m.Notifier.DiscountAvailable(ctx, notify.DiscountPayload{
			UserID:        e.UserID,
			UserEmail:     e.UserEmail,
			ProductID:     p.ID,
			ProductName:   p.Name,
			OriginalPrice: p.BasePrice(),
			NewPrice:      p.Price,
			DiscountRate:  p.DiscountRate,
		})
		if err != nil {
			log.Printf("discount notification user=%s product=%d: %v", e.UserID, p.ID, err)
			continue
		}
		reached[e.UserID] = struct{}{}
	}
	return len(reached)
}

func (m *Manager) Remove(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	ctx, span := otel.Tracer("discounts").Start(ctx, "discounts.Remove")
	defer span.End()

	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	updated, err := m.Store.Remove(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	m.Invalidate(ctx)
	return updated, nil
}

func (m *Manager) Discounted(ctx context.Context) ([]catalog.Product, error) {
	if m.Redis != nil {
		var cached []catalog.Product
		err := redisx.GetJSON(ctx, m.Redis, redisx.KeyDiscountedProducts, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redisx.ErrCacheMiss) {
			log.Printf("discounted cache read: %v", err)
		}
	}

	out, err := m.Store.Discounted(ctx)
	if err != nil {
		return nil, err
	}
	if m.Redis != nil {
		if err := redisx.SetJSON(ctx, m.Redis, redisx.KeyDiscountedProducts, out, redisx.TTLDiscounted); err != nil {
			log.Printf("discounted cache write: %v", err)
		}
	}
	return out, nil
}

// Invalidate drops the cached Discounted listing. Stock writers call it too.
func (m *Manager) Invalidate(ctx context.Context) {
	if m.Redis == nil {
		return
	}
	if err := redisx.DropDiscounted(ctx, m.Redis); err != nil {
		log.Printf("discounted cache invalidate: %v", err)
	}
}
