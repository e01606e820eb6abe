package discounts

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/ariefcatur/go-petstore/internal/wishlist"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Window bounds when a discount counts as on sale. Nil bounds are open.
type Window struct {
	Start *time.Time `json:"discount_start_date,omitempty"`
	End   *time.Time `json:"discount_end_date,omitempty"`
}

type PGStore struct {
	DB       *pgxpool.Pool
	Products *catalog.Repo
	Wishlist *wishlist.Repo
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db, Products: &catalog.Repo{DB: db}, Wishlist: &wishlist.Repo{DB: db}}
}

// Apply discounts every existing product among ids in one transaction and returns the
// updated products with their wishlist subscribers. Unknown ids are skipped.
func (s *PGStore) Apply(ctx context.Context, ids []int64, rate decimal.Decimal, w Window) ([]catalog.Product, []wishlist.Entry, error) {
	var updated []catalog.Product
	var subs []wishlist.Entry
	err := postgres.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		locked, err := s.Products.LockMany(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		if len(locked) == 0 {
			return apperr.NotFound("product", fmt.Sprint(ids))
		}
		for i := range locked {
			p := &locked[i]
			if err := p.ApplyDiscount(rate); err != nil {
				return err
			}
			// an apply without a window replaces any earlier one with an open window
			if err := p.SetDiscountWindow(w.Start, w.End); err != nil {
				return err
			}
			if err := s.Products.SavePricing(ctx, tx, p); err != nil {
				return fmt.Errorf("save product %d: %w", p.ID, err)
			}
		}
		updated = locked

		found := make([]int64, 0, len(locked))
		for _, p := range locked {
			found = append(found, p.ID)
		}
		subs, err = s.Wishlist.Subscribers(ctx, tx, found)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, subs, nil
}

func (s *PGStore) Remove(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	var updated []catalog.Product
	err := postgres.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		locked, err := s.Products.LockMany(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		if len(locked) == 0 {
			return apperr.NotFound("product", fmt.Sprint(ids))
		}
		for i := range locked {
			p := &locked[i]
			p.RemoveDiscount()
			if err := s.Products.SavePricing(ctx, tx, p); err != nil {
				return fmt.Errorf("save product %d: %w", p.ID, err)
			}
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PGStore) Discounted(ctx context.Context) ([]catalog.Product, error) {
	return s.Products.ListDiscounted(ctx)
}
