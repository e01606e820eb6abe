// Package stock keeps quantity_in_stock non-negative under concurrent checkout.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Ledger struct{ DB *pgxpool.Pool }

// Reserve locks the product row (FOR UPDATE) and decrements it by qty. It must run
// inside the caller's transaction; on error nothing is changed and the caller rolls back.
func (l *Ledger) Reserve(ctx context.Context, q postgres.Querier, productID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperr.Validation("quantity", "must be at least 1")
	}
	var stock int
	err := q.QueryRow(ctx, `SELECT quantity_in_stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("product", productID)
	}
	if err != nil {
		return 0, fmt.Errorf("lock product %d: %w", productID, err)
	}
	if stock < qty {
		return stock, &apperr.InsufficientStockError{ProductID: productID, Requested: qty, Available: stock}
	}

	var remaining int
	err = q.QueryRow(ctx, `
		UPDATE products SET quantity_in_stock = quantity_in_stock - $2, updated_at = NOW()
		WHERE id=$1 AND quantity_in_stock >= $2
		RETURNING quantity_in_stock`, productID, qty).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// unreachable while the row lock is held
		return stock, &apperr.InsufficientStockError{ProductID: productID, Requested: qty, Available: stock}
	}
	if err != nil {
		return 0, fmt.Errorf("decrement product %d: %w", productID, err)
	}
	return remaining, nil
}

// CheckAndReserve is Reserve in its own transaction.
func (l *Ledger) CheckAndReserve(ctx context.Context, productID int64, qty int) (int, error) {
	var remaining int
	err := postgres.InTx(ctx, l.DB, func(tx pgx.Tx) error {
		var err error
		remaining, err = l.Reserve(ctx, tx, productID, qty)
		return err
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (l *Ledger) Available(ctx context.Context, productID int64) (int, error) {
	var n int
	err := l.DB.QueryRow(ctx, `SELECT quantity_in_stock FROM products WHERE id=$1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("product", productID)
	}
	return n, err
}

// SetQuantity is the administrative restock/correction path.
func (l *Ledger) SetQuantity(ctx context.Context, productID int64, qty int) error {
	if qty < 0 {
		return apperr.Validation("quantity_in_stock", "must be >= 0")
	}
	ct, err := l.DB.Exec(ctx, `UPDATE products SET quantity_in_stock=$2, updated_at=NOW() WHERE id=$1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("product", productID)
	}
	return nil
}
