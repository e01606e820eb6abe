// Package wishlist stores per-user product subscriptions used for discount notifications.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/ariefcatur/go-petstore/internal/validate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	UserID      string    `json:"user_id" validate:"notblank"`
	UserEmail   string    `json:"user_email" validate:"notblank"`
	ProductID   int64     `json:"product_id" validate:"required,gt=0"`
	ProductName string    `json:"product_name"`
	AddedAt     time.Time `json:"added_at"`
}

type Repo struct{ DB *pgxpool.Pool }

// Add snapshots the product name. A second add of the same pair is ErrConflict.
func (r *Repo) Add(ctx context.Context, userID, email string, productID int64) (*Entry, error) {
	userID, email = strings.TrimSpace(userID), strings.TrimSpace(email)
	e := Entry{UserID: userID, UserEmail: email, ProductID: productID}
	if err := validate.Struct(e); err != nil {
		return nil, err
	}

	err := r.DB.QueryRow(ctx, `
		INSERT INTO wishlist (user_id, user_email, product_id, product_name)
		SELECT $1, $2, id, name FROM products WHERE id=$3
		RETURNING product_name, added_at`,
		userID, email, productID,
	).Scan(&e.ProductName, &e.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product", productID)
	}
	if postgres.IsUniqueViolation(err, "") {
		return nil, fmt.Errorf("product %d already in wishlist of %s: %w", productID, userID, apperr.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("add wishlist entry: %w", err)
	}
	return &e, nil
}

func (r *Repo) Remove(ctx context.Context, userID string, productID int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM wishlist WHERE user_id=$1 AND product_id=$2`,
		strings.TrimSpace(userID), productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("wishlist entry", fmt.Sprintf("%s/%d", userID, productID))
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	return r.query(ctx, r.DB, `SELECT user_id, user_email, product_id, product_name, added_at
		FROM wishlist WHERE user_id=$1 ORDER BY added_at DESC, id DESC`, userID)
}

// Subscribers returns every entry on any of productIDs, ordered by product then user.
func (r *Repo) Subscribers(ctx context.Context, q postgres.Querier, productIDs []int64) ([]Entry, error) {
	return r.query(ctx, q, `SELECT user_id, user_email, product_id, product_name, added_at
		FROM wishlist WHERE product_id = ANY($1) ORDER BY product_id, user_id`, productIDs)
}

func (r *Repo) query(ctx context.Context, q postgres.Querier, sql string, arg any) ([]Entry, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.UserEmail, &e.ProductID, &e.ProductName, &e.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
