package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const reviewColumns = `id, product_id, product_name, user_id, user_name, user_email, rating, comment,
	status, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (*Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.ProductID, &r.ProductName, &r.UserID, &r.UserName, &r.UserEmail,
		&r.Rating, &r.Comment, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create stores rv as pending. The product must exist; its name is snapshotted.
func (repo *Repo) Create(ctx context.Context, rv *Review) error {
	if err := rv.Validate(); err != nil {
		return err
	}
	rv.Status = StatusPending
	err := repo.DB.QueryRow(ctx, `
		INSERT INTO reviews (product_id, product_name, user_id, user_name, user_email, rating, comment, status)
		SELECT id, name, $2, $3, $4, $5, $6, $7 FROM products WHERE id=$1
		RETURNING id, product_name, created_at, updated_at`,
		rv.ProductID, rv.UserID, rv.UserName, rv.UserEmail, rv.Rating, rv.Comment, rv.Status,
	).Scan(&rv.ID, &rv.ProductName, &rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("product", rv.ProductID)
	}
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// List returns reviews newest first (all when status is empty) and the pending count.
func (repo *Repo) List(ctx context.Context, status Status) ([]Review, int, error) {
	rows, err := repo.DB.Query(ctx, `SELECT `+reviewColumns+` FROM reviews
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id DESC`, string(status))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var pending int
	if err := repo.DB.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE status='pending'`).Scan(&pending); err != nil {
		return nil, 0, err
	}
	return out, pending, nil
}

func (repo *Repo) Moderate(ctx context.Context, id int64, action string) (*Review, error) {
	var out *Review
	err := postgres.InTx(ctx, repo.DB, func(tx pgx.Tx) error {
		rv, err := scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("review", id)
		}
		if err != nil {
			return err
		}
		if err := rv.Moderate(action); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `UPDATE reviews SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING updated_at`,
			id, rv.Status).Scan(&rv.UpdatedAt)
		if err != nil {
			return err
		}
		out = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
