package catalog

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

const productColumns = `id, name, model, serial_number, description, quantity_in_stock, price,
	COALESCE(cost, 0), original_price, discount_rate, discount_start_date, discount_end_date,
	category, warranty_status, distributor, image_url, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Model, &p.SerialNumber, &p.Description, &p.QuantityInStock,
		&p.Price, &p.Cost, &p.OriginalPrice, &p.DiscountRate, &p.DiscountStartDate, &p.DiscountEndDate,
		&p.Category, &p.WarrantyStatus, &p.Distributor, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collect(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products (name, model, serial_number, description, quantity_in_stock, price, cost,
			category, warranty_status, distributor, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Model, p.SerialNumber, p.Description, p.QuantityInStock, p.Price, p.Cost,
		p.Category, p.WarrantyStatus, p.Distributor, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if postgres.IsUniqueViolation(err, "products_serial_number_key") {
		return fmt.Errorf("serial number %q already exists: %w", p.SerialNumber, apperr.ErrConflict)
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Product, error) {
	return r.get(ctx, r.DB, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
}

func (r *Repo) get(ctx context.Context, q postgres.Querier, sql string, id int64) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context, category string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR category = $1) ORDER BY created_at DESC, id DESC`, category)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListDiscounted returns every product with a configured discount, regardless of window.
func (r *Repo) ListDiscounted(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE discount_rate > 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// LockMany locks the existing products among ids in id order. Unknown ids are absent from the result.
func (r *Repo) LockMany(ctx context.Context, q postgres.Querier, ids []int64) ([]Product, error) {
	rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// SavePricing persists the Pricing Engine fields of p.
func (r *Repo) SavePricing(ctx context.Context, q postgres.Querier, p *Product) error {
	err := q.QueryRow(ctx, `
		UPDATE products
		SET price=$2, original_price=$3, discount_rate=$4, discount_start_date=$5, discount_end_date=$6,
		    updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at`,
		p.ID, p.Price, p.OriginalPrice, p.DiscountRate, p.DiscountStartDate, p.DiscountEndDate,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("product", p.ID)
	}
	return err
}
