package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/ariefcatur/go-petstore/internal/stock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateDeliveryID = errors.New("delivery id already taken")

type Repo struct {
	DB       *pgxpool.Pool
	Products *catalog.Repo
	Ledger   *stock.Ledger
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db, Products: &catalog.Repo{DB: db}, Ledger: &stock.Ledger{DB: db}}
}

// CreateWithReservation reserves stock for every item, snapshots name and price, and
// inserts the header and items. All of it commits together or not at all.
func (r *Repo) CreateWithReservation(ctx context.Context, o *Order) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		ids := make([]int64, 0, len(o.Items))
		for _, it := range o.Items {
			ids = append(ids, it.ProductID)
		}
		// lock in id order so concurrent checkouts cannot deadlock
		locked, err := r.Products.LockMany(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		byID := make(map[int64]catalog.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		now := time.Now()
		for i := range o.Items {
			it := &o.Items[i]
			p, ok := byID[it.ProductID]
			if !ok {
				return apperr.NotFound("product", it.ProductID)
			}
			if _, err := r.Ledger.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			it.ProductName = p.Name
			it.Price = p.EffectivePrice(now)
		}
		o.recomputeTotal()

		err = tx.QueryRow(ctx, `
			INSERT INTO orders (delivery_id, customer_id, customer_name, customer_email, total_price,
				delivery_address, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id, order_date, created_at, updated_at`,
			o.DeliveryID, o.CustomerID, o.CustomerName, o.CustomerEmail, o.TotalPrice,
			o.DeliveryAddress, o.Status,
		).Scan(&o.ID, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
		if postgres.IsUniqueViolation(err, "orders_delivery_id_key") {
			return ErrDuplicateDeliveryID
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
				VALUES ($1,$2,$3,$4,$5)`,
				o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price,
			); err != nil {
				return fmt.Errorf("insert item for product %d: %w", it.ProductID, err)
			}
		}
		return nil
	})
}

const orderColumns = `id, delivery_id, customer_id, customer_name, customer_email, delivery_address,
	status, order_date, delivery_date, total_price, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.DeliveryID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail,
		&o.DeliveryAddress, &o.Status, &o.OrderDate, &o.DeliveryDate, &o.TotalPrice,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, deliveryID string) (*Order, error) {
	return r.get(ctx, r.DB, `SELECT `+orderColumns+` FROM orders WHERE delivery_id=$1`, deliveryID)
}

func (r *Repo) get(ctx context.Context, q postgres.Querier, sql, deliveryID string) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, deliveryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order", deliveryID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", deliveryID, err)
	}
	if err := r.attachItems(ctx, q, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders newest first; an empty status means all.
func (r *Repo) List(ctx context.Context, status Status) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1) ORDER BY order_date DESC, id DESC`, string(status))
}

func (r *Repo) History(ctx context.Context, email string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE LOWER(customer_email) = LOWER($1) ORDER BY order_date DESC, id DESC`, email)
}

func (r *Repo) list(ctx context.Context, sql string, arg any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ptrs []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, r.DB, ptrs); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *Repo) attachItems(ctx context.Context, q postgres.Querier, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*Order, len(list))
	ids := make([]int64, 0, len(list))
	for _, o := range list {
		o.Items = []OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := q.Query(ctx, `SELECT order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID int64
		var it OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}

// UpdateStatus locks the order, lets fn mutate it and persists status and delivery date.
func (r *Repo) UpdateStatus(ctx context.Context, deliveryID string, fn func(o *Order) error) (*Order, error) {
	var out *Order
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		o, err := r.get(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE delivery_id=$1 FOR UPDATE`, deliveryID)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE orders SET status=$2, delivery_date=$3, updated_at=NOW()
			WHERE id=$1 RETURNING updated_at`,
			o.ID, o.Status, o.DeliveryDate,
		).Scan(&o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order %s: %w", deliveryID, err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context, today time.Time) (*Stats, error) {
	var s Stats
	day := truncateDay(today)
	err := r.DB.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'in-transit'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE order_date = $1::date),
			COUNT(*) FILTER (WHERE order_date >= $1::date - 7),
			COUNT(*) FILTER (WHERE status = 'processing' AND order_date < $1::date - 2),
			COALESCE(SUM(total_price) FILTER (WHERE status = 'delivered'), 0),
			COALESCE(AVG(delivery_date - order_date) FILTER (WHERE delivery_date IS NOT NULL), 0)::float8
		FROM orders`, day,
	).Scan(&s.TotalOrders, &s.Processing, &s.InTransit, &s.Delivered, &s.TodayOrders,
		&s.RecentOrders, &s.UrgentOrders, &s.DeliveredRevenue, &s.AvgDeliveryDays)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return &s, nil
}
