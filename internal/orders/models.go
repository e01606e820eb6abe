package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64           `json:"id"`
	DeliveryID      string          `json:"delivery_id"`
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	DeliveryAddress string          `json:"delivery_address"`
	Status          Status          `json:"status"`
	OrderDate       time.Time       `json:"order_date"`
	DeliveryDate    *time.Time      `json:"delivery_date"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem carries name and unit price as they were at checkout.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (o *Order) recomputeTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	o.TotalPrice = total
}

// Advance moves the order forward. Setting the current status again is a no-op.
func (o *Order) Advance(to Status, now time.Time) error {
	if to == o.Status {
		return nil
	}
	if !CanTransition(o.Status, to) {
		return apperr.Validation("status", fmt.Sprintf("cannot move order %s from %s to %s", o.DeliveryID, o.Status, to))
	}
	o.Status = to
	if to == StatusDelivered && o.DeliveryDate == nil {
		d := truncateDay(now)
		o.DeliveryDate = &d
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type CartItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"min=1"`
	// UnitPrice is accepted from clients but the catalog price at checkout is what gets stored.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// Cart fields are validated in declaration order; items are checked one by one afterwards.
type Cart struct {
	CustomerID      string     `json:"customer_id,omitempty"`
	CustomerName    string     `json:"customer_name" validate:"notblank"`
	CustomerEmail   string     `json:"customer_email" validate:"notblank"`
	Items           []CartItem `json:"items" validate:"min=1"`
	DeliveryAddress string     `json:"delivery_address" validate:"notblank"`
}

// Stats backs the delivery dashboard.
type Stats struct {
	TotalOrders      int             `json:"total_orders"`
	Processing       int             `json:"processing"`
	InTransit        int             `json:"in_transit"`
	Delivered        int             `json:"delivered"`
	TodayOrders      int             `json:"today_orders"`
	RecentOrders     int             `json:"recent_orders"`
	UrgentOrders     int             `json:"urgent_orders"`
	DeliveredRevenue decimal.Decimal `json:"delivered_revenue"`
	AvgDeliveryDays  float64         `json:"avg_delivery_days"`
}
