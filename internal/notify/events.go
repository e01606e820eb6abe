package notify

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventDiscountAvailable = "DiscountAvailable"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	DeliveryID      string          `json:"delivery_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	DeliveryAddress string          `json:"delivery_address"`
	OrderDate       string          `json:"order_date"`
	Items           []OrderLine     `json:"items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// DiscountPayload is one notification for one subscriber about one product.
type DiscountPayload struct {
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
}
