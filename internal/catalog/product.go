package catalog

import (
	"time"

	"github.com/ariefcatur/go-petstore/internal/validate"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name" validate:"notblank"`
	Model             string              `json:"model" validate:"notblank"`
	SerialNumber      string              `json:"serial_number" validate:"notblank"`
	Description       string              `json:"description"`
	QuantityInStock   int                 `json:"quantity_in_stock" validate:"gte=0"`
	Price             decimal.Decimal     `json:"price" validate:"gte=0"`
	Cost              decimal.Decimal     `json:"cost"`
	OriginalPrice     decimal.NullDecimal `json:"original_price"`
	DiscountRate      decimal.Decimal     `json:"discount_rate"`
	DiscountStartDate *time.Time          `json:"discount_start_date"`
	DiscountEndDate   *time.Time          `json:"discount_end_date"`
	Category          string              `json:"category"`
	WarrantyStatus    string              `json:"warranty_status"`
	Distributor       string              `json:"distributor"`
	ImageURL          *string             `json:"image_url"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

var half = decimal.RequireFromString("0.5")

// Validate checks the fields a new catalog entry must carry.
func (p *Product) Validate() error {
	return validate.Struct(p)
}

// EnsureCost fills an unset cost with half the current price.
func (p *Product) EnsureCost() {
	if p.Cost.IsZero() && p.Price.IsPositive() {
		p.Cost = p.Price.Mul(half).Round(2)
	}
}
