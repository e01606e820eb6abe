package catalog

import (
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/shopspring/decimal"
)

// The stored price always carries the configured discount; the discount window only
// gates IsOnDiscount and EffectivePrice.

var hundred = decimal.NewFromInt(100)

// ValidateRate accepts rates in (0, 100] with at most two decimal places, the precision
// discount_rate is stored with.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() || rate.GreaterThan(hundred) {
		return apperr.Validation("discount_rate", "must be greater than 0 and at most 100")
	}
	if !rate.Equal(rate.Round(2)) {
		return apperr.Validation("discount_rate", "must have at most 2 decimal places")
	}
	return nil
}

func discounted(base, rate decimal.Decimal) decimal.Decimal {
	return base.Sub(base.Mul(rate).Div(hundred)).Round(2)
}

// ApplyDiscount recomputes Price from the preserved original price. The first call
// captures the current price as OriginalPrice; later calls reuse it, so rates never compound.
func (p *Product) ApplyDiscount(rate decimal.Decimal) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	if !p.OriginalPrice.Valid {
		p.OriginalPrice = decimal.NewNullDecimal(p.Price)
	}
	p.Price = discounted(p.OriginalPrice.Decimal, rate)
	p.DiscountRate = rate
	return nil
}

// RemoveDiscount restores the original price. No-op when nothing is discounted.
func (p *Product) RemoveDiscount() {
	if !p.OriginalPrice.Valid && p.DiscountRate.IsZero() {
		return
	}
	if p.OriginalPrice.Valid {
		p.Price = p.OriginalPrice.Decimal
	}
	p.OriginalPrice = decimal.NullDecimal{}
	p.DiscountRate = decimal.Zero
	p.DiscountStartDate = nil
	p.DiscountEndDate = nil
}

// SetDiscountWindow sets the validity window; nil bounds are open.
func (p *Product) SetDiscountWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.Validation("discount_end_date", "must not be before discount_start_date")
	}
	p.DiscountStartDate = start
	p.DiscountEndDate = end
	return nil
}

// BasePrice is the undiscounted unit price.
func (p *Product) BasePrice() decimal.Decimal {
	if p.OriginalPrice.Valid {
		return p.OriginalPrice.Decimal
	}
	return p.Price
}

func (p *Product) IsOnDiscount(now time.Time) bool {
	if !p.DiscountRate.IsPositive() {
		return false
	}
	if p.DiscountStartDate != nil && now.Before(*p.DiscountStartDate) {
		return false
	}
	if p.DiscountEndDate != nil && now.After(*p.DiscountEndDate) {
		return false
	}
	return true
}

// EffectivePrice is what a customer pays at now. Pure read.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.IsOnDiscount(now) {
		return discounted(p.BasePrice(), p.DiscountRate)
	}
	return p.BasePrice()
}
