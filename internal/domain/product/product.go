package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInactive          = errors.New("product: not available for sale")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// Product carries the stock ledger. StockQuantity is decremented by checkout
// and restored by compensation; it never goes negative.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	SalePrice     decimal.Decimal // zero when not on sale
	StockQuantity int
	Active        bool
	UpdatedAt     time.Time
}

// UnitDiscount is the product-level discount: list price minus sale price,
// floored at zero, and only when the sale price is positive and not above the
// list price.
func (p *Product) UnitDiscount() decimal.Decimal {
	if p.SalePrice.IsPositive() && p.SalePrice.LessThanOrEqual(p.Price) {
		return p.Price.Sub(p.SalePrice)
	}
	return decimal.Zero
}

func (p *Product) DeductStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.StockQuantity {
		return ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	p.touch()
	return nil
}

func (p *Product) RestoreStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.StockQuantity += quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
