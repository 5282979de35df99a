package models

import "github.com/shopspring/decimal"

// ProductSize is product variant available for purchase
type ProductSize struct {
	ID          int64
	ProductID   int64
	ProductName string
	SizeName    string
	Price       decimal.Decimal
	Stock       int
}

// CartLine is priced cart item
type CartLine struct {
	ProductSizeID int64
	ProductName   string
	SizeName      string
	UnitPrice     decimal.Decimal
	Quantity      int
}

// Name returns line name shown to payer
func (l CartLine) Name() string {
	if l.SizeName == "" {
		return l.ProductName
	}
	return l.ProductName + " - " + l.SizeName
}

// Subtotal returns unit price multiplied by quantity
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums cart lines
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
