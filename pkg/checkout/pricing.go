// Package checkout holds the pure pricing rules applied when a cart becomes an
// order. Amounts are fixed-point and rounded to cents.
package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PricingPolicy holds the storefront's shipping and tax constants.
type PricingPolicy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              enums.Currency
}

// DefaultPolicy is free shipping above 100.00, 15.00 otherwise, and 10% tax in USD.
func DefaultPolicy() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShipping:          decimal.NewFromInt(15),
		TaxRate:               decimal.RequireFromString("0.10"),
		Currency:              enums.CurrencyUSD,
	}
}

// PolicyFromConfig builds the policy from parsed checkout configuration.
func PolicyFromConfig(values config.PricingValues) (PricingPolicy, error) {
	currency := enums.CurrencyUSD
	if values.Currency != "" {
		parsed, err := enums.ParseCurrency(values.Currency)
		if err != nil {
			return PricingPolicy{}, fmt.Errorf("checkout currency: %w", err)
		}
		currency = parsed
	}
	return PricingPolicy{
		FreeShippingThreshold: values.FreeShippingThreshold,
		FlatShipping:          values.FlatShipping,
		TaxRate:               values.TaxRate,
		Currency:              currency,
	}, nil
}

// Line is a priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// LineQuote is the per-line breakdown copied onto order items.
type LineQuote struct {
	Total decimal.Decimal
	Tax   decimal.Decimal
}

// Quote is the order-level pricing breakdown.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Lines    []LineQuote
}

// Quote prices the lines. Shipping is waived only when the subtotal is
// strictly above the threshold. Tax is computed on the subtotal, not summed
// from the rounded line taxes.
func (p PricingPolicy) Quote(lines []Line) Quote {
	q := Quote{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Lines:    make([]LineQuote, len(lines)),
	}
	for i, line := range lines {
		total := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		q.Lines[i] = LineQuote{
			Total: total,
			Tax:   total.Mul(p.TaxRate).Round(2),
		}
		q.Subtotal = q.Subtotal.Add(total)
	}
	q.Subtotal = q.Subtotal.Round(2)

	q.Shipping = p.FlatShipping.Round(2)
	if q.Subtotal.GreaterThan(p.FreeShippingThreshold) {
		q.Shipping = decimal.Zero
	}
	q.Tax = q.Subtotal.Mul(p.TaxRate).Round(2)
	q.Total = q.Subtotal.Sub(q.Discount).Add(q.Shipping).Add(q.Tax).Round(2)
	return q
}
