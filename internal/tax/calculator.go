// Package tax implements the pure GST arithmetic, filing-period derivation
// and the filing/submission state machines.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
)

// Breakdown is the result of a GST calculation. Net + Tax = Gross exactly.
// CGST and SGST are the domestic halves of Tax and always sum to it; IGST is
// zero (inter-state supplies are not modeled).
type Breakdown struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
	CGST  decimal.Decimal
	SGST  decimal.Decimal
	IGST  decimal.Decimal
}

// Calculate computes GST for an amount at the given percentage rate. When
// taxIncluded is set the amount is treated as gross and the net is backed
// out; otherwise the amount is net and tax is added on top. Rounding to two
// decimal places happens once at the end, round half up, never per
// intermediate step.
func Calculate(amount, rate decimal.Decimal, taxIncluded bool) (Breakdown, error) {
	if amount.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: amount must not be negative, got %s", store.ErrInvalidInput, amount)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return Breakdown{}, fmt.Errorf("%w: tax rate must be within [0,100], got %s", store.ErrInvalidInput, rate)
	}

	var net, tax, gross decimal.Decimal
	if taxIncluded {
		divisor := one.Add(rate.Div(hundred))
		net = amount.DivRound(divisor, 2)
		gross = amount.Round(2)
		tax = gross.Sub(net)
	} else {
		net = amount.Round(2)
		tax = amount.Mul(rate).DivRound(hundred, 2)
		gross = net.Add(tax)
	}

	// Halve the tax for CGST and give SGST the remainder so the two always
	// sum exactly to the tax amount, odd cents included.
	cgst := tax.DivRound(two, 2)
	sgst := tax.Sub(cgst)

	return Breakdown{
		Net:   net,
		Tax:   tax,
		Gross: gross,
		CGST:  cgst,
		SGST:  sgst,
		IGST:  decimal.Zero,
	}, nil
}

// CalculateForInvoice computes the accumulated GST over a set of invoice
// items, honoring each item's tax_included flag and per-item rate override
// with fallback to the invoice default rate.
func CalculateForInvoice(items []models.InvoiceItem, defaultRate decimal.Decimal) (Breakdown, error) {
	total := Breakdown{
		Net:   decimal.Zero,
		Tax:   decimal.Zero,
		Gross: decimal.Zero,
		CGST:  decimal.Zero,
		SGST:  decimal.Zero,
		IGST:  decimal.Zero,
	}

	for _, item := range items {
		rate := defaultRate
		if item.TaxRate != nil {
			rate = *item.TaxRate
		}
		b, err := Calculate(item.Amount, rate, item.TaxIncluded)
		if err != nil {
			return Breakdown{}, fmt.Errorf("item %q: %w", item.Description, err)
		}
		total.Net = total.Net.Add(b.Net)
		total.Tax = total.Tax.Add(b.Tax)
		total.Gross = total.Gross.Add(b.Gross)
		total.CGST = total.CGST.Add(b.CGST)
		total.SGST = total.SGST.Add(b.SGST)
	}

	return total, nil
}
