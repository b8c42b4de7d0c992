// Package invoice builds and recomputes invoices and their line items.
// Persistence and numbering sequences belong to the store; the functions
// here are pure so the store can call them inside its atomic units.
package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
	"bizledger-go/internal/tax"
)

// DueDateOffset is applied to the issue date when no due date is specified.
const DueDateOffset = 30 * 24 * time.Hour

// FormatNumber renders a per-user monotonic sequence value as an invoice
// number: INV-{year}-{month}-{sequence}.
func FormatNumber(year int, month time.Month, seq int64) string {
	return fmt.Sprintf("INV-%04d-%02d-%04d", year, int(month), seq)
}

// BuildFromTransaction constructs the invoice spawned by a sale transaction:
// a single line item carrying the transaction's description and amount,
// taxed at the given rate on top (the transaction amount is the pre-tax
// subtotal). The invoice number is left empty for the store to allocate.
func BuildFromTransaction(txn *models.Transaction, customerName string, taxRate decimal.Decimal, now time.Time) (*models.Invoice, error) {
	if customerName == "" {
		customerName = "Walk-in Customer"
	}

	item := models.InvoiceItem{
		Description: txn.Description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   txn.Amount,
		Amount:      txn.Amount,
		TaxIncluded: false,
	}

	inv := &models.Invoice{
		UserId:       txn.UserId,
		CustomerName: customerName,
		IssueDate:    txn.Date,
		DueDate:      txn.Date.Add(DueDateOffset),
		TaxRate:      taxRate,
		Status:       models.InvoiceStatusDraft,
		Currency:     "INR",
		Items:        []models.InvoiceItem{item},
	}

	if err := Recalculate(inv); err != nil {
		return nil, err
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return inv, nil
}

// Recalculate recomputes the invoice's monetary fields from its current
// items: item amounts from quantity and unit price, subtotal as the sum of
// item amounts, then tax and total via the calculator with per-item rate
// overrides. Idempotent: a second call with unchanged items yields identical
// subtotal, tax_amount and total_amount.
func Recalculate(inv *models.Invoice) error {
	subtotal := decimal.Zero
	for i := range inv.Items {
		item := &inv.Items[i]
		item.Amount = item.Quantity.Mul(item.UnitPrice).Round(2)
		subtotal = subtotal.Add(item.Amount)
	}

	breakdown, err := tax.CalculateForInvoice(inv.Items, inv.TaxRate)
	if err != nil {
		return err
	}

	inv.Subtotal = subtotal
	inv.TaxAmount = breakdown.Tax
	inv.TotalAmount = breakdown.Gross
	return nil
}

// CheckPayable returns ErrInvalidState when the invoice cannot be marked
// paid: paid is terminal and cancelled invoices stay cancelled.
func CheckPayable(status string) error {
	switch status {
	case models.InvoiceStatusPaid:
		return fmt.Errorf("%w: invoice is already paid", store.ErrInvalidState)
	case models.InvoiceStatusCancelled:
		return fmt.Errorf("%w: invoice is cancelled", store.ErrInvalidState)
	}
	return nil
}

// ReceiptType picks the transaction type for the cash receipt created at
// mark-as-paid. An invoice that already has a generating sale transaction
// gets an "other" receipt so revenue is not counted twice; an invoice
// created directly gets a "sale" receipt that credits the account.
func ReceiptType(inv *models.Invoice) string {
	if inv.RelatedTransactionId != "" {
		return models.TransactionTypeOther
	}
	return models.TransactionTypeSale
}
