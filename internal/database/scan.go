package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
)

// dateLayout is how filing period boundaries are stored; plain dates keep
// the find-or-create equality match exact.
const dateLayout = "2006-01-02"

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse decimal %q: %w", s, err)
	}
	return d, nil
}

func scanAccount(row scanner) (*models.Account, error) {
	var account models.Account
	var balanceStr string
	err := row.Scan(&account.Id, &account.UserId, &account.Name, &balanceStr,
		&account.Currency, &account.IsDefault, &account.IsActive,
		&account.LastTransactionId, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if account.Balance, err = parseDecimal(balanceStr); err != nil {
		return nil, err
	}
	return &account, nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var txn models.Transaction
	var amountStr, balanceAfterStr string
	err := row.Scan(&txn.Id, &txn.UserId, &txn.AccountId, &amountStr, &txn.Description,
		&txn.TransactionType, &txn.Category, &txn.Date, &txn.ReferenceNumber,
		&txn.PaymentMethod, &txn.Notes, &txn.RelatedInvoiceId, &txn.RelatedTaxFilingId,
		&balanceAfterStr, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if txn.Amount, err = parseDecimal(amountStr); err != nil {
		return nil, err
	}
	if txn.BalanceAfter, err = parseDecimal(balanceAfterStr); err != nil {
		return nil, err
	}
	return &txn, nil
}

func scanInvoice(row scanner) (*models.Invoice, error) {
	var inv models.Invoice
	var subtotalStr, taxRateStr, taxAmountStr, totalStr string
	var paymentDate sql.NullTime
	err := row.Scan(&inv.Id, &inv.UserId, &inv.InvoiceNumber, &inv.CustomerName,
		&inv.CustomerEmail, &inv.CustomerAddress, &inv.CustomerPhone, &inv.CustomerTaxId,
		&inv.IssueDate, &inv.DueDate, &subtotalStr, &taxRateStr, &taxAmountStr, &totalStr,
		&inv.Status, &inv.Notes, &inv.Currency, &paymentDate, &inv.PaymentReference,
		&inv.PaymentMethod, &inv.RelatedTransactionId, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if inv.Subtotal, err = parseDecimal(subtotalStr); err != nil {
		return nil, err
	}
	if inv.TaxRate, err = parseDecimal(taxRateStr); err != nil {
		return nil, err
	}
	if inv.TaxAmount, err = parseDecimal(taxAmountStr); err != nil {
		return nil, err
	}
	if inv.TotalAmount, err = parseDecimal(totalStr); err != nil {
		return nil, err
	}
	if paymentDate.Valid {
		inv.PaymentDate = paymentDate.Time
	}
	return &inv, nil
}

func scanInvoiceItem(row scanner) (*models.InvoiceItem, error) {
	var item models.InvoiceItem
	var quantityStr, unitPriceStr, amountStr string
	var taxRate sql.NullString
	err := row.Scan(&item.Id, &item.InvoiceId, &item.Description, &quantityStr,
		&unitPriceStr, &amountStr, &item.TaxIncluded, &taxRate, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if item.Quantity, err = parseDecimal(quantityStr); err != nil {
		return nil, err
	}
	if item.UnitPrice, err = parseDecimal(unitPriceStr); err != nil {
		return nil, err
	}
	if item.Amount, err = parseDecimal(amountStr); err != nil {
		return nil, err
	}
	if taxRate.Valid {
		rate, err := parseDecimal(taxRate.String)
		if err != nil {
			return nil, err
		}
		item.TaxRate = &rate
	}
	return &item, nil
}

func scanFiling(row scanner) (*models.TaxFiling, error) {
	var filing models.TaxFiling
	var periodStartStr, periodEndStr string
	var salesStr, collectedStr, paidStr, netStr string
	err := row.Scan(&filing.Id, &filing.UserId, &periodStartStr, &periodEndStr,
		&filing.TaxType, &filing.PeriodType, &salesStr, &collectedStr, &paidStr, &netStr,
		&filing.TransactionCount, &filing.Status, &filing.AutoGenerated,
		&filing.CreatedAt, &filing.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if filing.PeriodStart, err = time.Parse(dateLayout, periodStartStr); err != nil {
		return nil, fmt.Errorf("failed to parse period start %q: %w", periodStartStr, err)
	}
	if filing.PeriodEnd, err = time.Parse(dateLayout, periodEndStr); err != nil {
		return nil, fmt.Errorf("failed to parse period end %q: %w", periodEndStr, err)
	}
	if filing.TotalSales, err = parseDecimal(salesStr); err != nil {
		return nil, err
	}
	if filing.TotalTaxCollected, err = parseDecimal(collectedStr); err != nil {
		return nil, err
	}
	if filing.TotalTaxPaid, err = parseDecimal(paidStr); err != nil {
		return nil, err
	}
	if filing.NetTaxLiability, err = parseDecimal(netStr); err != nil {
		return nil, err
	}
	return &filing, nil
}

func scanFilingItem(row scanner) (*models.TaxFilingItem, error) {
	var item models.TaxFilingItem
	var amountStr, taxAmountStr string
	err := row.Scan(&item.Id, &item.FilingId, &item.TransactionId, &item.InvoiceId,
		&amountStr, &taxAmountStr, &item.ItemType, &item.IncludedOn)
	if err != nil {
		return nil, err
	}
	if item.Amount, err = parseDecimal(amountStr); err != nil {
		return nil, err
	}
	if item.TaxAmount, err = parseDecimal(taxAmountStr); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanSubmission(row scanner) (*models.TaxSubmission, error) {
	var sub models.TaxSubmission
	var liabilityStr string
	err := row.Scan(&sub.Id, &sub.UserId, &sub.FilingId, &sub.SubmissionDate,
		&liabilityStr, &sub.PaymentReference, &sub.ConfirmationNumber,
		&sub.Status, &sub.Notes, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sub.TotalTaxLiability, err = parseDecimal(liabilityStr); err != nil {
		return nil, err
	}
	return &sub, nil
}
