package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types. Sign is derived from the type when a transaction is
// applied to an account balance: sale credits, expense debits, transfer and
// other leave the balance untouched.
const (
	TransactionTypeSale     = "sale"
	TransactionTypeExpense  = "expense"
	TransactionTypeTransfer = "transfer"
	TransactionTypeOther    = "other"
)

// Invoice statuses.
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusSent          = "sent"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusCancelled     = "cancelled"
	InvoiceStatusOverdue       = "overdue"
	InvoiceStatusPartiallyPaid = "partially_paid"
)

// Tax types and filing period types.
const (
	TaxTypeGST       = "gst"
	TaxTypeIncomeTax = "income_tax"
	TaxTypeOther     = "other"

	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodAnnually  = "annually"
)

// Tax filing statuses.
const (
	FilingStatusDraft     = "draft"
	FilingStatusSubmitted = "submitted"
	FilingStatusAccepted  = "accepted"
	FilingStatusRejected  = "rejected"
	FilingStatusPending   = "pending"
)

// Tax submission statuses.
const (
	SubmissionStatusPending         = "pending"
	SubmissionStatusSubmitted       = "submitted"
	SubmissionStatusAccepted        = "accepted"
	SubmissionStatusRejected        = "rejected"
	SubmissionStatusPaymentPending  = "payment_pending"
	SubmissionStatusPaymentComplete = "payment_complete"
)

// CategoryTaxPayment is the transaction category used for tax payment
// expenses created by filing submission. The filing aggregation recognizes
// expenses in this category as tax already paid.
const CategoryTaxPayment = "Tax Payment"

// User represents a merchant in the system. Credentials live with the
// identity collaborator; this core only stores the owner row.
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Account represents a money account owned by a user. Every user has exactly
// one account with IsDefault set; transactions that do not name an account
// resolve to it. Version is the optimistic-lock counter for balance updates.
type Account struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Name              string          `db:"name"`
	Balance           decimal.Decimal `db:"balance"`
	Currency          string          `db:"currency"`
	IsDefault         bool            `db:"is_default"`
	IsActive          bool            `db:"is_active"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Transaction represents a single ledger movement. Amount is always stored
// positive; the balance effect is derived from TransactionType.
type Transaction struct {
	Id                 string          `db:"id"`
	UserId             string          `db:"user_id"`
	AccountId          string          `db:"account_id"`
	Amount             decimal.Decimal `db:"amount"`
	Description        string          `db:"description"`
	TransactionType    string          `db:"transaction_type"`
	Category           string          `db:"category"`
	Date               time.Time       `db:"date"`
	ReferenceNumber    string          `db:"reference_number"`
	PaymentMethod      string          `db:"payment_method"`
	Notes              string          `db:"notes"`
	RelatedInvoiceId   string          `db:"related_invoice_id"`
	RelatedTaxFilingId string          `db:"related_tax_filing_id"`
	BalanceAfter       decimal.Decimal `db:"balance_after"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Invoice represents a customer invoice with GST fields. Subtotal, TaxAmount
// and TotalAmount are always recomputed from the items, never hand-edited.
type Invoice struct {
	Id                   string          `db:"id"`
	UserId               string          `db:"user_id"`
	InvoiceNumber        string          `db:"invoice_number"`
	CustomerName         string          `db:"customer_name"`
	CustomerEmail        string          `db:"customer_email"`
	CustomerAddress      string          `db:"customer_address"`
	CustomerPhone        string          `db:"customer_phone"`
	CustomerTaxId        string          `db:"customer_tax_id"`
	IssueDate            time.Time       `db:"issue_date"`
	DueDate              time.Time       `db:"due_date"`
	Subtotal             decimal.Decimal `db:"subtotal"`
	TaxRate              decimal.Decimal `db:"tax_rate"`
	TaxAmount            decimal.Decimal `db:"tax_amount"`
	TotalAmount          decimal.Decimal `db:"total_amount"`
	Status               string          `db:"status"`
	Notes                string          `db:"notes"`
	Currency             string          `db:"currency"`
	PaymentDate          time.Time       `db:"payment_date"`
	PaymentReference     string          `db:"payment_reference"`
	PaymentMethod        string          `db:"payment_method"`
	RelatedTransactionId string          `db:"related_transaction_id"`
	Items                []InvoiceItem   `db:"-"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// InvoiceItem is a line item owned exclusively by one invoice. TaxRate
// overrides the invoice default when non-nil.
type InvoiceItem struct {
	Id          string           `db:"id"`
	InvoiceId   string           `db:"invoice_id"`
	Description string           `db:"description"`
	Quantity    decimal.Decimal  `db:"quantity"`
	UnitPrice   decimal.Decimal  `db:"unit_price"`
	Amount      decimal.Decimal  `db:"amount"`
	TaxIncluded bool             `db:"tax_included"`
	TaxRate     *decimal.Decimal `db:"tax_rate"`
	CreatedAt   time.Time        `db:"created_at"`
}

// TaxFiling aggregates transactions and invoices over one non-overlapping
// period per user and tax type.
type TaxFiling struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	PeriodStart       time.Time       `db:"period_start"`
	PeriodEnd         time.Time       `db:"period_end"`
	TaxType           string          `db:"tax_type"`
	PeriodType        string          `db:"period_type"`
	TotalSales        decimal.Decimal `db:"total_sales"`
	TotalTaxCollected decimal.Decimal `db:"total_tax_collected"`
	TotalTaxPaid      decimal.Decimal `db:"total_tax_paid"`
	NetTaxLiability   decimal.Decimal `db:"net_tax_liability"`
	TransactionCount  int             `db:"transaction_count"`
	Status            string          `db:"status"`
	AutoGenerated     bool            `db:"auto_generated"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// TaxFilingItem links a transaction or an invoice into a filing. The linkage
// is bookkeeping detail; re-running the aggregation is the source of truth.
type TaxFilingItem struct {
	Id            string          `db:"id"`
	FilingId      string          `db:"filing_id"`
	TransactionId string          `db:"transaction_id"`
	InvoiceId     string          `db:"invoice_id"`
	Amount        decimal.Decimal `db:"amount"`
	TaxAmount     decimal.Decimal `db:"tax_amount"`
	ItemType      string          `db:"item_type"`
	IncludedOn    time.Time       `db:"included_on"`
}

// TaxSubmission records one submission of a filing. Many submissions may
// reference the same filing (resubmission history).
type TaxSubmission struct {
	Id                 string          `db:"id"`
	UserId             string          `db:"user_id"`
	FilingId           string          `db:"filing_id"`
	SubmissionDate     time.Time       `db:"submission_date"`
	TotalTaxLiability  decimal.Decimal `db:"total_tax_liability"`
	PaymentReference   string          `db:"payment_reference"`
	ConfirmationNumber string          `db:"confirmation_number"`
	Status             string          `db:"status"`
	Notes              string          `db:"notes"`
	CreatedAt          time.Time       `db:"created_at"`
}

// TransactionSummary reports income, expenses and net change over a period,
// with per-category breakdowns.
type TransactionSummary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	NetAmount    decimal.Decimal
	Count        int
	Categories   map[string]map[string]decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
}

// TaxReport is the annual tax report: every filing and submission whose
// period falls in the year, plus the total tax actually paid.
type TaxReport struct {
	Year         int
	TaxType      string
	TotalTaxPaid decimal.Decimal
	Filings      []TaxFiling
	Submissions  []TaxSubmission
}

// ValidTransactionType reports whether t is one of the known transaction types.
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeSale, TransactionTypeExpense, TransactionTypeTransfer, TransactionTypeOther:
		return true
	}
	return false
}

// ValidInvoiceStatus reports whether s is one of the known invoice statuses.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusCancelled, InvoiceStatusOverdue, InvoiceStatusPartiallyPaid:
		return true
	}
	return false
}

// ValidTaxType reports whether t is one of the known tax types.
func ValidTaxType(t string) bool {
	switch t {
	case TaxTypeGST, TaxTypeIncomeTax, TaxTypeOther:
		return true
	}
	return false
}

// ValidPeriodType reports whether p is one of the known filing period types.
func ValidPeriodType(p string) bool {
	switch p {
	case PeriodMonthly, PeriodQuarterly, PeriodAnnually:
		return true
	}
	return false
}
