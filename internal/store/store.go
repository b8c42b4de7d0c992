package store

import (
	"context"
	"errors"
	"time"

	"bizledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Callers match
// with errors.Is; every other failure from a backend counts as a store
// failure.
var (
	// ErrNotFound: the referenced entity does not exist or does not belong
	// to the calling user.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidInput: malformed amount, rate, date or unknown enum value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState: the operation is not legal for the entity's current
	// status, e.g. marking a cancelled invoice paid.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrConflict: the operation would violate an invariant, e.g. deleting
	// the sole account or reusing an invoice number.
	ErrConflict = errors.New("operation conflicts with ledger invariant")
	// ErrConcurrentModification: an account row changed under the operation.
	// The whole unit was rolled back; the operation is safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")
	// ErrStoreFailure: the backend is unavailable or the unit could not
	// commit after retries.
	ErrStoreFailure = errors.New("store failure")
)

// CreateAccountParams describes a new account.
type CreateAccountParams struct {
	UserId    string
	Name      string
	Currency  string
	IsDefault bool
	Balance   decimal.Decimal
}

// UpdateAccountParams carries a partial account update. Nil fields are left
// unchanged.
type UpdateAccountParams struct {
	Name     *string
	Currency *string
	IsActive *bool
}

// CreateTransactionParams describes a new transaction. AccountId may be
// empty, in which case the owner's default account is resolved (and created
// with a zero balance if missing). A "sale" spawns a linked invoice in the
// same atomic unit unless SkipInvoice is set.
type CreateTransactionParams struct {
	UserId          string
	AccountId       string
	Amount          decimal.Decimal
	Description     string
	TransactionType string
	Category        string
	Date            time.Time
	ReferenceNumber string
	PaymentMethod   string
	Notes           string
	RelatedInvoice  string
	RelatedFiling   string
	SkipInvoice     bool
	InvoiceTaxRate  decimal.Decimal
	CustomerName    string
}

// UpdateTransactionParams carries a partial transaction update. Nil fields
// are left unchanged. Changing amount, type or account reverses the old
// balance effect and applies the new one atomically.
type UpdateTransactionParams struct {
	Amount          *decimal.Decimal
	Description     *string
	TransactionType *string
	Category        *string
	Date            *time.Time
	AccountId       *string
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	StartDate       *time.Time
	EndDate         *time.Time
	TransactionType string
	Category        string
	AccountId       string
	Limit           int
	Offset          int
}

// NewInvoiceItem is one line item of an invoice being created.
type NewInvoiceItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxIncluded bool
	TaxRate     *decimal.Decimal
}

// CreateInvoiceParams describes a new invoice. The invoice number is
// allocated from the owner's monotonic sequence inside the atomic unit
// unless InvoiceNumber is set explicitly.
type CreateInvoiceParams struct {
	UserId          string
	InvoiceNumber   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	CustomerPhone   string
	CustomerTaxId   string
	IssueDate       time.Time
	DueDate         time.Time
	TaxRate         decimal.Decimal
	Status          string
	Notes           string
	Currency        string
	Items           []NewInvoiceItem
}

// UpdateInvoiceParams carries a partial invoice update. Nil fields are left
// unchanged. A tax-rate change recomputes tax_amount and total_amount from
// the current items.
type UpdateInvoiceParams struct {
	CustomerName     *string
	CustomerEmail    *string
	CustomerAddress  *string
	CustomerPhone    *string
	CustomerTaxId    *string
	IssueDate        *time.Time
	DueDate          *time.Time
	TaxRate          *decimal.Decimal
	Status           *string
	Notes            *string
	Currency         *string
	PaymentReference *string
	PaymentMethod    *string
}

// InvoiceFilter narrows an invoice listing.
type InvoiceFilter struct {
	Status       string
	StartDate    *time.Time
	EndDate      *time.Time
	CustomerName string
	Limit        int
	Offset       int
}

// MarkInvoicePaidParams controls the mark-as-paid orchestration. FileTaxes
// folds the invoice into the current-quarter GST filing, creating the filing
// as a draft when none exists.
type MarkInvoicePaidParams struct {
	UserId           string
	InvoiceId        string
	PaymentReference string
	PaymentMethod    string
	FileTaxes        bool
}

// FilingParams identifies one filing period for find-or-create.
type FilingParams struct {
	UserId      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	TaxType     string
	PeriodType  string
}

// SubmitFilingParams describes a filing submission.
type SubmitFilingParams struct {
	UserId           string
	FilingId         string
	PaymentReference string
	Notes            string
}

// LedgerStore defines the persistence contract that every backend must
// satisfy. Every multi-entity method executes as one atomic unit: either all
// of its record mutations commit or none do, and no concurrent caller
// observes an intermediate state.
type LedgerStore interface {
	// --- Users ---
	// CreateUser inserts the user row and its default account in one unit
	// (the PostUserCreate orchestration step).
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, *models.Account, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// --- Accounts ---
	CreateAccount(ctx context.Context, params CreateAccountParams) (*models.Account, error)
	GetAccount(ctx context.Context, userId, accountId string) (*models.Account, error)
	GetAccounts(ctx context.Context, userId string) ([]models.Account, error)
	GetDefaultAccount(ctx context.Context, userId string) (*models.Account, error)
	UpdateAccount(ctx context.Context, userId, accountId string, params UpdateAccountParams) (*models.Account, error)
	// DeleteAccount removes an account. With a transfer target every owned
	// transaction is reassigned and the balance folded into the target;
	// without one the account must be empty, and the user's sole account is
	// never deletable.
	DeleteAccount(ctx context.Context, userId, accountId, transferTo string) error
	GetTotalBalance(ctx context.Context, userId string) (decimal.Decimal, error)

	// --- Transactions ---
	CreateTransaction(ctx context.Context, params CreateTransactionParams) (*models.Transaction, *models.Invoice, error)
	GetTransaction(ctx context.Context, userId, transactionId string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userId string, filter TransactionFilter) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, userId, transactionId string, params UpdateTransactionParams) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userId, transactionId string) error
	GetTransactionSummary(ctx context.Context, userId string, from, to time.Time, transactionType string) (*models.TransactionSummary, error)

	// --- Invoices ---
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*models.Invoice, error)
	GetInvoice(ctx context.Context, userId, invoiceId string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userId string, filter InvoiceFilter) ([]models.Invoice, error)
	UpdateInvoice(ctx context.Context, userId, invoiceId string, params UpdateInvoiceParams) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, userId, invoiceId string) error
	MarkInvoicePaid(ctx context.Context, params MarkInvoicePaidParams) (*models.Invoice, *models.Transaction, error)
	RecalculateInvoice(ctx context.Context, userId, invoiceId string, taxRate *decimal.Decimal) (*models.Invoice, error)

	// --- Tax filings ---
	GetOrCreateFiling(ctx context.Context, params FilingParams) (*models.TaxFiling, error)
	AutoGenerateFiling(ctx context.Context, userId, periodType, taxType string) (*models.TaxFiling, error)
	GetFiling(ctx context.Context, userId, filingId string) (*models.TaxFiling, error)
	GetFilingItems(ctx context.Context, userId, filingId string) ([]models.TaxFilingItem, error)
	SubmitFiling(ctx context.Context, params SubmitFilingParams) (*models.TaxSubmission, *models.Transaction, error)
	AnnualTaxReport(ctx context.Context, userId string, year int, taxType string) (*models.TaxReport, error)

	// --- Lifecycle ---
	Close()
}
