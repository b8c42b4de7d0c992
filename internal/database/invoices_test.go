package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
	"bizledger-go/internal/tax"
)

func createTestInvoice(t *testing.T, service *Service, customer string) *models.Invoice {
	inv, err := service.CreateInvoice(context.Background(), store.CreateInvoiceParams{
		UserId:       "user1",
		CustomerName: customer,
		Items: []store.NewInvoiceItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return inv
}

func TestCreateInvoice_ComputesTotals(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	inv := createTestInvoice(t, service, "Acme Traders")

	if !inv.Subtotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected subtotal 100, got %s", inv.Subtotal.String())
	}
	if !inv.TaxAmount.Equal(decimal.NewFromInt(18)) {
		t.Errorf("Expected tax 18, got %s", inv.TaxAmount.String())
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(118)) {
		t.Errorf("Expected total 118, got %s", inv.TotalAmount.String())
	}
	if inv.Status != models.InvoiceStatusDraft {
		t.Errorf("Expected draft status, got %s", inv.Status)
	}
}

func TestCreateInvoice_RequiresItems(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)

	_, err := service.CreateInvoice(context.Background(), store.CreateInvoiceParams{
		UserId:       "user1",
		CustomerName: "Acme Traders",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty items, got %v", err)
	}
}

func TestCreateInvoice_MonotonicNumbers(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)

	first := createTestInvoice(t, service, "Customer A")
	second := createTestInvoice(t, service, "Customer B")

	if first.InvoiceNumber == second.InvoiceNumber {
		t.Errorf("Expected distinct invoice numbers, both got %s", first.InvoiceNumber)
	}
	if second.InvoiceNumber <= first.InvoiceNumber {
		t.Errorf("Expected %s after %s", second.InvoiceNumber, first.InvoiceNumber)
	}
}

func TestCreateInvoice_DuplicateExplicitNumber(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	params := store.CreateInvoiceParams{
		UserId:        "user1",
		InvoiceNumber: "INV-CUSTOM-1",
		CustomerName:  "Acme Traders",
		Items: []store.NewInvoiceItem{
			{Description: "Goods", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)},
		},
	}
	if _, err := service.CreateInvoice(ctx, params); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	_, err := service.CreateInvoice(ctx, params)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate invoice number, got %v", err)
	}
}

func TestMarkInvoicePaid_DirectInvoiceCreditsAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, account := seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")

	paid, receipt, err := service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{
		UserId:           "user1",
		InvoiceId:        inv.Id,
		PaymentReference: "UPI-12345",
		PaymentMethod:    "upi",
	})
	if err != nil {
		t.Fatalf("MarkInvoicePaid failed: %v", err)
	}

	if paid.Status != models.InvoiceStatusPaid {
		t.Errorf("Expected paid status, got %s", paid.Status)
	}
	if paid.PaymentDate.IsZero() {
		t.Error("Expected payment date to be set")
	}
	if receipt.TransactionType != models.TransactionTypeSale {
		t.Errorf("Expected sale receipt for a direct invoice, got %s", receipt.TransactionType)
	}
	if !receipt.Amount.Equal(inv.TotalAmount) {
		t.Errorf("Expected receipt amount %s, got %s", inv.TotalAmount.String(), receipt.Amount.String())
	}

	refreshed, err := service.GetAccount(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !refreshed.Balance.Equal(inv.TotalAmount) {
		t.Errorf("Expected balance %s after payment, got %s", inv.TotalAmount.String(), refreshed.Balance.String())
	}
}

func TestMarkInvoicePaid_LinkedInvoiceDoesNotDoubleCount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, account := seedUser(t, service)
	ctx := context.Background()

	// The generating sale already credited the account.
	_, inv, err := service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(100),
		Description:     "Web design",
		TransactionType: models.TransactionTypeSale,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	_, receipt, err := service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{
		UserId:    "user1",
		InvoiceId: inv.Id,
	})
	if err != nil {
		t.Fatalf("MarkInvoicePaid failed: %v", err)
	}
	if receipt.TransactionType != models.TransactionTypeOther {
		t.Errorf("Expected zero-effect receipt, got type %s", receipt.TransactionType)
	}

	refreshed, err := service.GetAccount(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !refreshed.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance to stay 100, got %s", refreshed.Balance.String())
	}
}

func TestMarkInvoicePaid_AlreadyPaid(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")
	params := store.MarkInvoicePaidParams{UserId: "user1", InvoiceId: inv.Id}

	if _, _, err := service.MarkInvoicePaid(ctx, params); err != nil {
		t.Fatalf("MarkInvoicePaid failed: %v", err)
	}
	_, _, err := service.MarkInvoicePaid(ctx, params)
	if !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for paid invoice, got %v", err)
	}
}

func TestMarkInvoicePaid_CancelledInvoice(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")
	cancelled := models.InvoiceStatusCancelled
	if _, err := service.UpdateInvoice(ctx, "user1", inv.Id, store.UpdateInvoiceParams{Status: &cancelled}); err != nil {
		t.Fatalf("UpdateInvoice failed: %v", err)
	}

	_, _, err := service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{UserId: "user1", InvoiceId: inv.Id})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for cancelled invoice, got %v", err)
	}
}

func TestMarkInvoicePaid_FileTaxesFoldsIntoQuarter(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")

	if _, _, err := service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{
		UserId:    "user1",
		InvoiceId: inv.Id,
		FileTaxes: true,
	}); err != nil {
		t.Fatalf("MarkInvoicePaid failed: %v", err)
	}

	report, err := service.AnnualTaxReport(ctx, "user1", time.Now().UTC().Year(), models.TaxTypeGST)
	if err != nil {
		t.Fatalf("AnnualTaxReport failed: %v", err)
	}
	if len(report.Filings) != 1 {
		t.Fatalf("Expected 1 filing, got %d", len(report.Filings))
	}
	filing := report.Filings[0]
	if filing.Status != models.FilingStatusDraft {
		t.Errorf("Expected draft filing, got %s", filing.Status)
	}

	items, err := service.GetFilingItems(ctx, "user1", filing.Id)
	if err != nil {
		t.Fatalf("GetFilingItems failed: %v", err)
	}
	found := false
	for _, item := range items {
		if item.InvoiceId == inv.Id {
			found = true
		}
	}
	if !found {
		t.Error("Expected the paid invoice linked into the filing")
	}
}

func TestMarkInvoicePaid_SubmittedFilingStaysFrozen(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	// Submit the current-quarter GST filing while it is still empty.
	quarter := tax.CurrentQuarter(time.Now().UTC())
	filing, err := service.GetOrCreateFiling(ctx, store.FilingParams{
		UserId:      "user1",
		PeriodStart: quarter.Start,
		PeriodEnd:   quarter.End,
		TaxType:     models.TaxTypeGST,
		PeriodType:  models.PeriodQuarterly,
	})
	if err != nil {
		t.Fatalf("GetOrCreateFiling failed: %v", err)
	}
	if _, _, err := service.SubmitFiling(ctx, store.SubmitFilingParams{
		UserId:   "user1",
		FilingId: filing.Id,
	}); err != nil {
		t.Fatalf("SubmitFiling failed: %v", err)
	}

	inv := createTestInvoice(t, service, "Acme Traders")
	_, _, err = service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{
		UserId:    "user1",
		InvoiceId: inv.Id,
		FileTaxes: true,
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState folding into a submitted filing, got %v", err)
	}

	// The whole unit rolled back: totals untouched, invoice still payable.
	frozen, err := service.GetFiling(ctx, "user1", filing.Id)
	if err != nil {
		t.Fatalf("GetFiling failed: %v", err)
	}
	if !frozen.TotalSales.IsZero() {
		t.Errorf("Expected submitted filing totals unchanged, got total_sales %s", frozen.TotalSales.String())
	}
	unpaid, err := service.GetInvoice(ctx, "user1", inv.Id)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if unpaid.Status == models.InvoiceStatusPaid {
		t.Error("Expected invoice left unpaid after the rejected unit")
	}
}

func TestUpdateInvoice_TaxRateRecomputesTotals(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")
	newRate := decimal.NewFromInt(5)

	updated, err := service.UpdateInvoice(ctx, "user1", inv.Id, store.UpdateInvoiceParams{TaxRate: &newRate})
	if err != nil {
		t.Fatalf("UpdateInvoice failed: %v", err)
	}
	if !updated.TaxAmount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected tax 5 at 5%%, got %s", updated.TaxAmount.String())
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Expected total 105, got %s", updated.TotalAmount.String())
	}
}

func TestUpdateInvoice_PaidStatusRejected(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)

	inv := createTestInvoice(t, service, "Acme Traders")
	paid := models.InvoiceStatusPaid
	_, err := service.UpdateInvoice(context.Background(), "user1", inv.Id, store.UpdateInvoiceParams{Status: &paid})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput setting status paid directly, got %v", err)
	}
}

func TestRecalculateInvoice_Idempotent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	inv := createTestInvoice(t, service, "Acme Traders")

	first, err := service.RecalculateInvoice(ctx, "user1", inv.Id, nil)
	if err != nil {
		t.Fatalf("RecalculateInvoice failed: %v", err)
	}
	second, err := service.RecalculateInvoice(ctx, "user1", inv.Id, nil)
	if err != nil {
		t.Fatalf("RecalculateInvoice failed: %v", err)
	}

	if !first.TotalAmount.Equal(second.TotalAmount) || !first.TaxAmount.Equal(second.TaxAmount) {
		t.Errorf("Expected identical totals on repeat, got %s/%s then %s/%s",
			first.TaxAmount.String(), first.TotalAmount.String(),
			second.TaxAmount.String(), second.TotalAmount.String())
	}
	if !first.Subtotal.Equal(inv.Subtotal) {
		t.Errorf("Expected subtotal unchanged, got %s", first.Subtotal.String())
	}
}

func TestListInvoices_StatusAndCustomerFilters(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	createTestInvoice(t, service, "Acme Traders")
	createTestInvoice(t, service, "Globex Pvt Ltd")
	paid := createTestInvoice(t, service, "Acme Traders")
	if _, _, err := service.MarkInvoicePaid(ctx, store.MarkInvoicePaidParams{UserId: "user1", InvoiceId: paid.Id}); err != nil {
		t.Fatalf("MarkInvoicePaid failed: %v", err)
	}

	drafts, err := service.ListInvoices(ctx, "user1", store.InvoiceFilter{Status: models.InvoiceStatusDraft})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Errorf("Expected 2 draft invoices, got %d", len(drafts))
	}

	acme, err := service.ListInvoices(ctx, "user1", store.InvoiceFilter{CustomerName: "acme"})
	if err != nil {
		t.Fatalf("ListInvoices failed: %v", err)
	}
	if len(acme) != 2 {
		t.Errorf("Expected 2 Acme invoices, got %d", len(acme))
	}
}
