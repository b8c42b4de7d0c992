package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/database"
	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

func testConfig() models.LedgerConfig {
	return models.LedgerConfig{
		DefaultCurrency: "INR",
		DefaultTaxRate:  decimal.NewFromInt(18),
		MaxRetries:      3,
		RetryBackoff:    time.Millisecond,
	}
}

// conflictingStore fails CreateTransaction with a serialization conflict a
// fixed number of times before succeeding. The embedded interface panics on
// anything else, which keeps the test honest about what gets called.
type conflictingStore struct {
	store.LedgerStore
	remainingConflicts int
	calls              int
}

func (cs *conflictingStore) CreateTransaction(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, *models.Invoice, error) {
	cs.calls++
	if cs.remainingConflicts > 0 {
		cs.remainingConflicts--
		return nil, nil, store.ErrConcurrentModification
	}
	return &models.Transaction{Id: "txn1", Amount: params.Amount}, nil, nil
}

func TestCreateTransaction_RetriesOnConflict(t *testing.T) {
	cs := &conflictingStore{remainingConflicts: 2}
	service := NewService(cs, testConfig())

	txn, _, err := service.CreateTransaction(context.Background(), store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(100),
		TransactionType: models.TransactionTypeSale,
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if txn.Id != "txn1" {
		t.Errorf("Expected transaction txn1, got %s", txn.Id)
	}
	if cs.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", cs.calls)
	}
}

func TestCreateTransaction_RetryBudgetExhausted(t *testing.T) {
	cs := &conflictingStore{remainingConflicts: 100}
	service := NewService(cs, testConfig())

	_, _, err := service.CreateTransaction(context.Background(), store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(100),
		TransactionType: models.TransactionTypeSale,
	})
	if !errors.Is(err, store.ErrStoreFailure) {
		t.Errorf("Expected ErrStoreFailure after exhausted retries, got %v", err)
	}
	if cs.calls != 4 {
		t.Errorf("Expected initial attempt plus 3 retries, got %d", cs.calls)
	}
}

func TestCreateTransaction_ValidatesBeforeStore(t *testing.T) {
	cs := &conflictingStore{}
	service := NewService(cs, testConfig())
	ctx := context.Background()

	_, _, err := service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(-5),
		TransactionType: models.TransactionTypeSale,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative amount, got %v", err)
	}

	_, _, err = service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(5),
		TransactionType: "refund",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown type, got %v", err)
	}

	if cs.calls != 0 {
		t.Errorf("Expected no store calls for invalid input, got %d", cs.calls)
	}
}

func TestComputeGST_DefaultRate(t *testing.T) {
	service := NewService(nil, testConfig())

	breakdown, err := service.ComputeGST(decimal.NewFromInt(100), decimal.Zero, false)
	if err != nil {
		t.Fatalf("ComputeGST failed: %v", err)
	}
	if !breakdown.Tax.Equal(decimal.NewFromInt(18)) {
		t.Errorf("Expected default-rate tax 18, got %s", breakdown.Tax.String())
	}
	if !breakdown.Gross.Equal(decimal.NewFromInt(118)) {
		t.Errorf("Expected gross 118, got %s", breakdown.Gross.String())
	}
}

func TestSummaryRange(t *testing.T) {
	now := time.Date(2026, time.August, 28, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		period string
		from   time.Time
		to     time.Time
	}{
		{"day", time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC), time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)},
		{"week", time.Date(2026, time.August, 22, 0, 0, 0, 0, time.UTC), time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)},
		{"month", time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)},
		{"year", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		from, to, err := summaryRange(tc.period, now)
		if err != nil {
			t.Fatalf("summaryRange(%s) failed: %v", tc.period, err)
		}
		if !from.Equal(tc.from) || !to.Equal(tc.to) {
			t.Errorf("summaryRange(%s) = %s..%s, expected %s..%s", tc.period, from, to, tc.from, tc.to)
		}
	}

	from, to, err := summaryRange("all_time", now)
	if err != nil {
		t.Fatalf("summaryRange(all_time) failed: %v", err)
	}
	if !from.IsZero() || !to.IsZero() {
		t.Errorf("Expected open range for all_time, got %s..%s", from, to)
	}

	if _, _, err := summaryRange("fortnight", now); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown period, got %v", err)
	}
}

func setupLedger(t *testing.T) (*Service, func()) {
	return setupLedgerWithConfig(t, testConfig())
}

func setupLedgerWithConfig(t *testing.T, ledgerCfg models.LedgerConfig) (*Service, func()) {
	cfg := models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "ledger_test.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
	}
	dbService, err := database.NewService(context.Background(), cfg, ledgerCfg)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	service := NewService(dbService, ledgerCfg)
	return service, dbService.Close
}

func TestCreateTransaction_CategoryRateOnInvoice(t *testing.T) {
	ratesFile := filepath.Join(t.TempDir(), "taxrates.yaml")
	table := "rates:\n  - category: Essentials\n    rate: 5\n"
	if err := os.WriteFile(ratesFile, []byte(table), 0o644); err != nil {
		t.Fatalf("Failed to write rate table: %v", err)
	}

	cfg := testConfig()
	cfg.TaxRatesFile = ratesFile
	service, cleanup := setupLedgerWithConfig(t, cfg)
	defer cleanup()

	ctx := context.Background()
	if _, _, err := service.CreateUser(ctx, "user1", "Test Merchant", "merchant@example.com"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, inv, err := service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(100),
		Description:     "Groceries",
		TransactionType: models.TransactionTypeSale,
		Category:        "Essentials",
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if inv == nil {
		t.Fatal("Expected an invoice for the sale")
	}
	if !inv.TaxRate.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected category rate 5, got %s", inv.TaxRate.String())
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Expected total 105, got %s", inv.TotalAmount.String())
	}

	_, inv, err = service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		Amount:          decimal.NewFromInt(100),
		Description:     "Consulting",
		TransactionType: models.TransactionTypeSale,
		Category:        "Consulting",
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if !inv.TaxRate.Equal(decimal.NewFromInt(18)) {
		t.Errorf("Expected default rate 18 for unlisted category, got %s", inv.TaxRate.String())
	}
}

func TestConcurrentTransactions_BalanceConsistent(t *testing.T) {
	service, cleanup := setupLedger(t)
	defer cleanup()

	ctx := context.Background()
	_, account, err := service.CreateUser(ctx, "user1", "Test Merchant", "merchant@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := service.CreateTransaction(ctx, store.CreateTransactionParams{
				UserId:          "user1",
				Amount:          decimal.NewFromInt(50),
				TransactionType: models.TransactionTypeSale,
			})
			errs <- err
			_, _, err = service.CreateTransaction(ctx, store.CreateTransactionParams{
				UserId:          "user1",
				Amount:          decimal.NewFromInt(20),
				TransactionType: models.TransactionTypeExpense,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Concurrent CreateTransaction failed: %v", err)
		}
	}

	final, err := service.GetAccount(ctx, "user1", account.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	expected := decimal.NewFromInt(workers * (50 - 20))
	if !final.Balance.Equal(expected) {
		t.Errorf("Expected final balance %s, got %s", expected.String(), final.Balance.String())
	}

	transactions, err := service.ListTransactions(ctx, "user1", store.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(transactions) != workers*2 {
		t.Errorf("Expected %d transactions, got %d", workers*2, len(transactions))
	}
}
