package database

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

func TestCreateAccount_SecondDefaultRejected(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)

	_, err := service.CreateAccount(context.Background(), store.CreateAccountParams{
		UserId:    "user1",
		Name:      "Savings",
		IsDefault: true,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for second default account, got %v", err)
	}
}

func TestDeleteAccount_SoleAccountRejected(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, account := seedUser(t, service)

	err := service.DeleteAccount(context.Background(), "user1", account.Id, "")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict deleting the only account, got %v", err)
	}
}

func TestDeleteAccount_WithTransactionsNeedsTransferTarget(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	second, err := service.CreateAccount(ctx, store.CreateAccountParams{
		UserId: "user1",
		Name:   "Savings",
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	_, _, err = service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		AccountId:       second.Id,
		Amount:          decimal.NewFromInt(100),
		Description:     "Sale",
		TransactionType: models.TransactionTypeSale,
	})
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	err = service.DeleteAccount(ctx, "user1", second.Id, "")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict deleting account with transactions, got %v", err)
	}
}

func TestDeleteAccount_TransferMovesBalanceAndTransactions(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, primary := seedUser(t, service)
	ctx := context.Background()

	second, err := service.CreateAccount(ctx, store.CreateAccountParams{
		UserId: "user1",
		Name:   "Savings",
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	txn, _, err := service.CreateTransaction(ctx, store.CreateTransactionParams{
		UserId:          "user1",
		AccountId:       second.Id,
		Amount:          decimal.NewFromInt(250),
		Description:     "Sale",
		TransactionType: models.TransactionTypeSale,
	})
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	if err := service.DeleteAccount(ctx, "user1", second.Id, primary.Id); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	_, err = service.GetAccount(ctx, "user1", second.Id)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected deleted account to be gone, got %v", err)
	}

	target, err := service.GetAccount(ctx, "user1", primary.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !target.Balance.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected target balance 250 after transfer, got %s", target.Balance.String())
	}

	moved, err := service.GetTransaction(ctx, "user1", txn.Id)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if moved.AccountId != primary.Id {
		t.Errorf("Expected transaction reassigned to %s, got %s", primary.Id, moved.AccountId)
	}
}

func TestDeleteDefaultAccount_TransferPromotesTarget(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, primary := seedUser(t, service)
	ctx := context.Background()

	second, err := service.CreateAccount(ctx, store.CreateAccountParams{
		UserId:  "user1",
		Name:    "Savings",
		Balance: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	if err := service.DeleteAccount(ctx, "user1", primary.Id, second.Id); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	promoted, err := service.GetDefaultAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("GetDefaultAccount failed: %v", err)
	}
	if promoted.Id != second.Id {
		t.Errorf("Expected %s to become the default account, got %s", second.Id, promoted.Id)
	}
}

func TestGetTotalBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)
	ctx := context.Background()

	_, err := service.CreateAccount(ctx, store.CreateAccountParams{
		UserId:  "user1",
		Name:    "Savings",
		Balance: decimal.RequireFromString("100.25"),
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	_, err = service.CreateAccount(ctx, store.CreateAccountParams{
		UserId:  "user1",
		Name:    "Cash Box",
		Balance: decimal.RequireFromString("-20.25"),
	})
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	total, err := service.GetTotalBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetTotalBalance failed: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected total balance 80, got %s", total.String())
	}
}

func TestUpdateAccount_Rename(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, account := seedUser(t, service)
	name := "Operating Account"

	updated, err := service.UpdateAccount(context.Background(), "user1", account.Id, store.UpdateAccountParams{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if updated.Name != name {
		t.Errorf("Expected name %q, got %q", name, updated.Name)
	}
}
