package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)

	service := &Service{
		db:       db,
		taxRate:  decimal.NewFromInt(18),
		currency: "INR",
	}
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func seedUser(t *testing.T, service *Service) (*models.User, *models.Account) {
	user, account, err := service.CreateUser(context.Background(), "user1", "Test Merchant", "merchant@example.com")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user, account
}

func TestCreateUser_CreatesDefaultAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	user, account := seedUser(t, service)

	if user.Id != "user1" {
		t.Errorf("Expected user id user1, got %s", user.Id)
	}
	if account == nil {
		t.Fatal("Expected a default account, got nil")
	}
	if !account.IsDefault {
		t.Error("Expected the created account to be the default")
	}
	if account.Name != "Primary Account" {
		t.Errorf("Expected account name 'Primary Account', got %q", account.Name)
	}
	if !account.Balance.Equal(decimal.Zero) {
		t.Errorf("Expected zero opening balance, got %s", account.Balance.String())
	}
	if account.Currency != "INR" {
		t.Errorf("Expected currency INR, got %s", account.Currency)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	seedUser(t, service)

	_, _, err := service.CreateUser(context.Background(), "user2", "Other Merchant", "merchant@example.com")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
