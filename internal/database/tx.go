package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bizledger-go/internal/balance"
	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

// querier abstracts *sql.DB and *sql.Tx so account lookups work inside and
// outside an atomic unit.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getAccountTx(ctx context.Context, q querier, userId, accountId string) (*models.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, queryGetAccount, accountId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", store.ErrNotFound, accountId)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func getDefaultAccountTx(ctx context.Context, q querier, userId string) (*models.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, queryGetDefaultAccount, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no default account for user %s", store.ErrNotFound, userId)
		}
		return nil, fmt.Errorf("failed to get default account: %w", err)
	}
	return account, nil
}

// createDefaultAccountTx inserts the default account for a user with a zero
// balance. Callers must hold the atomic unit.
func (s *Service) createDefaultAccountTx(ctx context.Context, tx *sql.Tx, userId, currency string) (*models.Account, error) {
	accountId := uuid.New().String()
	_, err := tx.ExecContext(ctx, queryInsertAccount,
		accountId, userId, "Primary Account", "0", currency, true)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %s already has a default account", store.ErrConflict, userId)
		}
		return nil, fmt.Errorf("failed to create default account: %w", err)
	}
	return getAccountTx(ctx, tx, userId, accountId)
}

// resolveAccountTx implements the account resolution rule: explicit id when
// given, else the owner's default account, created with a zero balance when
// missing.
func (s *Service) resolveAccountTx(ctx context.Context, tx *sql.Tx, userId, accountId string) (*models.Account, error) {
	if accountId != "" {
		return getAccountTx(ctx, tx, userId, accountId)
	}
	account, err := getDefaultAccountTx(ctx, tx, userId)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.createDefaultAccountTx(ctx, tx, userId, s.currency)
}

// applyDeltaTx performs the compare-and-set balance update on one account
// row. A zero delta skips the write entirely. A version mismatch means a
// concurrent unit won the race; the caller's whole unit rolls back and is
// retried by the orchestrator.
func applyDeltaTx(ctx context.Context, tx *sql.Tx, account *models.Account, delta decimal.Decimal, lastTransactionId string) (decimal.Decimal, error) {
	if delta.IsZero() {
		return account.Balance, nil
	}

	newBalance := balance.Apply(account.Balance, delta)
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance,
		newBalance.String(), lastTransactionId, account.Id, account.UserId, account.Version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return decimal.Zero, fmt.Errorf("balance update for account %s failed: %w",
			account.Id, store.ErrConcurrentModification)
	}

	// Keep the in-memory snapshot coherent for further deltas in this unit.
	account.Balance = newBalance
	account.Version++
	return newBalance, nil
}
