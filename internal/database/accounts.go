package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	zap.L().Info("Creating account",
		zap.String("user_id", params.UserId),
		zap.String("name", params.Name),
		zap.Bool("is_default", params.IsDefault))

	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}

	accountId := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertAccount,
		accountId, params.UserId, params.Name, params.Balance.String(), currency, params.IsDefault)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %s already has a default account", store.ErrConflict, params.UserId)
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return s.GetAccount(ctx, params.UserId, accountId)
}

func (s *Service) GetAccount(ctx context.Context, userId, accountId string) (*models.Account, error) {
	return getAccountTx(ctx, s.db, userId, accountId)
}

func (s *Service) GetAccounts(ctx context.Context, userId string) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAccounts, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

func (s *Service) GetDefaultAccount(ctx context.Context, userId string) (*models.Account, error) {
	return getDefaultAccountTx(ctx, s.db, userId)
}

func (s *Service) UpdateAccount(ctx context.Context, userId, accountId string, params store.UpdateAccountParams) (*models.Account, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if params.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *params.Name)
	}
	if params.Currency != nil {
		sets = append(sets, "currency = ?")
		args = append(args, *params.Currency)
	}
	if params.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *params.IsActive)
	}
	args = append(args, accountId, userId)

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: account %s", store.ErrNotFound, accountId)
	}

	return s.GetAccount(ctx, userId, accountId)
}

// DeleteAccount removes an account as one atomic unit. The user's sole
// account is never deletable. With a transfer target, every transaction is
// reassigned and the source balance folded into the target; without one the
// account must hold no transactions.
func (s *Service) DeleteAccount(ctx context.Context, userId, accountId, transferTo string) error {
	zap.L().Info("Deleting account",
		zap.String("user_id", userId),
		zap.String("account_id", accountId),
		zap.String("transfer_to", transferTo))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	source, err := getAccountTx(ctx, tx, userId, accountId)
	if err != nil {
		return err
	}

	var accountCount int
	if err := tx.QueryRowContext(ctx, queryCountAccounts, userId).Scan(&accountCount); err != nil {
		return fmt.Errorf("failed to count accounts: %w", err)
	}
	if accountCount <= 1 {
		return fmt.Errorf("%w: cannot delete the user's only account", store.ErrConflict)
	}

	var txnCount int
	if err := tx.QueryRowContext(ctx, queryCountAccountTransactions, accountId, userId).Scan(&txnCount); err != nil {
		return fmt.Errorf("failed to count account transactions: %w", err)
	}

	if transferTo == "" {
		if txnCount > 0 {
			return fmt.Errorf("%w: account %s holds %d transactions and no transfer target was given",
				store.ErrConflict, accountId, txnCount)
		}
		if source.IsDefault {
			return fmt.Errorf("%w: cannot delete the default account without a transfer target", store.ErrConflict)
		}
	} else {
		if transferTo == accountId {
			return fmt.Errorf("%w: transfer target must differ from the account being deleted", store.ErrInvalidInput)
		}
		target, err := getAccountTx(ctx, tx, userId, transferTo)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, queryReassignTransactions, target.Id, source.Id, userId); err != nil {
			return fmt.Errorf("failed to reassign transactions: %w", err)
		}
		if _, err := applyDeltaTx(ctx, tx, target, source.Balance, target.LastTransactionId); err != nil {
			return err
		}
		// Zero the source through CAS too so a concurrent unit on the
		// source rolls this whole operation back.
		if _, err := applyDeltaTx(ctx, tx, source, source.Balance.Neg(), source.LastTransactionId); err != nil {
			return err
		}
		if source.IsDefault {
			// The default flag moves with the money. Drop it from the
			// source first so the partial unique index stays satisfied.
			if _, err := tx.ExecContext(ctx, queryDeleteAccount, source.Id, userId); err != nil {
				return fmt.Errorf("failed to delete account: %w", err)
			}
			if _, err := tx.ExecContext(ctx, queryPromoteAccountToDefault, target.Id, userId); err != nil {
				return fmt.Errorf("failed to promote transfer target to default: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit transaction: %w", err)
			}
			zap.L().Info("Account deleted",
				zap.String("account_id", accountId),
				zap.Int("transactions_moved", txnCount))
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx, queryDeleteAccount, source.Id, userId); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Account deleted",
		zap.String("account_id", accountId),
		zap.Int("transactions_moved", txnCount))
	return nil
}

// GetTotalBalance sums the balances of all accounts owned by the user.
func (s *Service) GetTotalBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryTotalBalance, userId)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	total := decimal.Zero
	for rows.Next() {
		var balanceStr string
		if err := rows.Scan(&balanceStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan balance: %w", err)
		}
		b, err := parseDecimal(balanceStr)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(b)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return total, nil
}
