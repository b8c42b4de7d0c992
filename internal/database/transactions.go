package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizledger-go/internal/balance"
	"bizledger-go/internal/invoice"
	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

// CreateTransaction atomically inserts the transaction, applies its balance
// delta to the resolved account and, for sales, spawns the linked invoice
// unless SkipInvoice is set. All three steps commit together or none do.
func (s *Service) CreateTransaction(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, *models.Invoice, error) {
	zap.L().Info("Creating transaction",
		zap.String("user_id", params.UserId),
		zap.String("type", params.TransactionType),
		zap.String("amount", params.Amount.String()),
		zap.Bool("skip_invoice", params.SkipInvoice))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.resolveAccountTx(ctx, tx, params.UserId, params.AccountId)
	if err != nil {
		return nil, nil, err
	}

	transactionId := uuid.New().String()
	delta := balance.EffectOf(params.TransactionType, params.Amount)
	newBalance, err := applyDeltaTx(ctx, tx, account, delta, transactionId)
	if err != nil {
		return nil, nil, err
	}

	date := params.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	now := time.Now().UTC()

	txn := &models.Transaction{
		Id:                 transactionId,
		UserId:             params.UserId,
		AccountId:          account.Id,
		Amount:             params.Amount,
		Description:        params.Description,
		TransactionType:    params.TransactionType,
		Category:           params.Category,
		Date:               date,
		ReferenceNumber:    params.ReferenceNumber,
		PaymentMethod:      params.PaymentMethod,
		Notes:              params.Notes,
		RelatedInvoiceId:   params.RelatedInvoice,
		RelatedTaxFilingId: params.RelatedFiling,
		BalanceAfter:       newBalance,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, nil, err
	}

	var inv *models.Invoice
	if params.TransactionType == models.TransactionTypeSale && !params.SkipInvoice {
		rate := params.InvoiceTaxRate
		if rate.IsZero() {
			rate = s.taxRate
		}
		inv, err = invoice.BuildFromTransaction(txn, params.CustomerName, rate, now)
		if err != nil {
			return nil, nil, err
		}
		inv.RelatedTransactionId = txn.Id
		inv.Currency = account.Currency
		if err := s.insertInvoiceTx(ctx, tx, inv); err != nil {
			return nil, nil, err
		}
		txn.RelatedInvoiceId = inv.Id
		if _, err := tx.ExecContext(ctx, queryLinkTransactionInvoice, inv.Id, txn.Id, params.UserId); err != nil {
			return nil, nil, fmt.Errorf("failed to link transaction to invoice: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Transaction created",
		zap.String("transaction_id", txn.Id),
		zap.String("account_id", account.Id),
		zap.String("new_balance", newBalance.String()))
	return txn, inv, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	_, err := tx.ExecContext(ctx, queryInsertTransaction,
		txn.Id, txn.UserId, txn.AccountId, txn.Amount.String(), txn.Description,
		txn.TransactionType, txn.Category, txn.Date, txn.ReferenceNumber,
		txn.PaymentMethod, txn.Notes, txn.RelatedInvoiceId, txn.RelatedTaxFilingId,
		txn.BalanceAfter.String(), txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, userId, transactionId string) (*models.Transaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransaction, transactionId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, userId string, filter store.TransactionFilter) ([]models.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE user_id = ?"
	args := []any{userId}

	if filter.StartDate != nil {
		query += " AND date >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND date < ?"
		args = append(args, filter.EndDate.UTC().AddDate(0, 0, 1))
	}
	if filter.TransactionType != "" {
		query += " AND transaction_type = ?"
		args = append(args, filter.TransactionType)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.AccountId != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountId)
	}
	query += " ORDER BY date DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

// UpdateTransaction reverses the old balance effect and applies the new one
// in a single unit. The transaction may move between accounts; both account
// balances are consistent afterwards.
func (s *Service) UpdateTransaction(ctx context.Context, userId, transactionId string, params store.UpdateTransactionParams) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := scanTransaction(tx.QueryRowContext(ctx, queryGetTransaction, transactionId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	updated := *old
	if params.Amount != nil {
		updated.Amount = *params.Amount
	}
	if params.Description != nil {
		updated.Description = *params.Description
	}
	if params.TransactionType != nil {
		updated.TransactionType = *params.TransactionType
	}
	if params.Category != nil {
		updated.Category = *params.Category
	}
	if params.Date != nil {
		updated.Date = params.Date.UTC()
	}
	if params.AccountId != nil {
		updated.AccountId = *params.AccountId
	}

	oldAccount, err := getAccountTx(ctx, tx, userId, old.AccountId)
	if err != nil {
		return nil, err
	}

	// Reverse the old effect first; the same snapshot carries forward when
	// the transaction stays on the same account so both CAS writes chain.
	if _, err := applyDeltaTx(ctx, tx, oldAccount,
		balance.ReverseOf(old.TransactionType, old.Amount), old.Id); err != nil {
		return nil, err
	}

	newAccount := oldAccount
	if updated.AccountId != old.AccountId {
		newAccount, err = getAccountTx(ctx, tx, userId, updated.AccountId)
		if err != nil {
			return nil, err
		}
	}

	newBalance, err := applyDeltaTx(ctx, tx, newAccount,
		balance.EffectOf(updated.TransactionType, updated.Amount), updated.Id)
	if err != nil {
		return nil, err
	}
	updated.BalanceAfter = newBalance

	if _, err := tx.ExecContext(ctx, queryUpdateTransaction,
		updated.AccountId, updated.Amount.String(), updated.Description,
		updated.TransactionType, updated.Category, updated.Date,
		updated.BalanceAfter.String(), updated.Id, userId); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Transaction updated",
		zap.String("transaction_id", transactionId),
		zap.String("account_id", updated.AccountId))
	return &updated, nil
}

// DeleteTransaction reverses the balance effect and removes the row. A
// linked invoice is deliberately left untouched.
func (s *Service) DeleteTransaction(ctx context.Context, userId, transactionId string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txn, err := scanTransaction(tx.QueryRowContext(ctx, queryGetTransaction, transactionId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId)
		}
		return fmt.Errorf("failed to get transaction: %w", err)
	}

	account, err := getAccountTx(ctx, tx, userId, txn.AccountId)
	if err != nil {
		return err
	}
	if _, err := applyDeltaTx(ctx, tx, account,
		balance.ReverseOf(txn.TransactionType, txn.Amount), txn.Id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, queryDeleteTransaction, transactionId, userId); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Transaction deleted",
		zap.String("transaction_id", transactionId),
		zap.String("account_id", account.Id))
	return nil
}

// GetTransactionSummary aggregates income, expenses and per-category totals
// over an inclusive date range.
func (s *Service) GetTransactionSummary(ctx context.Context, userId string, from, to time.Time, transactionType string) (*models.TransactionSummary, error) {
	filter := store.TransactionFilter{TransactionType: transactionType}
	if !from.IsZero() {
		filter.StartDate = &from
	}
	if !to.IsZero() {
		filter.EndDate = &to
	}

	transactions, err := s.ListTransactions(ctx, userId, filter)
	if err != nil {
		return nil, err
	}

	summary := &models.TransactionSummary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		NetAmount:    decimal.Zero,
		Count:        len(transactions),
		Categories: map[string]map[string]decimal.Decimal{
			"income":  {},
			"expense": {},
		},
		StartDate: from,
		EndDate:   to,
	}

	for _, txn := range transactions {
		category := txn.Category
		if category == "" {
			category = "Uncategorized"
		}
		switch txn.TransactionType {
		case models.TransactionTypeSale:
			summary.TotalIncome = summary.TotalIncome.Add(txn.Amount)
			summary.Categories["income"][category] = summary.Categories["income"][category].Add(txn.Amount)
		case models.TransactionTypeExpense:
			summary.TotalExpense = summary.TotalExpense.Add(txn.Amount)
			summary.Categories["expense"][category] = summary.Categories["expense"][category].Add(txn.Amount)
		}
	}
	summary.NetAmount = summary.TotalIncome.Sub(summary.TotalExpense)
	return summary, nil
}
