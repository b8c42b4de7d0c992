/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ledger is the operation layer over the store: it validates input
// before any mutation and retries whole atomic units when a concurrent
// balance write forces a rollback.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
	"bizledger-go/internal/tax"
)

type Service struct {
	store store.LedgerStore
	cfg   models.LedgerConfig
	rates []tax.CategoryRate
}

func NewService(st store.LedgerStore, cfg models.LedgerConfig) *Service {
	var rates []tax.CategoryRate
	if cfg.TaxRatesFile != "" {
		loaded, err := tax.LoadCategoryRates(cfg.TaxRatesFile)
		if err != nil {
			zap.L().Warn("No category rate table loaded, using the default rate",
				zap.String("file", cfg.TaxRatesFile),
				zap.Error(err))
		} else {
			rates = loaded
		}
	}
	return &Service{store: st, cfg: cfg, rates: rates}
}

// withRetry re-runs an atomic unit after a serialization conflict. The store
// rolled the unit back, so a retry starts from a clean state. When the
// budget is exhausted the conflict surfaces as a store failure.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			zap.L().Warn("Retrying after concurrent modification",
				zap.String("operation", op),
				zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RetryBackoff):
			}
		}
		err = fn()
		if !errors.Is(err, store.ErrConcurrentModification) {
			return err
		}
	}
	return fmt.Errorf("%w: %s did not commit after %d retries", store.ErrStoreFailure, op, s.cfg.MaxRetries)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidInput, amount.String())
	}
	return nil
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: tax rate must be between 0 and 100, got %s", store.ErrInvalidInput, rate.String())
	}
	return nil
}

// --- Users ---

func (s *Service) CreateUser(ctx context.Context, userId, name, email string) (*models.User, *models.Account, error) {
	if name == "" || email == "" {
		return nil, nil, fmt.Errorf("%w: name and email are required", store.ErrInvalidInput)
	}
	return s.store.CreateUser(ctx, userId, name, email)
}

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	return s.store.GetUsers(ctx)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// --- Accounts ---

func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: account name is required", store.ErrInvalidInput)
	}
	if params.Currency == "" {
		params.Currency = s.cfg.DefaultCurrency
	}
	return s.store.CreateAccount(ctx, params)
}

func (s *Service) GetAccount(ctx context.Context, userId, accountId string) (*models.Account, error) {
	return s.store.GetAccount(ctx, userId, accountId)
}

func (s *Service) GetAccounts(ctx context.Context, userId string) ([]models.Account, error) {
	return s.store.GetAccounts(ctx, userId)
}

func (s *Service) UpdateAccount(ctx context.Context, userId, accountId string, params store.UpdateAccountParams) (*models.Account, error) {
	return s.store.UpdateAccount(ctx, userId, accountId, params)
}

func (s *Service) DeleteAccount(ctx context.Context, userId, accountId, transferTo string) error {
	return s.withRetry(ctx, "delete account", func() error {
		return s.store.DeleteAccount(ctx, userId, accountId, transferTo)
	})
}

func (s *Service) GetTotalBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	return s.store.GetTotalBalance(ctx, userId)
}

// --- Transactions ---

func (s *Service) CreateTransaction(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, *models.Invoice, error) {
	if err := validateAmount(params.Amount); err != nil {
		return nil, nil, err
	}
	if !models.ValidTransactionType(params.TransactionType) {
		return nil, nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidInput, params.TransactionType)
	}
	if !params.InvoiceTaxRate.IsZero() {
		if err := validateTaxRate(params.InvoiceTaxRate); err != nil {
			return nil, nil, err
		}
	}
	if params.TransactionType == models.TransactionTypeSale && params.InvoiceTaxRate.IsZero() {
		params.InvoiceTaxRate = tax.RateForCategory(s.rates, params.Category, decimal.Zero)
	}

	var txn *models.Transaction
	var inv *models.Invoice
	err := s.withRetry(ctx, "create transaction", func() error {
		var err error
		txn, inv, err = s.store.CreateTransaction(ctx, params)
		return err
	})
	return txn, inv, err
}

func (s *Service) GetTransaction(ctx context.Context, userId, transactionId string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, userId, transactionId)
}

func (s *Service) ListTransactions(ctx context.Context, userId string, filter store.TransactionFilter) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, userId, filter)
}

func (s *Service) UpdateTransaction(ctx context.Context, userId, transactionId string, params store.UpdateTransactionParams) (*models.Transaction, error) {
	if params.Amount != nil {
		if err := validateAmount(*params.Amount); err != nil {
			return nil, err
		}
	}
	if params.TransactionType != nil && !models.ValidTransactionType(*params.TransactionType) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidInput, *params.TransactionType)
	}

	var txn *models.Transaction
	err := s.withRetry(ctx, "update transaction", func() error {
		var err error
		txn, err = s.store.UpdateTransaction(ctx, userId, transactionId, params)
		return err
	})
	return txn, err
}

func (s *Service) DeleteTransaction(ctx context.Context, userId, transactionId string) error {
	return s.withRetry(ctx, "delete transaction", func() error {
		return s.store.DeleteTransaction(ctx, userId, transactionId)
	})
}

// TransactionSummary reports income, expenses and per-category totals for a
// named period ("day", "week", "month", "year", "all_time") or, with an
// empty period, the explicit from/to range.
func (s *Service) TransactionSummary(ctx context.Context, userId, period string, from, to time.Time) (*models.TransactionSummary, error) {
	if period != "" {
		var err error
		from, to, err = summaryRange(period, time.Now().UTC())
		if err != nil {
			return nil, err
		}
	}
	return s.store.GetTransactionSummary(ctx, userId, from, to, "")
}

func summaryRange(period string, now time.Time) (time.Time, time.Time, error) {
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	switch period {
	case "day":
		return today, today, nil
	case "week":
		return today.AddDate(0, 0, -6), today, nil
	case "month":
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), today, nil
	case "year":
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), today, nil
	case "all_time":
		return time.Time{}, time.Time{}, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown summary period %q", store.ErrInvalidInput, period)
}

// --- Invoices ---

func (s *Service) CreateInvoice(ctx context.Context, params store.CreateInvoiceParams) (*models.Invoice, error) {
	if len(params.Items) == 0 {
		return nil, fmt.Errorf("%w: invoice requires at least one item", store.ErrInvalidInput)
	}
	for i, item := range params.Items {
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", store.ErrInvalidInput, i)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d unit price cannot be negative", store.ErrInvalidInput, i)
		}
		if item.TaxRate != nil {
			if err := validateTaxRate(*item.TaxRate); err != nil {
				return nil, err
			}
		}
	}
	if !params.TaxRate.IsZero() {
		if err := validateTaxRate(params.TaxRate); err != nil {
			return nil, err
		}
	}
	return s.store.CreateInvoice(ctx, params)
}

func (s *Service) GetInvoice(ctx context.Context, userId, invoiceId string) (*models.Invoice, error) {
	return s.store.GetInvoice(ctx, userId, invoiceId)
}

func (s *Service) ListInvoices(ctx context.Context, userId string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	return s.store.ListInvoices(ctx, userId, filter)
}

func (s *Service) UpdateInvoice(ctx context.Context, userId, invoiceId string, params store.UpdateInvoiceParams) (*models.Invoice, error) {
	if params.TaxRate != nil {
		if err := validateTaxRate(*params.TaxRate); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateInvoice(ctx, userId, invoiceId, params)
}

func (s *Service) DeleteInvoice(ctx context.Context, userId, invoiceId string) error {
	return s.store.DeleteInvoice(ctx, userId, invoiceId)
}

func (s *Service) MarkInvoicePaid(ctx context.Context, params store.MarkInvoicePaidParams) (*models.Invoice, *models.Transaction, error) {
	var inv *models.Invoice
	var txn *models.Transaction
	err := s.withRetry(ctx, "mark invoice paid", func() error {
		var err error
		inv, txn, err = s.store.MarkInvoicePaid(ctx, params)
		return err
	})
	return inv, txn, err
}

func (s *Service) RecalculateInvoice(ctx context.Context, userId, invoiceId string, taxRate *decimal.Decimal) (*models.Invoice, error) {
	if taxRate != nil {
		if err := validateTaxRate(*taxRate); err != nil {
			return nil, err
		}
	}
	return s.store.RecalculateInvoice(ctx, userId, invoiceId, taxRate)
}

// --- GST helpers ---

// ComputeGST returns the net/tax/gross breakdown for one amount, with the
// ledger default applied when rate is zero.
func (s *Service) ComputeGST(amount, rate decimal.Decimal, taxIncluded bool) (tax.Breakdown, error) {
	if rate.IsZero() {
		rate = s.cfg.DefaultTaxRate
	}
	return tax.Calculate(amount, rate, taxIncluded)
}

func (s *Service) ComputeGSTForInvoice(ctx context.Context, userId, invoiceId string) (tax.Breakdown, error) {
	inv, err := s.store.GetInvoice(ctx, userId, invoiceId)
	if err != nil {
		return tax.Breakdown{}, err
	}
	return tax.CalculateForInvoice(inv.Items, inv.TaxRate)
}

// --- Tax filings ---

func (s *Service) GetOrCreateFiling(ctx context.Context, params store.FilingParams) (*models.TaxFiling, error) {
	return s.store.GetOrCreateFiling(ctx, params)
}

func (s *Service) AutoGenerateFiling(ctx context.Context, userId, periodType, taxType string) (*models.TaxFiling, error) {
	return s.store.AutoGenerateFiling(ctx, userId, periodType, taxType)
}

func (s *Service) GetFiling(ctx context.Context, userId, filingId string) (*models.TaxFiling, error) {
	return s.store.GetFiling(ctx, userId, filingId)
}

func (s *Service) GetFilingItems(ctx context.Context, userId, filingId string) ([]models.TaxFilingItem, error) {
	return s.store.GetFilingItems(ctx, userId, filingId)
}

func (s *Service) SubmitFiling(ctx context.Context, params store.SubmitFilingParams) (*models.TaxSubmission, *models.Transaction, error) {
	var submission *models.TaxSubmission
	var txn *models.Transaction
	err := s.withRetry(ctx, "submit tax filing", func() error {
		var err error
		submission, txn, err = s.store.SubmitFiling(ctx, params)
		return err
	})
	return submission, txn, err
}

func (s *Service) AnnualTaxReport(ctx context.Context, userId string, year int, taxType string) (*models.TaxReport, error) {
	return s.store.AnnualTaxReport(ctx, userId, year, taxType)
}
