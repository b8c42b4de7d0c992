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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db *sql.DB

	// Ledger-wide defaults applied when a caller does not specify a rate
	// or currency.
	taxRate  decimal.Decimal
	currency string
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, ledger models.LedgerConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate serializes writers at BeginTx so concurrent units
	// queue on the busy timeout instead of deadlocking on lock upgrade.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	currency := ledger.DefaultCurrency
	if currency == "" {
		currency = "INR"
	}
	taxRate := ledger.DefaultTaxRate
	if taxRate.IsZero() {
		taxRate = decimal.NewFromInt(18)
	}
	service := &Service{db: db, taxRate: taxRate, currency: currency}
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Merchant users. Credentials live with the identity collaborator.
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	-- Accounts (current balance state). Version is the optimistic-lock
	-- counter; every balance write is a compare-and-set on it.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'INR',
		is_default BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_transaction_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);
	-- Exactly one default account per user.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_user_default ON accounts(user_id) WHERE is_default = 1;

	-- Transactions (audit trail). Amounts are stored positive; the balance
	-- effect is derived from transaction_type.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		date TIMESTAMP NOT NULL,
		reference_number TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		related_invoice_id TEXT NOT NULL DEFAULT '',
		related_tax_filing_id TEXT NOT NULL DEFAULT '',
		balance_after TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(user_id, transaction_type);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(user_id, category);

	-- Invoices and their line items. Items die with the invoice.
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		invoice_number TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_email TEXT NOT NULL DEFAULT '',
		customer_address TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		customer_tax_id TEXT NOT NULL DEFAULT '',
		issue_date TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		subtotal TEXT NOT NULL DEFAULT '0',
		tax_rate TEXT NOT NULL DEFAULT '18',
		tax_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'draft',
		notes TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'INR',
		payment_date TIMESTAMP,
		payment_reference TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		related_transaction_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, invoice_number)
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_user_status ON invoices(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_invoices_user_issue_date ON invoices(user_id, issue_date);

	CREATE TABLE IF NOT EXISTS invoice_items (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		description TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '1',
		unit_price TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL DEFAULT '0',
		tax_included BOOLEAN NOT NULL DEFAULT 0,
		tax_rate TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id);

	-- Per-user monotonic invoice numbering, scoped to year and month.
	CREATE TABLE IF NOT EXISTS invoice_sequences (
		user_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, year, month)
	);

	-- Tax filings: one non-overlapping period per user and tax type.
	CREATE TABLE IF NOT EXISTS tax_filings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		tax_type TEXT NOT NULL,
		period_type TEXT NOT NULL DEFAULT 'quarterly',
		total_sales TEXT NOT NULL DEFAULT '0',
		total_tax_collected TEXT NOT NULL DEFAULT '0',
		total_tax_paid TEXT NOT NULL DEFAULT '0',
		net_tax_liability TEXT NOT NULL DEFAULT '0',
		transaction_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		auto_generated BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, tax_type, period_start, period_end)
	);
	CREATE INDEX IF NOT EXISTS idx_tax_filings_user_period ON tax_filings(user_id, period_start);

	CREATE TABLE IF NOT EXISTS tax_filing_items (
		id TEXT PRIMARY KEY,
		filing_id TEXT NOT NULL REFERENCES tax_filings(id) ON DELETE CASCADE,
		transaction_id TEXT NOT NULL DEFAULT '',
		invoice_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0',
		tax_amount TEXT NOT NULL DEFAULT '0',
		item_type TEXT NOT NULL DEFAULT '',
		included_on TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tax_filing_items_filing ON tax_filing_items(filing_id);
	-- Including the same invoice or transaction twice must not double-count.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tax_filing_items_invoice
		ON tax_filing_items(filing_id, invoice_id) WHERE invoice_id != '';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tax_filing_items_transaction
		ON tax_filing_items(filing_id, transaction_id) WHERE transaction_id != '';

	-- Submission history: many submissions may reference one filing.
	CREATE TABLE IF NOT EXISTS tax_submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		filing_id TEXT NOT NULL REFERENCES tax_filings(id),
		submission_date TIMESTAMP NOT NULL,
		total_tax_liability TEXT NOT NULL DEFAULT '0',
		payment_reference TEXT NOT NULL DEFAULT '',
		confirmation_number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tax_submissions_user ON tax_submissions(user_id, submission_date);
	CREATE INDEX IF NOT EXISTS idx_tax_submissions_filing ON tax_submissions(filing_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
