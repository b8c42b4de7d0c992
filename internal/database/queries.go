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

const (
	// User queries
	queryInsertUser = `
		INSERT INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetActiveUsers = `
		SELECT id, name, email, active, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryGetUserById = `
		SELECT id, name, email, active, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, active, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Account queries
	accountColumns = `id, user_id, name, balance, currency, is_default, is_active,
		last_transaction_id, version, created_at, updated_at`

	queryInsertAccount = `
		INSERT INTO accounts (id, user_id, name, balance, currency, is_default, version)
		VALUES (?, ?, ?, ?, ?, ?, 1)`

	queryGetAccount = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = ? AND user_id = ?`

	queryGetAccounts = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = ?
		ORDER BY created_at`

	queryGetDefaultAccount = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = ? AND is_default = 1`

	queryCountAccounts = `
		SELECT COUNT(*) FROM accounts WHERE user_id = ?`

	queryUpdateAccountBalance = `
		UPDATE accounts
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND version = ?`

	queryDeleteAccount = `
		DELETE FROM accounts WHERE id = ? AND user_id = ?`

	queryPromoteAccountToDefault = `
		UPDATE accounts SET is_default = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryReassignTransactions = `
		UPDATE transactions SET account_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND user_id = ?`

	queryCountAccountTransactions = `
		SELECT COUNT(*) FROM transactions WHERE account_id = ? AND user_id = ?`

	queryTotalBalance = `
		SELECT COALESCE(balance, '0') FROM accounts WHERE user_id = ?`

	// Transaction queries
	transactionColumns = `id, user_id, account_id, amount, description, transaction_type,
		category, date, reference_number, payment_method, notes,
		related_invoice_id, related_tax_filing_id, balance_after, created_at, updated_at`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, account_id, amount, description, transaction_type, category, date,
			reference_number, payment_method, notes, related_invoice_id, related_tax_filing_id,
			balance_after, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ? AND user_id = ?`

	queryUpdateTransaction = `
		UPDATE transactions
		SET account_id = ?, amount = ?, description = ?, transaction_type = ?, category = ?,
		    date = ?, balance_after = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryDeleteTransaction = `
		DELETE FROM transactions WHERE id = ? AND user_id = ?`

	queryLinkTransactionInvoice = `
		UPDATE transactions SET related_invoice_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	querySalesInPeriod = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND transaction_type = 'sale' AND date >= ? AND date < ?
		ORDER BY date`

	queryTaxPaymentsInPeriod = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND transaction_type = 'expense' AND category = ? AND date >= ? AND date < ?
		ORDER BY date`

	// Invoice queries
	invoiceColumns = `id, user_id, invoice_number, customer_name, customer_email, customer_address,
		customer_phone, customer_tax_id, issue_date, due_date, subtotal, tax_rate, tax_amount,
		total_amount, status, notes, currency, payment_date, payment_reference, payment_method,
		related_transaction_id, created_at, updated_at`

	queryInsertInvoice = `
		INSERT INTO invoices (
			id, user_id, invoice_number, customer_name, customer_email, customer_address,
			customer_phone, customer_tax_id, issue_date, due_date, subtotal, tax_rate,
			tax_amount, total_amount, status, notes, currency, related_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetInvoice = `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = ? AND user_id = ?`

	queryDeleteInvoice = `
		DELETE FROM invoices WHERE id = ? AND user_id = ?`

	queryInsertInvoiceItem = `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount, tax_included, tax_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateInvoiceItemAmount = `
		UPDATE invoice_items SET amount = ? WHERE id = ?`

	queryGetInvoiceItems = `
		SELECT id, invoice_id, description, quantity, unit_price, amount, tax_included, tax_rate, created_at
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY created_at, id`

	queryUpdateInvoiceTotals = `
		UPDATE invoices
		SET subtotal = ?, tax_rate = ?, tax_amount = ?, total_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryMarkInvoicePaid = `
		UPDATE invoices
		SET status = 'paid', payment_date = ?, payment_reference = ?, payment_method = ?,
		    notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryNextInvoiceSeq = `
		INSERT INTO invoice_sequences (user_id, year, month, seq) VALUES (?, ?, ?, 1)
		ON CONFLICT(user_id, year, month) DO UPDATE SET seq = seq + 1
		RETURNING seq`

	// Tax filing queries
	filingColumns = `id, user_id, period_start, period_end, tax_type, period_type, total_sales,
		total_tax_collected, total_tax_paid, net_tax_liability, transaction_count, status,
		auto_generated, created_at, updated_at`

	queryInsertFiling = `
		INSERT INTO tax_filings (
			id, user_id, period_start, period_end, tax_type, period_type, total_sales,
			total_tax_collected, total_tax_paid, net_tax_liability, transaction_count,
			status, auto_generated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetFiling = `
		SELECT ` + filingColumns + `
		FROM tax_filings
		WHERE id = ? AND user_id = ?`

	queryGetFilingByPeriod = `
		SELECT ` + filingColumns + `
		FROM tax_filings
		WHERE user_id = ? AND tax_type = ? AND period_start = ? AND period_end = ?`

	queryGetFilingsForType = `
		SELECT ` + filingColumns + `
		FROM tax_filings
		WHERE user_id = ? AND tax_type = ?`

	queryGetFilingsInRange = `
		SELECT ` + filingColumns + `
		FROM tax_filings
		WHERE user_id = ? AND period_start >= ? AND period_end <= ?
		ORDER BY period_start`

	queryUpdateFilingTotals = `
		UPDATE tax_filings
		SET total_sales = ?, total_tax_collected = ?, total_tax_paid = ?, net_tax_liability = ?,
		    transaction_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryUpdateFilingStatus = `
		UPDATE tax_filings SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	queryInsertFilingItem = `
		INSERT OR IGNORE INTO tax_filing_items (id, filing_id, transaction_id, invoice_id, amount, tax_amount, item_type, included_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryDeleteFilingItemsByType = `
		DELETE FROM tax_filing_items WHERE filing_id = ? AND item_type = ?`

	queryGetFilingItems = `
		SELECT id, filing_id, transaction_id, invoice_id, amount, tax_amount, item_type, included_on
		FROM tax_filing_items
		WHERE filing_id = ?
		ORDER BY included_on, id`

	// Tax submission queries
	submissionColumns = `id, user_id, filing_id, submission_date, total_tax_liability,
		payment_reference, confirmation_number, status, notes, created_at`

	queryInsertSubmission = `
		INSERT INTO tax_submissions (
			id, user_id, filing_id, submission_date, total_tax_liability,
			payment_reference, confirmation_number, status, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSubmissionsInRange = `
		SELECT ` + submissionColumns + `
		FROM tax_submissions s
		WHERE s.user_id = ?
		  AND s.filing_id IN (
			SELECT id FROM tax_filings
			WHERE user_id = ? AND period_start >= ? AND period_end <= ?
		  )
		ORDER BY s.submission_date DESC`
)
