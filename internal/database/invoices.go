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

// insertInvoiceTx persists an invoice and its items inside an open unit.
// An empty invoice number is allocated from the owner's monotonic sequence
// for the issue month; the sequence row is bumped in the same unit so two
// concurrent creators can never observe the same value.
func (s *Service) insertInvoiceTx(ctx context.Context, tx *sql.Tx, inv *models.Invoice) error {
	if inv.Id == "" {
		inv.Id = uuid.New().String()
	}
	if inv.InvoiceNumber == "" {
		year, month, _ := inv.IssueDate.UTC().Date()
		var seq int64
		if err := tx.QueryRowContext(ctx, queryNextInvoiceSeq, inv.UserId, year, int(month)).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", err)
		}
		inv.InvoiceNumber = invoice.FormatNumber(year, month, seq)
	}

	_, err := tx.ExecContext(ctx, queryInsertInvoice,
		inv.Id, inv.UserId, inv.InvoiceNumber, inv.CustomerName, inv.CustomerEmail,
		inv.CustomerAddress, inv.CustomerPhone, inv.CustomerTaxId, inv.IssueDate,
		inv.DueDate, inv.Subtotal.String(), inv.TaxRate.String(), inv.TaxAmount.String(),
		inv.TotalAmount.String(), inv.Status, inv.Notes, inv.Currency, inv.RelatedTransactionId)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice number %s already exists", store.ErrConflict, inv.InvoiceNumber)
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.Id == "" {
			item.Id = uuid.New().String()
		}
		item.InvoiceId = inv.Id
		var rate any
		if item.TaxRate != nil {
			rate = item.TaxRate.String()
		}
		if _, err := tx.ExecContext(ctx, queryInsertInvoiceItem,
			item.Id, item.InvoiceId, item.Description, item.Quantity.String(),
			item.UnitPrice.String(), item.Amount.String(), item.TaxIncluded, rate); err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}

func (s *Service) CreateInvoice(ctx context.Context, params store.CreateInvoiceParams) (*models.Invoice, error) {
	if len(params.Items) == 0 {
		return nil, fmt.Errorf("%w: invoice requires at least one item", store.ErrInvalidInput)
	}

	issueDate := params.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}
	dueDate := params.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.Add(invoice.DueDateOffset)
	}
	taxRate := params.TaxRate
	if taxRate.IsZero() {
		taxRate = s.taxRate
	}
	status := params.Status
	if status == "" {
		status = models.InvoiceStatusDraft
	}
	if !models.ValidInvoiceStatus(status) {
		return nil, fmt.Errorf("%w: invalid invoice status %q", store.ErrInvalidInput, status)
	}
	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}

	now := time.Now().UTC()
	inv := &models.Invoice{
		UserId:          params.UserId,
		InvoiceNumber:   params.InvoiceNumber,
		CustomerName:    params.CustomerName,
		CustomerEmail:   params.CustomerEmail,
		CustomerAddress: params.CustomerAddress,
		CustomerPhone:   params.CustomerPhone,
		CustomerTaxId:   params.CustomerTaxId,
		IssueDate:       issueDate,
		DueDate:         dueDate,
		TaxRate:         taxRate,
		Status:          status,
		Notes:           params.Notes,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range params.Items {
		inv.Items = append(inv.Items, models.InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxIncluded: item.TaxIncluded,
			TaxRate:     item.TaxRate,
		})
	}
	if err := invoice.Recalculate(inv); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertInvoiceTx(ctx, tx, inv); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Invoice created",
		zap.String("invoice_id", inv.Id),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()))
	return inv, nil
}

func getInvoiceTx(ctx context.Context, q querier, userId, invoiceId string) (*models.Invoice, error) {
	inv, err := scanInvoice(q.QueryRowContext(ctx, queryGetInvoice, invoiceId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceId)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	rows, err := q.QueryContext(ctx, queryGetInvoiceItems, inv.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		item, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice item rows: %w", err)
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, userId, invoiceId string) (*models.Invoice, error) {
	return getInvoiceTx(ctx, s.db, userId, invoiceId)
}

func (s *Service) ListInvoices(ctx context.Context, userId string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE user_id = ?"
	args := []any{userId}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.StartDate != nil {
		query += " AND issue_date >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND issue_date < ?"
		args = append(args, filter.EndDate.UTC().AddDate(0, 0, 1))
	}
	if filter.CustomerName != "" {
		query += " AND customer_name LIKE ? COLLATE NOCASE"
		args = append(args, "%"+filter.CustomerName+"%")
	}
	query += " ORDER BY issue_date DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// UpdateInvoice applies a partial update. Changing the tax rate recomputes
// tax_amount and total_amount from the stored items. Payment is not recorded
// here; MarkInvoicePaid owns that transition.
func (s *Service) UpdateInvoice(ctx context.Context, userId, invoiceId string, params store.UpdateInvoiceParams) (*models.Invoice, error) {
	if params.Status != nil {
		if !models.ValidInvoiceStatus(*params.Status) {
			return nil, fmt.Errorf("%w: invalid invoice status %q", store.ErrInvalidInput, *params.Status)
		}
		if *params.Status == models.InvoiceStatusPaid {
			return nil, fmt.Errorf("%w: use mark-paid to record payment", store.ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, userId, invoiceId)
	if err != nil {
		return nil, err
	}

	set := ""
	var args []any
	appendSet := func(column string, value any) {
		if set != "" {
			set += ", "
		}
		set += column + " = ?"
		args = append(args, value)
	}

	if params.CustomerName != nil {
		inv.CustomerName = *params.CustomerName
		appendSet("customer_name", inv.CustomerName)
	}
	if params.CustomerEmail != nil {
		inv.CustomerEmail = *params.CustomerEmail
		appendSet("customer_email", inv.CustomerEmail)
	}
	if params.CustomerAddress != nil {
		inv.CustomerAddress = *params.CustomerAddress
		appendSet("customer_address", inv.CustomerAddress)
	}
	if params.CustomerPhone != nil {
		inv.CustomerPhone = *params.CustomerPhone
		appendSet("customer_phone", inv.CustomerPhone)
	}
	if params.CustomerTaxId != nil {
		inv.CustomerTaxId = *params.CustomerTaxId
		appendSet("customer_tax_id", inv.CustomerTaxId)
	}
	if params.IssueDate != nil {
		inv.IssueDate = params.IssueDate.UTC()
		appendSet("issue_date", inv.IssueDate)
	}
	if params.DueDate != nil {
		inv.DueDate = params.DueDate.UTC()
		appendSet("due_date", inv.DueDate)
	}
	if params.Status != nil {
		inv.Status = *params.Status
		appendSet("status", inv.Status)
	}
	if params.Notes != nil {
		inv.Notes = *params.Notes
		appendSet("notes", inv.Notes)
	}
	if params.Currency != nil {
		inv.Currency = *params.Currency
		appendSet("currency", inv.Currency)
	}
	if params.PaymentReference != nil {
		inv.PaymentReference = *params.PaymentReference
		appendSet("payment_reference", inv.PaymentReference)
	}
	if params.PaymentMethod != nil {
		inv.PaymentMethod = *params.PaymentMethod
		appendSet("payment_method", inv.PaymentMethod)
	}
	if params.TaxRate != nil {
		inv.TaxRate = *params.TaxRate
		if err := invoice.Recalculate(inv); err != nil {
			return nil, err
		}
		appendSet("tax_rate", inv.TaxRate.String())
		appendSet("tax_amount", inv.TaxAmount.String())
		appendSet("total_amount", inv.TotalAmount.String())
	}

	if set == "" {
		return inv, nil
	}

	query := "UPDATE invoices SET " + set + ", updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?"
	args = append(args, invoiceId, userId)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Invoice updated", zap.String("invoice_id", invoiceId))
	return inv, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, userId, invoiceId string) error {
	result, err := s.db.ExecContext(ctx, queryDeleteInvoice, invoiceId, userId)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceId)
	}
	zap.L().Info("Invoice deleted", zap.String("invoice_id", invoiceId))
	return nil
}

// MarkInvoicePaid flips the invoice to paid and records the cash receipt in
// one unit. The receipt is a sale against the default account unless the
// invoice was spawned by a sale transaction, in which case it is an "other"
// receipt with zero balance effect so revenue is not counted twice. With
// FileTaxes set the invoice is also folded into the current-quarter GST
// filing, created as a draft when none exists.
func (s *Service) MarkInvoicePaid(ctx context.Context, params store.MarkInvoicePaidParams) (*models.Invoice, *models.Transaction, error) {
	zap.L().Info("Marking invoice paid",
		zap.String("user_id", params.UserId),
		zap.String("invoice_id", params.InvoiceId),
		zap.Bool("file_taxes", params.FileTaxes))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, params.UserId, params.InvoiceId)
	if err != nil {
		return nil, nil, err
	}
	if err := invoice.CheckPayable(inv.Status); err != nil {
		return nil, nil, err
	}

	account, err := getDefaultAccountTx(ctx, tx, params.UserId)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	receiptType := invoice.ReceiptType(inv)
	transactionId := uuid.New().String()
	newBalance, err := applyDeltaTx(ctx, tx, account,
		balance.EffectOf(receiptType, inv.TotalAmount), transactionId)
	if err != nil {
		return nil, nil, err
	}

	txn := &models.Transaction{
		Id:               transactionId,
		UserId:           params.UserId,
		AccountId:        account.Id,
		Amount:           inv.TotalAmount,
		Description:      fmt.Sprintf("Payment received for invoice %s", inv.InvoiceNumber),
		TransactionType:  receiptType,
		Category:         "Invoice Payment",
		Date:             now,
		ReferenceNumber:  params.PaymentReference,
		PaymentMethod:    params.PaymentMethod,
		RelatedInvoiceId: inv.Id,
		BalanceAfter:     newBalance,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, queryMarkInvoicePaid,
		now, params.PaymentReference, params.PaymentMethod, inv.Notes,
		inv.Id, params.UserId); err != nil {
		return nil, nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	inv.Status = models.InvoiceStatusPaid
	inv.PaymentDate = now
	inv.PaymentReference = params.PaymentReference
	inv.PaymentMethod = params.PaymentMethod
	inv.UpdatedAt = now

	if params.FileTaxes {
		if err := s.includeInvoiceInCurrentFilingTx(ctx, tx, inv, now); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Invoice marked paid",
		zap.String("invoice_id", inv.Id),
		zap.String("receipt_transaction_id", txn.Id),
		zap.String("receipt_type", receiptType))
	return inv, txn, nil
}

// RecalculateInvoice recomputes item amounts, subtotal, tax and total from
// the stored items, optionally switching to a new default rate first. Safe
// to run repeatedly.
func (s *Service) RecalculateInvoice(ctx context.Context, userId, invoiceId string, taxRate *decimal.Decimal) (*models.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := getInvoiceTx(ctx, tx, userId, invoiceId)
	if err != nil {
		return nil, err
	}
	if taxRate != nil {
		inv.TaxRate = *taxRate
	}
	if err := invoice.Recalculate(inv); err != nil {
		return nil, err
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		if _, err := tx.ExecContext(ctx, queryUpdateInvoiceItemAmount, item.Amount.String(), item.Id); err != nil {
			return nil, fmt.Errorf("failed to update invoice item: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, queryUpdateInvoiceTotals,
		inv.Subtotal.String(), inv.TaxRate.String(), inv.TaxAmount.String(),
		inv.TotalAmount.String(), inv.Id, userId); err != nil {
		return nil, fmt.Errorf("failed to update invoice totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Invoice recalculated",
		zap.String("invoice_id", inv.Id),
		zap.String("tax_rate", inv.TaxRate.String()),
		zap.String("total_amount", inv.TotalAmount.String()))
	return inv, nil
}
