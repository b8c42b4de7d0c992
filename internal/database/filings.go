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
	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
	"bizledger-go/internal/tax"
)

func getFilingTx(ctx context.Context, q querier, userId, filingId string) (*models.TaxFiling, error) {
	filing, err := scanFiling(q.QueryRowContext(ctx, queryGetFiling, filingId, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: tax filing %s", store.ErrNotFound, filingId)
		}
		return nil, fmt.Errorf("failed to get tax filing: %w", err)
	}
	return filing, nil
}

func getFilingByPeriodTx(ctx context.Context, q querier, userId, taxType string, period tax.Period) (*models.TaxFiling, error) {
	filing, err := scanFiling(q.QueryRowContext(ctx, queryGetFilingByPeriod,
		userId, taxType, period.Start.Format(dateLayout), period.End.Format(dateLayout)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get tax filing by period: %w", err)
	}
	return filing, nil
}

// checkPeriodOverlapTx rejects a new period that shares any day with an
// existing filing of the same tax type.
func checkPeriodOverlapTx(ctx context.Context, q querier, userId, taxType string, period tax.Period) error {
	rows, err := q.QueryContext(ctx, queryGetFilingsForType, userId, taxType)
	if err != nil {
		return fmt.Errorf("failed to query tax filings: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		existing, err := scanFiling(rows)
		if err != nil {
			return fmt.Errorf("failed to scan tax filing: %w", err)
		}
		if period.Overlaps(tax.Period{Start: existing.PeriodStart, End: existing.PeriodEnd}) {
			return fmt.Errorf("%w: period overlaps filing %s (%s to %s)",
				store.ErrConflict, existing.Id,
				existing.PeriodStart.Format(dateLayout), existing.PeriodEnd.Format(dateLayout))
		}
	}
	return rows.Err()
}

func insertFilingTx(ctx context.Context, tx *sql.Tx, filing *models.TaxFiling) error {
	_, err := tx.ExecContext(ctx, queryInsertFiling,
		filing.Id, filing.UserId,
		filing.PeriodStart.Format(dateLayout), filing.PeriodEnd.Format(dateLayout),
		filing.TaxType, filing.PeriodType,
		filing.TotalSales.String(), filing.TotalTaxCollected.String(),
		filing.TotalTaxPaid.String(), filing.NetTaxLiability.String(),
		filing.TransactionCount, filing.Status, filing.AutoGenerated)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: filing already exists for period", store.ErrConflict)
		}
		return fmt.Errorf("failed to insert tax filing: %w", err)
	}
	return nil
}

func queryTransactionsTx(ctx context.Context, q querier, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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
	return transactions, rows.Err()
}

// aggregateFilingTx recomputes the filing's totals from the transactions in
// its period: sales sum to total_sales and their tax at the default rate to
// total_tax_collected; expense transactions in the tax-payment category sum
// to total_tax_paid. The transaction-type filing items are refreshed to
// mirror the sales considered; re-running is deterministic. Invoice items
// are left alone, they are linkage, not input.
func (s *Service) aggregateFilingTx(ctx context.Context, tx *sql.Tx, filing *models.TaxFiling) error {
	periodEndExclusive := filing.PeriodEnd.AddDate(0, 0, 1)

	sales, err := queryTransactionsTx(ctx, tx, querySalesInPeriod,
		filing.UserId, filing.PeriodStart, periodEndExclusive)
	if err != nil {
		return err
	}
	payments, err := queryTransactionsTx(ctx, tx, queryTaxPaymentsInPeriod,
		filing.UserId, models.CategoryTaxPayment, filing.PeriodStart, periodEndExclusive)
	if err != nil {
		return err
	}

	totalSales := decimal.Zero
	totalCollected := decimal.Zero
	for _, txn := range sales {
		totalSales = totalSales.Add(txn.Amount)
		breakdown, err := tax.Calculate(txn.Amount, s.taxRate, false)
		if err != nil {
			return err
		}
		totalCollected = totalCollected.Add(breakdown.Tax)
	}

	totalPaid := decimal.Zero
	for _, txn := range payments {
		totalPaid = totalPaid.Add(txn.Amount)
	}

	filing.TotalSales = totalSales
	filing.TotalTaxCollected = totalCollected
	filing.TotalTaxPaid = totalPaid
	filing.NetTaxLiability = totalCollected.Sub(totalPaid)
	filing.TransactionCount = len(sales) + len(payments)

	if _, err := tx.ExecContext(ctx, queryDeleteFilingItemsByType, filing.Id, "transaction"); err != nil {
		return fmt.Errorf("failed to refresh filing items: %w", err)
	}
	now := time.Now().UTC()
	for _, txn := range sales {
		breakdown, err := tax.Calculate(txn.Amount, s.taxRate, false)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryInsertFilingItem,
			uuid.New().String(), filing.Id, txn.Id, "",
			txn.Amount.String(), breakdown.Tax.String(), "transaction", now); err != nil {
			return fmt.Errorf("failed to insert filing item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, queryUpdateFilingTotals,
		filing.TotalSales.String(), filing.TotalTaxCollected.String(),
		filing.TotalTaxPaid.String(), filing.NetTaxLiability.String(),
		filing.TransactionCount, filing.Id, filing.UserId); err != nil {
		return fmt.Errorf("failed to update filing totals: %w", err)
	}
	return nil
}

// findOrCreateFilingTx returns the filing for the exact period, creating a
// draft when none exists. The caller owns the transaction.
func (s *Service) findOrCreateFilingTx(ctx context.Context, tx *sql.Tx, userId, taxType, periodType string, period tax.Period, autoGenerated bool) (*models.TaxFiling, error) {
	filing, err := getFilingByPeriodTx(ctx, tx, userId, taxType, period)
	if err == nil {
		return filing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err := checkPeriodOverlapTx(ctx, tx, userId, taxType, period); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	filing = &models.TaxFiling{
		Id:                uuid.New().String(),
		UserId:            userId,
		PeriodStart:       period.Start,
		PeriodEnd:         period.End,
		TaxType:           taxType,
		PeriodType:        periodType,
		TotalSales:        decimal.Zero,
		TotalTaxCollected: decimal.Zero,
		TotalTaxPaid:      decimal.Zero,
		NetTaxLiability:   decimal.Zero,
		Status:            models.FilingStatusDraft,
		AutoGenerated:     autoGenerated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := insertFilingTx(ctx, tx, filing); err != nil {
		return nil, err
	}
	return filing, nil
}

// includeInvoiceInCurrentFilingTx folds a just-paid invoice into the GST
// filing for the quarter containing now, creating the filing as a draft if
// needed. The linkage insert is idempotent; the aggregation re-run keeps the
// totals the source of truth. A filing that already went out is frozen and
// rejects the inclusion.
func (s *Service) includeInvoiceInCurrentFilingTx(ctx context.Context, tx *sql.Tx, inv *models.Invoice, now time.Time) error {
	period := tax.CurrentQuarter(now)
	filing, err := s.findOrCreateFilingTx(ctx, tx, inv.UserId, models.TaxTypeGST, models.PeriodQuarterly, period, false)
	if err != nil {
		return err
	}
	if err := tax.CheckSubmittable(filing.Status); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, queryInsertFilingItem,
		uuid.New().String(), filing.Id, "", inv.Id,
		inv.Subtotal.String(), inv.TaxAmount.String(), "invoice", now.UTC()); err != nil {
		return fmt.Errorf("failed to insert filing item: %w", err)
	}
	return s.aggregateFilingTx(ctx, tx, filing)
}

// GetOrCreateFiling finds the filing for the exact period or creates a draft,
// then (re)populates its totals from the transactions in the period. A period
// that overlaps an existing filing of the same tax type without matching it
// exactly is rejected with ErrConflict.
func (s *Service) GetOrCreateFiling(ctx context.Context, params store.FilingParams) (*models.TaxFiling, error) {
	if !models.ValidTaxType(params.TaxType) {
		return nil, fmt.Errorf("%w: invalid tax type %q", store.ErrInvalidInput, params.TaxType)
	}
	if !models.ValidPeriodType(params.PeriodType) {
		return nil, fmt.Errorf("%w: invalid period type %q", store.ErrInvalidInput, params.PeriodType)
	}
	if params.PeriodEnd.Before(params.PeriodStart) {
		return nil, fmt.Errorf("%w: period end before period start", store.ErrInvalidInput)
	}

	period := tax.Period{Start: params.PeriodStart.UTC().Truncate(24 * time.Hour), End: params.PeriodEnd.UTC().Truncate(24 * time.Hour)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filing, err := s.findOrCreateFilingTx(ctx, tx, params.UserId, params.TaxType, params.PeriodType, period, false)
	if err != nil {
		return nil, err
	}
	if err := s.aggregateFilingTx(ctx, tx, filing); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Tax filing ready",
		zap.String("filing_id", filing.Id),
		zap.String("period_start", filing.PeriodStart.Format(dateLayout)),
		zap.String("period_end", filing.PeriodEnd.Format(dateLayout)),
		zap.String("net_tax_liability", filing.NetTaxLiability.String()))
	return filing, nil
}

// AutoGenerateFiling creates (or refreshes) the filing for the most recent
// completed period of the given type.
func (s *Service) AutoGenerateFiling(ctx context.Context, userId, periodType, taxType string) (*models.TaxFiling, error) {
	if !models.ValidTaxType(taxType) {
		return nil, fmt.Errorf("%w: invalid tax type %q", store.ErrInvalidInput, taxType)
	}
	period, err := tax.PreviousPeriod(time.Now().UTC(), periodType)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filing, err := s.findOrCreateFilingTx(ctx, tx, userId, taxType, periodType, period, true)
	if err != nil {
		return nil, err
	}
	if err := s.aggregateFilingTx(ctx, tx, filing); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Tax filing auto-generated",
		zap.String("filing_id", filing.Id),
		zap.String("period_type", periodType),
		zap.String("tax_type", taxType))
	return filing, nil
}

func (s *Service) GetFiling(ctx context.Context, userId, filingId string) (*models.TaxFiling, error) {
	return getFilingTx(ctx, s.db, userId, filingId)
}

func (s *Service) GetFilingItems(ctx context.Context, userId, filingId string) ([]models.TaxFilingItem, error) {
	// Ownership check first so a foreign filing id reads as not-found.
	if _, err := getFilingTx(ctx, s.db, userId, filingId); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryGetFilingItems, filingId)
	if err != nil {
		return nil, fmt.Errorf("failed to query filing items: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var items []models.TaxFilingItem
	for rows.Next() {
		item, err := scanFilingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filing item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SubmitFiling records a submission for the filing and settles the liability
// in one unit: totals are recomputed first, a TaxSubmission row is written
// with a fresh confirmation number, a tax-payment expense for the net
// liability hits the default account, and the filing moves to submitted.
// Accepted filings cannot be resubmitted; rejected ones can.
func (s *Service) SubmitFiling(ctx context.Context, params store.SubmitFilingParams) (*models.TaxSubmission, *models.Transaction, error) {
	zap.L().Info("Submitting tax filing",
		zap.String("user_id", params.UserId),
		zap.String("filing_id", params.FilingId))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	filing, err := getFilingTx(ctx, tx, params.UserId, params.FilingId)
	if err != nil {
		return nil, nil, err
	}
	if err := tax.CheckSubmittable(filing.Status); err != nil {
		return nil, nil, err
	}
	if err := s.aggregateFilingTx(ctx, tx, filing); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	submission := &models.TaxSubmission{
		Id:                 uuid.New().String(),
		UserId:             params.UserId,
		FilingId:           filing.Id,
		SubmissionDate:     now,
		TotalTaxLiability:  filing.NetTaxLiability,
		PaymentReference:   params.PaymentReference,
		ConfirmationNumber: tax.NewConfirmationNumber(now),
		Status:             models.SubmissionStatusSubmitted,
		Notes:              params.Notes,
		CreatedAt:          now,
	}
	if _, err := tx.ExecContext(ctx, queryInsertSubmission,
		submission.Id, submission.UserId, submission.FilingId, submission.SubmissionDate,
		submission.TotalTaxLiability.String(), submission.PaymentReference,
		submission.ConfirmationNumber, submission.Status, submission.Notes); err != nil {
		return nil, nil, fmt.Errorf("failed to insert tax submission: %w", err)
	}

	// Only a positive liability produces a payment; a refund position leaves
	// the account untouched.
	var txn *models.Transaction
	if filing.NetTaxLiability.IsPositive() {
		account, err := getDefaultAccountTx(ctx, tx, params.UserId)
		if err != nil {
			return nil, nil, err
		}
		transactionId := uuid.New().String()
		newBalance, err := applyDeltaTx(ctx, tx, account,
			balance.EffectOf(models.TransactionTypeExpense, filing.NetTaxLiability), transactionId)
		if err != nil {
			return nil, nil, err
		}
		txn = &models.Transaction{
			Id:                 transactionId,
			UserId:             params.UserId,
			AccountId:          account.Id,
			Amount:             filing.NetTaxLiability,
			Description:        fmt.Sprintf("%s payment for %s to %s", filing.TaxType, filing.PeriodStart.Format(dateLayout), filing.PeriodEnd.Format(dateLayout)),
			TransactionType:    models.TransactionTypeExpense,
			Category:           models.CategoryTaxPayment,
			Date:               now,
			ReferenceNumber:    params.PaymentReference,
			RelatedTaxFilingId: filing.Id,
			BalanceAfter:       newBalance,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := insertTransactionTx(ctx, tx, txn); err != nil {
			return nil, nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, queryUpdateFilingStatus,
		models.FilingStatusSubmitted, filing.Id, params.UserId); err != nil {
		return nil, nil, fmt.Errorf("failed to update filing status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Tax filing submitted",
		zap.String("filing_id", filing.Id),
		zap.String("confirmation_number", submission.ConfirmationNumber),
		zap.String("total_tax_liability", submission.TotalTaxLiability.String()))
	return submission, txn, nil
}

// AnnualTaxReport collects every filing and submission whose period falls in
// the calendar year. TotalTaxPaid sums the liabilities of submissions that
// went out (submitted or accepted).
func (s *Service) AnnualTaxReport(ctx context.Context, userId string, year int, taxType string) (*models.TaxReport, error) {
	period := tax.Year(year)
	start := period.Start.Format(dateLayout)
	end := period.End.Format(dateLayout)

	rows, err := s.db.QueryContext(ctx, queryGetFilingsInRange, userId, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax filings: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	report := &models.TaxReport{Year: year, TaxType: taxType, TotalTaxPaid: decimal.Zero}
	filingIds := map[string]bool{}
	for rows.Next() {
		filing, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax filing: %w", err)
		}
		if taxType != "" && filing.TaxType != taxType {
			continue
		}
		filingIds[filing.Id] = true
		report.Filings = append(report.Filings, *filing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax filing rows: %w", err)
	}

	subRows, err := s.db.QueryContext(ctx, queryGetSubmissionsInRange, userId, userId, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax submissions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(subRows)

	for subRows.Next() {
		submission, err := scanSubmission(subRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax submission: %w", err)
		}
		if taxType != "" && !filingIds[submission.FilingId] {
			continue
		}
		report.Submissions = append(report.Submissions, *submission)
		if submission.Status == models.SubmissionStatusSubmitted || submission.Status == models.SubmissionStatusAccepted {
			report.TotalTaxPaid = report.TotalTaxPaid.Add(submission.TotalTaxLiability)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax submission rows: %w", err)
	}
	return report, nil
}
