// Package balance derives account-balance deltas from transaction lifecycle
// events. All balance mutations in the system flow through the signed deltas
// computed here; no other code path decides balance arithmetic.
package balance

import (
	"github.com/shopspring/decimal"

	"bizledger-go/internal/models"
)

// EffectOf returns the signed balance delta a transaction of the given type
// and (positive) amount has on its account. Sales credit, expenses debit,
// transfers and other movements are balance-neutral. EffectOf and ReverseOf
// are exact negations of each other, so applying both restores the prior
// balance with no decimal drift.
func EffectOf(transactionType string, amount decimal.Decimal) decimal.Decimal {
	switch transactionType {
	case models.TransactionTypeSale:
		return amount
	case models.TransactionTypeExpense:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}

// ReverseOf returns the delta that undoes a previously applied transaction.
func ReverseOf(transactionType string, amount decimal.Decimal) decimal.Decimal {
	return EffectOf(transactionType, amount).Neg()
}

// Apply returns the balance after applying delta to current.
func Apply(current, delta decimal.Decimal) decimal.Decimal {
	return current.Add(delta)
}
