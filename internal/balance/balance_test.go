package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bizledger-go/internal/models"
)

func TestEffectOf(t *testing.T) {
	amount := decimal.RequireFromString("100.50")

	assert.True(t, EffectOf(models.TransactionTypeSale, amount).Equal(amount))
	assert.True(t, EffectOf(models.TransactionTypeExpense, amount).Equal(amount.Neg()))
	assert.True(t, EffectOf(models.TransactionTypeTransfer, amount).IsZero())
	assert.True(t, EffectOf(models.TransactionTypeOther, amount).IsZero())
}

func TestApplyThenReverseRestoresBalance(t *testing.T) {
	start := decimal.RequireFromString("1234.56")

	for _, txnType := range []string{
		models.TransactionTypeSale,
		models.TransactionTypeExpense,
		models.TransactionTypeTransfer,
		models.TransactionTypeOther,
	} {
		amount := decimal.RequireFromString("42.37")
		applied := Apply(start, EffectOf(txnType, amount))
		restored := Apply(applied, ReverseOf(txnType, amount))
		assert.True(t, restored.Equal(start), "round trip for %s: got %s", txnType, restored)
	}
}
