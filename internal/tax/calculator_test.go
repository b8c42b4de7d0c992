package tax

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizledger-go/internal/models"
	"bizledger-go/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_Exclusive(t *testing.T) {
	b, err := Calculate(dec("100.00"), dec("18.0"), false)
	require.NoError(t, err)

	assert.Equal(t, "100", b.Net.String())
	assert.Equal(t, "18", b.Tax.String())
	assert.Equal(t, "118", b.Gross.String())
	assert.Equal(t, "9", b.CGST.String())
	assert.Equal(t, "9", b.SGST.String())
	assert.True(t, b.IGST.IsZero())
}

func TestCalculate_Inclusive(t *testing.T) {
	b, err := Calculate(dec("118.00"), dec("18.0"), true)
	require.NoError(t, err)

	assert.True(t, b.Net.Equal(dec("100.00")), "net = %s", b.Net)
	assert.True(t, b.Tax.Equal(dec("18.00")), "tax = %s", b.Tax)
	assert.True(t, b.Gross.Equal(dec("118.00")), "gross = %s", b.Gross)
}

func TestCalculate_HalvesAlwaysSumToTax(t *testing.T) {
	// 33.33 at 5% gives an odd-cent tax; SGST takes the remainder.
	b, err := Calculate(dec("33.33"), dec("5.0"), false)
	require.NoError(t, err)

	assert.True(t, b.CGST.Add(b.SGST).Equal(b.Tax),
		"cgst %s + sgst %s != tax %s", b.CGST, b.SGST, b.Tax)
}

func TestCalculate_ZeroRate(t *testing.T) {
	b, err := Calculate(dec("50.00"), decimal.Zero, false)
	require.NoError(t, err)

	assert.True(t, b.Tax.IsZero())
	assert.True(t, b.Gross.Equal(dec("50.00")))
}

func TestCalculate_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name        string
		amount      string
		rate        string
		taxIncluded bool
	}{
		{"negative amount", "-1.00", "18.0", false},
		{"negative rate", "100.00", "-5.0", false},
		{"rate above 100", "100.00", "101.0", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(dec(tc.amount), dec(tc.rate), tc.taxIncluded)
			assert.True(t, errors.Is(err, store.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCalculateForInvoice_PerItemOverride(t *testing.T) {
	five := dec("5.0")
	items := []models.InvoiceItem{
		{Description: "widgets", Amount: dec("100.00"), TaxIncluded: false},
		{Description: "books", Amount: dec("200.00"), TaxIncluded: false, TaxRate: &five},
	}

	b, err := CalculateForInvoice(items, dec("18.0"))
	require.NoError(t, err)

	// 18.00 from the first item at the default rate, 10.00 from the second
	// at its own rate.
	assert.True(t, b.Tax.Equal(dec("28.00")), "tax = %s", b.Tax)
	assert.True(t, b.Net.Equal(dec("300.00")), "net = %s", b.Net)
	assert.True(t, b.Gross.Equal(dec("328.00")), "gross = %s", b.Gross)
}

func TestCalculateForInvoice_InclusiveItems(t *testing.T) {
	items := []models.InvoiceItem{
		{Description: "consulting", Amount: dec("118.00"), TaxIncluded: true},
	}

	b, err := CalculateForInvoice(items, dec("18.0"))
	require.NoError(t, err)

	assert.True(t, b.Net.Equal(dec("100.00")), "net = %s", b.Net)
	assert.True(t, b.Gross.Equal(dec("118.00")), "gross = %s", b.Gross)
}
