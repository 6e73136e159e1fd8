package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"-0.5", -50},
		{"10", 1000},
		{"45.67", 4567},
		{"1.005", 101},
		{"-1.005", -101},
		{"-0.125", -13},
		{"0.125", 13},
		{"0", 0},
		{"-1234.56", -123456},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinorUnits(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnitsInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "12,34", "NaN"} {
		_, err := ToMinorUnits(in)
		assert.ErrorIs(t, err, ErrInvalidTransaction, "input %q", in)
	}
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction("2024-01-01", "45.67", "Grocery Store")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", tx.Date())
	assert.Equal(t, int64(4567), tx.Amount())
	assert.Equal(t, int64(45670), tx.AmountMilliunits())
	assert.Equal(t, "Grocery Store", tx.Payee())
	assert.Equal(t, "2024-01-01-45.67-Grocery Store", tx.ImportID())
	assert.Equal(t, "45.67", tx.AmountDecimal().StringFixed(2))
	require.NotNil(t, tx.PayeePointer())
	assert.Equal(t, "Grocery Store", *tx.PayeePointer())
}

func TestNewTransactionKeepsRawAmountInImportID(t *testing.T) {
	a, err := NewTransaction("2024-01-01", "10", "Rent")
	require.NoError(t, err)
	b, err := NewTransaction("2024-01-01", "10.00", "Rent")
	require.NoError(t, err)

	assert.Equal(t, a.Amount(), b.Amount())
	assert.NotEqual(t, a.ImportID(), b.ImportID())
}

func TestImportIDDeterministic(t *testing.T) {
	base := ImportID("2024-01-01", "45.67", "Grocery Store")
	assert.Equal(t, base, ImportID("2024-01-01", "45.67", "Grocery Store"))

	assert.NotEqual(t, base, ImportID("2024-01-02", "45.67", "Grocery Store"))
	assert.NotEqual(t, base, ImportID("2024-01-01", "45.68", "Grocery Store"))
	assert.NotEqual(t, base, ImportID("2024-01-01", "45.67", "Grocery Shop"))
}

func TestNewTransactionInvalid(t *testing.T) {
	tests := []struct {
		name, date, amount string
	}{
		{"empty date", "", "1.00"},
		{"bad date", "01/02/2024", "1.00"},
		{"empty amount", "2024-01-01", ""},
		{"bad amount", "2024-01-01", "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction(tt.date, tt.amount, "Payee")
			assert.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
}

func TestPayeePointerEmpty(t *testing.T) {
	tx, err := NewTransaction("2024-01-01", "-3.10", "")
	require.NoError(t, err)
	assert.Nil(t, tx.PayeePointer())
	assert.Equal(t, int64(-310), tx.Amount())
}
