package csv

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"
)

type Record interface {
	Date() string
	Payee() string
	AmountDecimal() decimal.Decimal
	ImportID() string
}

// Create renders records the way they will be submitted to the ledger.
func Create[T Record](records []T) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writes to a bytes.Buffer cannot fail.
	_ = w.Write([]string{"Date", "Payee", "Amount", "ImportID"})
	for _, r := range records {
		_ = w.Write([]string{
			r.Date(),
			r.Payee(),
			r.AmountDecimal().StringFixed(2),
			r.ImportID(),
		})
	}
	w.Flush()
	return buf.Bytes()
}
