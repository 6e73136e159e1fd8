package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the booking date format accepted by the ledger.
const DateLayout = "2006-01-02"

// ErrInvalidTransaction wraps every validation failure of NewTransaction.
var ErrInvalidTransaction = errors.New("invalid transaction")

var hundred = decimal.NewFromInt(100)

// Transaction is a bank row normalized for import into the ledger.
type Transaction struct {
	date     string
	amount   int64
	payee    string
	importID string
}

// NewTransaction validates a raw bank row and normalizes it. rawAmount is the
// decimal text from the export; it is kept verbatim in the import ID so the ID
// stays stable if the scaling ever changes.
func NewTransaction(date, rawAmount, payee string) (*Transaction, error) {
	if date == "" {
		return nil, fmt.Errorf("%w: empty booking date", ErrInvalidTransaction)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: booking date %q: %v", ErrInvalidTransaction, date, err)
	}

	cents, err := ToMinorUnits(rawAmount)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		date:     date,
		amount:   cents,
		payee:    payee,
		importID: ImportID(date, rawAmount, payee),
	}, nil
}

// ToMinorUnits scales a decimal amount string by 100 and rounds to the
// nearest integer, halves away from zero.
func ToMinorUnits(rawAmount string) (int64, error) {
	if rawAmount == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidTransaction)
	}
	d, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", ErrInvalidTransaction, rawAmount, err)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// ImportID is the dedup key the ledger uses to recognise a re-submitted row.
func ImportID(date, rawAmount, payee string) string {
	return date + "-" + rawAmount + "-" + payee
}

func (t *Transaction) Date() string     { return t.date }
func (t *Transaction) Amount() int64    { return t.amount }
func (t *Transaction) Payee() string    { return t.payee }
func (t *Transaction) ImportID() string { return t.importID }

// AmountMilliunits converts the amount to the ledger's milliunits.
func (t *Transaction) AmountMilliunits() int64 {
	return t.amount * 10
}

// AmountDecimal returns the amount in major units, for display.
func (t *Transaction) AmountDecimal() decimal.Decimal {
	return decimal.New(t.amount, -2)
}

// PayeePointer returns nil for an empty payee so the ledger leaves it unset.
func (t *Transaction) PayeePointer() *string {
	if t.payee == "" {
		return nil
	}
	p := t.payee
	return &p
}
