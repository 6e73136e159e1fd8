package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yurifrl/ynabsync/pkg/models"
)

// Columns of the bank export.
const (
	ColumnBookingDate = "booking_date"
	ColumnTotalAmount = "total_amount"
	ColumnRemittance  = "remittance_information"
)

// ErrMissingColumn is returned when a row lacks one of the export columns.
var ErrMissingColumn = errors.New("missing column")

// Row maps a header column name to the row's value.
type Row map[string]string

type Parser struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Parser {
	return &Parser{
		logger: logger,
	}
}

// ProcessBytes parses a CSV export and normalizes every row.
func (p *Parser) ProcessBytes(data []byte, filename string) ([]*models.Transaction, error) {
	rows, err := ParseRows(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	p.logger.Debug("parsed csv", "file", filename, "rows", len(rows))

	txs, err := Transform(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s: %w", filename, err)
	}
	return txs, nil
}

// ParseRows reads comma-delimited data whose first record is the header.
// Blank lines are skipped; a header-only or empty input yields no rows.
func ParseRows(data []byte) ([]Row, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Transform maps each row to a transaction. The first invalid row fails the
// whole batch.
func Transform(rows []Row) ([]*models.Transaction, error) {
	txs := make([]*models.Transaction, 0, len(rows))
	for i, row := range rows {
		tx, err := transformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func transformRow(row Row) (*models.Transaction, error) {
	values := make([]string, 0, 3)
	for _, col := range []string{ColumnBookingDate, ColumnTotalAmount, ColumnRemittance} {
		v, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
		values = append(values, v)
	}
	return models.NewTransaction(values[0], values[1], values[2])
}
