package bankfeed

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/ynabsync/pkg/config"
	"github.com/yurifrl/ynabsync/pkg/models"
	"github.com/yurifrl/ynabsync/pkg/parser"
	"github.com/yurifrl/ynabsync/pkg/storage"
)

const debitIndicator = "DBIT"

var (
	// ErrNoCheckpoint is returned when the bucket holds no checkpoint date.
	ErrNoCheckpoint = errors.New("no fetch checkpoint")
	// ErrNoSession is returned when a bank has no stored session. Sessions
	// are created through the interactive consent flow, outside this tool.
	ErrNoSession = errors.New("no stored bank session")
	// ErrSessionExpired is returned when the stored session is rejected.
	ErrSessionExpired = errors.New("bank session expired")
)

// API is the part of the Enable Banking API the fetch uses.
type API interface {
	SessionValid(ctx context.Context, sessionID string) (bool, error)
	Transactions(ctx context.Context, accountUID, from, to string) ([]Transaction, error)
}

// Row is one exported line, in the columns the sync parser reads.
type Row struct {
	BookingDate string
	TotalAmount string
	Remittance  string
}

// FetchSummary reports one fetch run. Files holds masked keys.
type FetchSummary struct {
	From         string
	To           string
	UpToDate     bool
	Transactions int
	Files        []string
}

// Fetcher moves the checkpoint forward to yesterday, writing every booked
// transaction in between under the pending prefix.
type Fetcher struct {
	cfg    config.FeedConfig
	layout storage.Layout
	api    API
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewFetcher(cfg config.FeedConfig, layout storage.Layout, api API, store storage.Store, logger *log.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		layout: layout,
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run fetches from the checkpoint date up to yesterday. The checkpoint is
// only advanced once every bank and account was written.
func (f *Fetcher) Run(ctx context.Context) (*FetchSummary, error) {
	from, err := f.readCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	to := f.now().AddDate(0, 0, -1).Format(models.DateLayout)
	summary := &FetchSummary{From: from, To: to}

	if from >= to {
		f.logger.Info("checkpoint is up to date, nothing to fetch", "checkpoint", from)
		summary.UpToDate = true
		return summary, nil
	}
	f.logger.Info("fetching transactions", "from", from, "to", to)

	for _, aspsp := range f.cfg.ASPSPs {
		logger := f.logger.With("bank", aspsp.Name)
		session, err := f.loadSession(ctx, aspsp)
		if err != nil {
			return nil, err
		}

		for _, acc := range session.Accounts {
			if acc.UID == "" {
				return nil, fmt.Errorf("%s: session account without uid", aspsp.Name)
			}
			iban := acc.AccountID.IBAN
			if iban == "" {
				logger.Warn("skipping account without iban", "uid", acc.UID)
				continue
			}

			txs, err := f.api.Transactions(ctx, acc.UID, from, to)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to fetch transactions for %s: %w", aspsp.Name, config.Mask(iban), err)
			}
			if len(txs) == 0 {
				logger.Info("no transactions found", "account", config.Mask(iban))
				continue
			}

			keys, err := f.writeDays(ctx, iban, Rows(txs))
			if err != nil {
				return nil, err
			}
			summary.Transactions += len(txs)
			summary.Files = append(summary.Files, keys...)
		}
	}

	if err := f.store.Put(ctx, f.cfg.CheckpointKey, []byte(to)); err != nil {
		return nil, fmt.Errorf("failed to update checkpoint: %w", err)
	}
	f.logger.Info("checkpoint updated", "checkpoint", to)
	return summary, nil
}

func (f *Fetcher) readCheckpoint(ctx context.Context) (string, error) {
	data, err := f.store.Get(ctx, f.cfg.CheckpointKey)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w at %s", ErrNoCheckpoint, f.cfg.CheckpointKey)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checkpoint: %w", err)
	}

	checkpoint := strings.TrimSpace(string(data))
	if _, err := time.Parse(models.DateLayout, checkpoint); err != nil {
		return "", fmt.Errorf("invalid checkpoint %q: %w", checkpoint, err)
	}
	f.logger.Info("checkpoint found", "checkpoint", checkpoint)
	return checkpoint, nil
}

// SessionKey is where the session of a bank is stored.
func SessionKey(prefix string, aspsp config.ASPSP) string {
	slug := strings.ReplaceAll(strings.ToLower(aspsp.Name), " ", "_")
	return path.Join(prefix, slug, "session_store.json")
}

func (f *Fetcher) loadSession(ctx context.Context, aspsp config.ASPSP) (*Session, error) {
	key := SessionKey(f.cfg.SessionPrefix, aspsp)
	data, err := f.store.Get(ctx, key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w at %s", aspsp.Name, ErrNoSession, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read session: %w", aspsp.Name, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%s: failed to parse session: %w", aspsp.Name, err)
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("%s: %w: stored session has no id", aspsp.Name, ErrNoSession)
	}

	valid, err := f.api.SessionValid(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to check session: %w", aspsp.Name, err)
	}
	if !valid {
		return nil, fmt.Errorf("%s: %w", aspsp.Name, ErrSessionExpired)
	}
	return &session, nil
}

// writeDays writes one export per booking date and returns the masked keys.
func (f *Fetcher) writeDays(ctx context.Context, iban string, rows []Row) ([]string, error) {
	byDate := make(map[string][]Row)
	for _, r := range rows {
		byDate[r.BookingDate] = append(byDate[r.BookingDate], r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var keys []string
	for _, date := range dates {
		key := f.layout.PendingPrefix(iban) + fmt.Sprintf("transactions_%s_%s.csv", iban, date)
		masked := config.MaskKey(key, iban)
		if err := f.store.Put(ctx, key, Export(byDate[date])); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", masked, err)
		}
		f.logger.Info("saved transactions", "date", date, "count", len(byDate[date]), "key", masked)
		keys = append(keys, masked)
	}
	return keys, nil
}

// Rows maps API transactions to export rows. Debits get a leading minus.
func Rows(txs []Transaction) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		amount := tx.TransactionAmount.Amount
		if tx.CreditDebitIndicator == debitIndicator {
			amount = "-" + amount
		}
		rows = append(rows, Row{
			BookingDate: tx.BookingDate,
			TotalAmount: amount,
			Remittance:  CleanRemittance(tx.RemittanceInformation),
		})
	}
	return rows
}

// Export renders rows as a CSV export the sync can import.
func Export(rows []Row) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writes to a bytes.Buffer cannot fail.
	_ = w.Write([]string{parser.ColumnBookingDate, parser.ColumnTotalAmount, parser.ColumnRemittance})
	for _, r := range rows {
		_ = w.Write([]string{r.BookingDate, r.TotalAmount, r.Remittance})
	}
	w.Flush()
	return buf.Bytes()
}
