package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"

	"github.com/yurifrl/ynabsync/pkg/models"
)

var (
	// ErrNoSnapshot is returned when accounts or imports are requested
	// before any budget was downloaded.
	ErrNoSnapshot = errors.New("no budget downloaded")
	// ErrSessionClosed is returned by every call after Close.
	ErrSessionClosed = errors.New("ledger session closed")
)

// YNAB rejects import ids longer than this.
const maxImportIDLength = 36

// ImportSummary reports what the ledger did with one submitted batch.
type ImportSummary struct {
	Submitted  int
	Created    int
	Duplicates int
}

// Session is one run's connection to the ledger.
type Session interface {
	Download(syncKey string) error
	Accounts() ([]Account, error)
	Import(accountID string, records []*models.Transaction) (*ImportSummary, error)
	Close() error
}

type accountLister interface {
	GetAccounts(budgetID string) ([]Account, uint64, error)
}

type transactionCreator interface {
	CreateTransactions(budgetID string, payloads []transaction.PayloadTransaction) (*ImportSummary, error)
}

// YNABSession keeps the current budget snapshot in memory and mirrors it
// into the cache directory.
type YNABSession struct {
	logger   *log.Logger
	cacheDir string
	accounts accountLister
	txs      transactionCreator
	current  *Snapshot
	restore  func()
	closed   bool
	now      func() time.Time
}

var _ Session = (*YNABSession)(nil)

// Open prepares the cache directory and authenticates against the ledger.
// A non-default endpoint is installed on http.DefaultClient until Close, so
// only one session per process is supported.
func Open(endpoint, token, cacheDir string, logger *log.Logger) (*YNABSession, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	restore, err := useEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	client := New(token)
	if err := client.Verify(); err != nil {
		restore()
		return nil, fmt.Errorf("failed to authenticate with ledger: %w", err)
	}

	s := newSession(client.Account(), client.Transaction(), cacheDir, logger)
	s.restore = restore
	logger.Debug("ledger session opened", "endpoint", endpoint, "cache_dir", cacheDir)
	return s, nil
}

func newSession(accounts accountLister, txs transactionCreator, cacheDir string, logger *log.Logger) *YNABSession {
	return &YNABSession{
		logger:   logger,
		cacheDir: cacheDir,
		accounts: accounts,
		txs:      txs,
		restore:  func() {},
		now:      time.Now,
	}
}

// Download fetches the budget identified by syncKey and makes it current,
// replacing any previous snapshot.
func (s *YNABSession) Download(syncKey string) error {
	if s.closed {
		return ErrSessionClosed
	}

	accounts, knowledge, err := s.accounts.GetAccounts(syncKey)
	if err != nil {
		return fmt.Errorf("failed to download budget: %w", err)
	}

	snap := &Snapshot{
		BudgetID:        syncKey,
		ServerKnowledge: knowledge,
		DownloadedAt:    s.now().UTC(),
		Accounts:        accounts,
	}
	if err := WriteSnapshot(s.cacheDir, snap); err != nil {
		return err
	}
	s.current = snap
	s.logger.Debug("budget downloaded", "accounts", len(accounts), "server_knowledge", knowledge)
	return nil
}

// Accounts returns the accounts of the current snapshot.
func (s *YNABSession) Accounts() ([]Account, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.current == nil {
		return nil, ErrNoSnapshot
	}
	return s.current.Accounts, nil
}

// Import submits records to accountID in the current budget. Records the
// budget already knows, by import id, are reported as duplicates.
func (s *YNABSession) Import(accountID string, records []*models.Transaction) (*ImportSummary, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.current == nil {
		return nil, ErrNoSnapshot
	}

	payloads, err := Payloads(accountID, records)
	if err != nil {
		return nil, err
	}

	summary, err := s.txs.CreateTransactions(s.current.BudgetID, payloads)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactions: %w", err)
	}
	return summary, nil
}

// Close ends the session. It must be called exactly once.
func (s *YNABSession) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.current = nil
	s.restore()
	s.logger.Debug("ledger session closed")
	return nil
}

// Payloads converts records into YNAB API payloads.
func Payloads(accountID string, records []*models.Transaction) ([]transaction.PayloadTransaction, error) {
	out := make([]transaction.PayloadTransaction, 0, len(records))
	for _, r := range records {
		date, err := api.DateFromString(r.Date())
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", r.Date(), err)
		}
		importID := LedgerImportID(r.ImportID())
		out = append(out, transaction.PayloadTransaction{
			AccountID: accountID,
			Date:      date,
			Amount:    r.AmountMilliunits(),
			Cleared:   transaction.ClearingStatusCleared,
			PayeeName: r.PayeePointer(),
			ImportID:  &importID,
		})
	}
	return out, nil
}

// LedgerImportID fits an import id into YNAB's length limit. Short ids pass
// through; longer ones are replaced by a digest of the full id.
func LedgerImportID(id string) string {
	if len(id) <= maxImportIDLength {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "YS:" + hex.EncodeToString(sum[:16])
}
