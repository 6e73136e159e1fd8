package importer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/ynabsync/pkg/ledger"
	"github.com/yurifrl/ynabsync/pkg/models"
)

// Importer hands normalized transactions to the ledger. Deduplication is left
// to the ledger: every record is submitted with its import id and the ledger
// ignores the ones it has seen before.
type Importer struct {
	session ledger.Session
	logger  *log.Logger
}

// New returns a new Importer instance.
func New(session ledger.Session, logger *log.Logger) *Importer {
	return &Importer{session: session, logger: logger}
}

// Submit imports records into accountID. An empty batch is skipped without
// calling the ledger and yields a nil summary.
func (i *Importer) Submit(accountID string, records []*models.Transaction) (*ledger.ImportSummary, error) {
	if len(records) == 0 {
		i.logger.Info("no records in csv, nothing to import")
		return nil, nil
	}

	i.logger.Info("importing transactions", "count", len(records))
	summary, err := i.session.Import(accountID, records)
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	i.logger.Info("import successful", "created", summary.Created, "duplicates", summary.Duplicates)
	return summary, nil
}
