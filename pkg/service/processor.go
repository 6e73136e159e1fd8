package service

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/yurifrl/ynabsync/pkg/config"
	"github.com/yurifrl/ynabsync/pkg/csv"
	"github.com/yurifrl/ynabsync/pkg/importer"
	"github.com/yurifrl/ynabsync/pkg/ledger"
	"github.com/yurifrl/ynabsync/pkg/models"
	"github.com/yurifrl/ynabsync/pkg/parser"
	"github.com/yurifrl/ynabsync/pkg/report"
	"github.com/yurifrl/ynabsync/pkg/storage"
)

// Processor runs one sync pass over every configured descriptor, strictly
// in order. It never closes the session; the caller owns it.
type Processor struct {
	config   *config.Config
	logger   *log.Logger
	session  ledger.Session
	store    storage.Store
	layout   storage.Layout
	parser   *parser.Parser
	importer *importer.Importer
	runID    string
	preview  io.Writer
}

type Option func(*Processor)

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(p *Processor) { p.runID = id }
}

// WithPreview sets where dry runs print the records they would submit.
func WithPreview(w io.Writer) Option {
	return func(p *Processor) { p.preview = w }
}

func NewProcessor(cfg *config.Config, logger *log.Logger, session ledger.Session, store storage.Store, opts ...Option) *Processor {
	p := &Processor{
		config:  cfg,
		logger:  logger,
		session: session,
		store:   store,
		layout: storage.Layout{
			Pending:  cfg.Storage.PendingPrefix,
			Imported: cfg.Storage.ImportedPrefix,
		},
		runID:   uuid.NewString(),
		preview: io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.With("run_id", p.runID)
	p.parser = parser.New(p.logger)
	p.importer = importer.New(session, p.logger)
	return p
}

func (p *Processor) RunID() string {
	return p.runID
}

// Run processes every descriptor and collects one result per descriptor.
// Failures are recorded and never stop the run.
func (p *Processor) Run(ctx context.Context) *report.Summary {
	summary := &report.Summary{RunID: p.runID, DryRun: p.config.DryRun}
	for _, d := range p.config.Imports {
		summary.Add(p.processDescriptor(ctx, d))
	}
	return summary
}

func (p *Processor) processDescriptor(ctx context.Context, d config.Descriptor) report.Result {
	logger := p.logger.With("account", d.Masked())
	result := report.Result{Descriptor: d.Masked(), AccountName: d.AccountName}
	logger.Info("processing")

	logger.Info("downloading budget", "sync_key", d.RemoteSyncKey)
	if err := p.session.Download(d.RemoteSyncKey); err != nil {
		logger.Error("failed to download budget", "err", err)
		return result.Fail(err)
	}

	accounts, err := p.session.Accounts()
	if err != nil {
		logger.Error("failed to list accounts", "err", err)
		return result.Fail(err)
	}
	account, ok := ledger.FindAccount(accounts, d.AccountName)
	if !ok {
		logger.Warn("account not found, skipping", "account_name", d.AccountName)
		return result.Skip("account not found")
	}
	logger.Info("found account", "account_name", account.Name, "account_id", account.ID)

	prefix := p.layout.PendingPrefix(d.Identifier)
	logger.Info("checking for files", "prefix", config.MaskKey(prefix, d.Identifier))
	keys, err := p.store.List(ctx, prefix)
	if err != nil {
		logger.Error("failed to list files", "err", err)
		return result.Fail(err)
	}

	files := storage.FilterCSV(keys)
	if len(files) == 0 {
		logger.Info("no transaction files found")
		return result.Skip("no transaction files found")
	}

	for _, key := range files {
		fr, err := p.processFile(ctx, logger, d, account, key)
		result.Files = append(result.Files, fr)
		if err != nil {
			logger.Error("failed to process file", "key", fr.Key, "err", err)
			return result.Fail(err)
		}
	}

	if p.config.DryRun {
		return result.Skip("dry run")
	}
	result.Status = report.Imported
	return result
}

// processFile reads, submits and archives one export. The file is archived
// only once the ledger accepted the batch.
func (p *Processor) processFile(ctx context.Context, logger *log.Logger, d config.Descriptor, account ledger.Account, key string) (report.FileResult, error) {
	maskedKey := config.MaskKey(key, d.Identifier)
	fr := report.FileResult{Key: maskedKey}
	logger.Info("processing file", "key", maskedKey)

	content, err := p.store.Get(ctx, key)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", maskedKey, err)
	}

	records, err := p.parser.ProcessBytes(content, maskedKey)
	if err != nil {
		return fr, err
	}
	fr.Records = len(records)

	if p.config.DryRun {
		p.printPreview(maskedKey, account, records)
		return fr, nil
	}

	summary, err := p.importer.Submit(account.ID, records)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", maskedKey, err)
	}
	if summary != nil {
		fr.Created = summary.Created
		fr.Duplicates = summary.Duplicates
	}

	target := p.layout.ImportedKey(d.Identifier, key)
	logger.Info("moving file", "to", config.MaskKey(target, d.Identifier))
	if err := storage.Archive(ctx, p.store, key, content, target); err != nil {
		return fr, err
	}
	fr.Archived = true
	return fr, nil
}

func (p *Processor) printPreview(maskedKey string, account ledger.Account, records []*models.Transaction) {
	fmt.Fprintf(p.preview, "# %s -> %s (%d record(s))\n", maskedKey, account.Name, len(records))
	if _, err := p.preview.Write(csv.Create(records)); err != nil {
		p.logger.Warn("failed to write preview", "err", err)
	}
}
