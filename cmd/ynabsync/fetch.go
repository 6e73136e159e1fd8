package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yurifrl/ynabsync/pkg/bankfeed"
	"github.com/yurifrl/ynabsync/pkg/config"
	"github.com/yurifrl/ynabsync/pkg/storage"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull booked transactions from Enable Banking into the pending prefix",
	Long: `Fetch every transaction booked since the checkpoint up to yesterday for
each configured bank, writing one export per day under the pending prefix.

Each bank needs an authorized session stored in the bucket; sessions are
created through the Enable Banking consent flow, which this command does not
run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfigWith(config.LoadFeed)
		if err != nil {
			return err
		}

		key, err := bankfeed.ParsePrivateKey(cfg.Feed.PrivateKey)
		if err != nil {
			return err
		}
		client := bankfeed.NewClient(cfg.Feed.APIURL, cfg.Feed.ApplicationID, key)
		return fetchAll(cmd.Context(), cfg, client, cmd.OutOrStdout())
	},
}

func fetchAll(ctx context.Context, cfg *config.Config, api bankfeed.API, out io.Writer) error {
	layout := storage.Layout{Pending: cfg.Storage.PendingPrefix, Imported: cfg.Storage.ImportedPrefix}
	fetcher := bankfeed.NewFetcher(cfg.Feed, layout, api, newStore(cfg), logger)

	logger.Info("starting fetch", "bucket", cfg.Storage.Bucket, "banks", len(cfg.Feed.ASPSPs))
	summary, err := fetcher.Run(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if summary.UpToDate {
		fmt.Fprintf(out, "Up to date (checkpoint %s)\n", summary.From)
		return nil
	}
	fmt.Fprintf(out, "Fetched %d transaction(s) from %s to %s into %d file(s)\n",
		summary.Transactions, summary.From, summary.To, len(summary.Files))
	for _, f := range summary.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
