package main

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/yurifrl/ynabsync/pkg/config"
	"github.com/yurifrl/ynabsync/pkg/ledger"
)

var cachedAccounts bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		printer := pp.New()
		printer.SetOutput(cmd.OutOrStdout())
		printer.SetColoringEnabled(false)
		printer.Println(cfg.Redacted())
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the ledger accounts of every configured budget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cachedAccounts {
			for _, d := range cfg.Imports {
				snap, err := ledger.ReadSnapshot(cfg.CacheDir, d.RemoteSyncKey)
				if err != nil {
					logger.Error("no cached budget", "account", d.Masked(), "err", err)
					continue
				}
				printAccounts(cmd.OutOrStdout(), d, snap.Accounts)
			}
			return nil
		}

		session, err := openSession(cfg.Ledger.Server, cfg.Ledger.Token, cfg.CacheDir, logger)
		if err != nil {
			return fmt.Errorf("failed to open ledger session: %w", err)
		}
		defer closeSession(session)

		for _, d := range cfg.Imports {
			if err := session.Download(d.RemoteSyncKey); err != nil {
				logger.Error("failed to download budget", "account", d.Masked(), "err", err)
				continue
			}
			accounts, err := session.Accounts()
			if err != nil {
				logger.Error("failed to list accounts", "account", d.Masked(), "err", err)
				continue
			}
			printAccounts(cmd.OutOrStdout(), d, accounts)
		}
		return nil
	},
}

// printAccounts lists accounts, marking the one d resolves to with "*".
func printAccounts(w io.Writer, d config.Descriptor, accounts []ledger.Account) {
	match, found := ledger.FindAccount(accounts, d.AccountName)
	fmt.Fprintf(w, "%s -> %q\n", d.Masked(), d.AccountName)
	if !found {
		fmt.Fprintln(w, "  (account not found)")
	}
	for _, a := range accounts {
		marker := " "
		if found && a.ID == match.ID {
			marker = "*"
		}
		state := ""
		switch {
		case a.Deleted:
			state = " (deleted)"
		case a.Closed:
			state = " (closed)"
		}
		fmt.Fprintf(w, "  %s %s  %s%s\n", marker, a.ID, a.Name, state)
	}
}
