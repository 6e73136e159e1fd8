package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Account is a ledger account as recorded in a snapshot.
type Account struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Closed  bool   `yaml:"closed,omitempty"`
	Deleted bool   `yaml:"deleted,omitempty"`
}

// Snapshot is the local copy of one budget's accounts.
type Snapshot struct {
	BudgetID        string    `yaml:"budget_id"`
	ServerKnowledge uint64    `yaml:"server_knowledge"`
	DownloadedAt    time.Time `yaml:"downloaded_at"`
	Accounts        []Account `yaml:"accounts"`
}

// SnapshotPath returns where the snapshot of budgetID lives under cacheDir.
func SnapshotPath(cacheDir, budgetID string) string {
	return filepath.Join(cacheDir, filepath.Base(budgetID)+".yaml")
}

// WriteSnapshot replaces the cached snapshot for s.BudgetID.
func WriteSnapshot(cacheDir string, s *Snapshot) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := SnapshotPath(cacheDir, s.BudgetID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a previously downloaded snapshot.
func ReadSnapshot(cacheDir, budgetID string) (*Snapshot, error) {
	data, err := os.ReadFile(SnapshotPath(cacheDir, budgetID))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &s, nil
}

// FindAccount returns the first non-deleted account named exactly name.
func FindAccount(accounts []Account, name string) (Account, bool) {
	for _, a := range accounts {
		if a.Deleted {
			continue
		}
		if a.Name == name {
			return a, true
		}
	}
	return Account{}, false
}
