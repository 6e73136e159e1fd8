package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptorsJSON = `[{"identifier":"NL12ABCD1234567890","remoteSyncKey":"sync1","accountName":"Checking"}]`

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_SERVER_URL", "https://api.ynab.com/v1")
	t.Setenv("LEDGER_ACCESS_TOKEN", "token")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")
	t.Setenv("CLOUDFLARE_R2_KEY_ID", "key")
	t.Setenv("CLOUDFLARE_R2_SECRET_KEY", "secret")
	t.Setenv("LEDGER_IMPORT_CONFIG", descriptorsJSON)
}

func newViper() *viper.Viper {
	v := viper.New()
	Bind(v)
	return v
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "https://api.ynab.com/v1", cfg.Ledger.Server)
	assert.Equal(t, "token", cfg.Ledger.Token)
	assert.Equal(t, "ledger-sync", cfg.Storage.Bucket)
	assert.Equal(t, "transactions", cfg.Storage.PendingPrefix)
	assert.Equal(t, "transactions_imported", cfg.Storage.ImportedPrefix)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.Storage.EndpointURL())
	assert.Equal(t, "cache", cfg.CacheDir)
	require.Len(t, cfg.Imports, 1)
	assert.Equal(t, Descriptor{Identifier: "NL12ABCD1234567890", RemoteSyncKey: "sync1", AccountName: "Checking"}, cfg.Imports[0])
}

func TestLoadMissingValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LEDGER_ACCESS_TOKEN", "")
	t.Setenv("CLOUDFLARE_R2_SECRET_KEY", "")

	_, err := Load(newViper())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "LEDGER_ACCESS_TOKEN")
	assert.Contains(t, err.Error(), "CLOUDFLARE_R2_SECRET_KEY")
}

func TestLoadEmptyDescriptorList(t *testing.T) {
	for _, value := range []string{"", "[]", "'[]'"} {
		t.Run(value, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("LEDGER_IMPORT_CONFIG", value)

			_, err := Load(newViper())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingConfig)
		})
	}
}

func TestLoadIncompleteDescriptor(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LEDGER_IMPORT_CONFIG", `[{"identifier":"NL12ABCD1234567890","accountName":"Checking"}]`)

	_, err := Load(newViper())
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestParseDescriptorsStripsQuotes(t *testing.T) {
	for _, in := range []string{descriptorsJSON, "'" + descriptorsJSON + "'", `"` + descriptorsJSON + `"`} {
		got, err := ParseDescriptors(in)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "sync1", got[0].RemoteSyncKey)
	}
}

func TestParseDescriptorsInvalidJSON(t *testing.T) {
	_, err := ParseDescriptors(`[{"identifier":`)
	assert.Error(t, err)
}

func TestLoadImportsFromYAMLFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LEDGER_IMPORT_CONFIG", "")
	os.Unsetenv("LEDGER_IMPORT_CONFIG")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `imports:
  - identifier: DE89370400440532013000
    remoteSyncKey: budget-2
    accountName: Savings
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Len(t, cfg.Imports, 1)
	assert.Equal(t, "Savings", cfg.Imports[0].AccountName)
	assert.Equal(t, "budget-2", cfg.Imports[0].RemoteSyncKey)
}

func setFeedEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")
	t.Setenv("CLOUDFLARE_R2_KEY_ID", "key")
	t.Setenv("CLOUDFLARE_R2_SECRET_KEY", "secret")
	t.Setenv("ENABLE_BANKING_APPLICATION_ID", "app-1")
	t.Setenv("ENABLE_BANKING_PRIVATE_KEY_BASE64", "a2V5")
	t.Setenv("ENABLE_BANKING_ASPSP", `'[{"name":"ING","country":"NL"}]'`)
}

func TestLoadFeed(t *testing.T) {
	setFeedEnv(t)

	cfg, err := LoadFeed(newViper())
	require.NoError(t, err)

	assert.Equal(t, "https://api.enablebanking.com", cfg.Feed.APIURL)
	assert.Equal(t, "app-1", cfg.Feed.ApplicationID)
	assert.Equal(t, "enable-banking/checkpoint.txt", cfg.Feed.CheckpointKey)
	assert.Equal(t, "enable-banking", cfg.Feed.SessionPrefix)
	assert.Equal(t, []ASPSP{{Name: "ING", Country: "NL"}}, cfg.Feed.ASPSPs)
	assert.Empty(t, cfg.Imports)
}

func TestLoadFeedMissingValues(t *testing.T) {
	setFeedEnv(t)
	t.Setenv("ENABLE_BANKING_PRIVATE_KEY_BASE64", "")

	_, err := LoadFeed(newViper())
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.ErrorContains(t, err, "ENABLE_BANKING_PRIVATE_KEY_BASE64")
}

func TestLoadFeedNoBanks(t *testing.T) {
	setFeedEnv(t)
	t.Setenv("ENABLE_BANKING_ASPSP", "[]")

	_, err := LoadFeed(newViper())
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestLoadDoesNotNeedFeed(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Empty(t, cfg.Feed.ASPSPs)
}
