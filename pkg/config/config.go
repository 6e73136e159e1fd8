package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingConfig is returned when a required setting is absent.
var ErrMissingConfig = errors.New("missing required configuration")

// Descriptor maps one bank account export to a ledger account.
type Descriptor struct {
	Identifier    string `json:"identifier" mapstructure:"identifier" yaml:"identifier"`
	RemoteSyncKey string `json:"remoteSyncKey" mapstructure:"remoteSyncKey" yaml:"remoteSyncKey"`
	AccountName   string `json:"accountName" mapstructure:"accountName" yaml:"accountName"`
}

// Masked returns the identifier in a form that is safe to log.
func (d Descriptor) Masked() string {
	return Mask(d.Identifier)
}

type LedgerConfig struct {
	Server string
	Token  string
}

type StorageConfig struct {
	AccountID      string
	KeyID          string
	SecretKey      string
	Bucket         string
	Endpoint       string
	Region         string
	PendingPrefix  string
	ImportedPrefix string
	PathStyle      bool
}

// EndpointURL returns the configured endpoint or the R2 endpoint derived
// from the account id.
func (s StorageConfig) EndpointURL() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
}

type MetricsConfig struct {
	Pushgateway string
}

// ASPSP names a bank as known to Enable Banking.
type ASPSP struct {
	Name    string `json:"name" mapstructure:"name" yaml:"name"`
	Country string `json:"country" mapstructure:"country" yaml:"country"`
}

// FeedConfig configures the Enable Banking fetch that produces the exports.
type FeedConfig struct {
	APIURL        string
	ApplicationID string
	// PrivateKey is the base64 encoded PEM key the API tokens are signed with.
	PrivateKey    string
	ASPSPs        []ASPSP
	CheckpointKey string
	SessionPrefix string
}

// Config is loaded once at startup and passed explicitly to every component.
type Config struct {
	Ledger   LedgerConfig
	Storage  StorageConfig
	Imports  []Descriptor
	CacheDir string
	LogLevel string
	Metrics  MetricsConfig
	Feed     FeedConfig
	DryRun   bool
	Strict   bool
}

var envBindings = map[string]string{
	"ledger.server":           "LEDGER_SERVER_URL",
	"ledger.token":            "LEDGER_ACCESS_TOKEN",
	"storage.account_id":      "CLOUDFLARE_ACCOUNT_ID",
	"storage.key_id":          "CLOUDFLARE_R2_KEY_ID",
	"storage.secret_key":      "CLOUDFLARE_R2_SECRET_KEY",
	"storage.bucket":          "STORAGE_BUCKET",
	"storage.endpoint":        "STORAGE_ENDPOINT",
	"storage.region":          "STORAGE_REGION",
	"storage.pending_prefix":  "STORAGE_PENDING_PREFIX",
	"storage.imported_prefix": "STORAGE_IMPORTED_PREFIX",
	"storage.path_style":      "STORAGE_PATH_STYLE",
	"imports":                 "LEDGER_IMPORT_CONFIG",
	"cache_dir":               "LEDGER_CACHE_DIR",
	"log_level":               "LOG_LEVEL",
	"metrics.pushgateway":     "PUSHGATEWAY_URL",
	"feed.api_url":            "ENABLE_BANKING_API_URL",
	"feed.application_id":     "ENABLE_BANKING_APPLICATION_ID",
	"feed.private_key":        "ENABLE_BANKING_PRIVATE_KEY_BASE64",
	"feed.aspsps":             "ENABLE_BANKING_ASPSP",
	"feed.checkpoint_key":     "ENABLE_BANKING_CHECKPOINT_KEY",
	"feed.session_prefix":     "ENABLE_BANKING_SESSION_PREFIX",
}

// Bind registers defaults and environment variable names on v.
func Bind(v *viper.Viper) {
	v.SetDefault("storage.bucket", "ledger-sync")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.pending_prefix", "transactions")
	v.SetDefault("storage.imported_prefix", "transactions_imported")
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("log_level", "info")
	v.SetDefault("feed.api_url", "https://api.enablebanking.com")
	v.SetDefault("feed.checkpoint_key", "enable-banking/checkpoint.txt")
	v.SetDefault("feed.session_prefix", "enable-banking")

	for key, env := range envBindings {
		// BindEnv only errors when called without a key.
		_ = v.BindEnv(key, env)
	}
}

// Load builds a Config from v and validates it for a sync run.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Build(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFeed builds a Config from v and validates it for a fetch run.
func LoadFeed(v *viper.Viper) (*Config, error) {
	cfg, err := Build(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFeed(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Build reads every setting from v without validating.
func Build(v *viper.Viper) (*Config, error) {
	imports, err := decodeList[Descriptor](v, "imports")
	if err != nil {
		return nil, err
	}
	aspsps, err := decodeList[ASPSP](v, "feed.aspsps")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Ledger: LedgerConfig{
			Server: v.GetString("ledger.server"),
			Token:  v.GetString("ledger.token"),
		},
		Storage: StorageConfig{
			AccountID:      v.GetString("storage.account_id"),
			KeyID:          v.GetString("storage.key_id"),
			SecretKey:      v.GetString("storage.secret_key"),
			Bucket:         v.GetString("storage.bucket"),
			Endpoint:       v.GetString("storage.endpoint"),
			Region:         v.GetString("storage.region"),
			PendingPrefix:  strings.Trim(v.GetString("storage.pending_prefix"), "/"),
			ImportedPrefix: strings.Trim(v.GetString("storage.imported_prefix"), "/"),
			PathStyle:      v.GetBool("storage.path_style"),
		},
		Imports:  imports,
		CacheDir: v.GetString("cache_dir"),
		LogLevel: v.GetString("log_level"),
		Metrics: MetricsConfig{
			Pushgateway: v.GetString("metrics.pushgateway"),
		},
		Feed: FeedConfig{
			APIURL:        strings.TrimSuffix(v.GetString("feed.api_url"), "/"),
			ApplicationID: v.GetString("feed.application_id"),
			PrivateKey:    v.GetString("feed.private_key"),
			ASPSPs:        aspsps,
			CheckpointKey: v.GetString("feed.checkpoint_key"),
			SessionPrefix: strings.Trim(v.GetString("feed.session_prefix"), "/"),
		},
		DryRun: v.GetBool("dry_run"),
		Strict: v.GetBool("strict"),
	}
	return cfg, nil
}

// Validate reports every missing required value in one error.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name, value string
	}{
		{envBindings["ledger.server"], c.Ledger.Server},
		{envBindings["ledger.token"], c.Ledger.Token},
		{envBindings["storage.account_id"], c.Storage.AccountID},
		{envBindings["storage.key_id"], c.Storage.KeyID},
		{envBindings["storage.secret_key"], c.Storage.SecretKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if len(c.Imports) == 0 {
		return fmt.Errorf("%w: no import descriptors found in %s", ErrMissingConfig, envBindings["imports"])
	}
	for i, d := range c.Imports {
		if d.Identifier == "" || d.RemoteSyncKey == "" || d.AccountName == "" {
			return fmt.Errorf("%w: import descriptor %d needs identifier, remoteSyncKey and accountName", ErrMissingConfig, i)
		}
	}
	return nil
}

// ValidateFeed checks what a fetch run needs: storage credentials, API
// credentials and at least one bank.
func (c *Config) ValidateFeed() error {
	var missing []string
	required := []struct {
		name, value string
	}{
		{envBindings["storage.account_id"], c.Storage.AccountID},
		{envBindings["storage.key_id"], c.Storage.KeyID},
		{envBindings["storage.secret_key"], c.Storage.SecretKey},
		{envBindings["feed.application_id"], c.Feed.ApplicationID},
		{envBindings["feed.private_key"], c.Feed.PrivateKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if len(c.Feed.ASPSPs) == 0 {
		return fmt.Errorf("%w: no banks found in %s", ErrMissingConfig, envBindings["feed.aspsps"])
	}
	for i, a := range c.Feed.ASPSPs {
		if a.Name == "" || a.Country == "" {
			return fmt.Errorf("%w: bank %d needs name and country", ErrMissingConfig, i)
		}
	}
	return nil
}

// decodeList reads key either as a JSON string (from the environment) or as
// a native list (from a YAML config file).
func decodeList[T any](v *viper.Viper, key string) ([]T, error) {
	raw := v.Get(key)
	if raw == nil {
		return nil, nil
	}

	if s, ok := raw.(string); ok {
		return parseJSONList[T](s, envBindings[key])
	}

	var out []T
	if err := v.UnmarshalKey(key, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return out, nil
}

// ParseDescriptors decodes the JSON descriptor list. One surrounding layer of
// single or double quotes is stripped first, as shells and CI secret stores
// tend to leave them in place.
func ParseDescriptors(s string) ([]Descriptor, error) {
	return parseJSONList[Descriptor](s, envBindings["imports"])
}

func parseJSONList[T any](s, name string) ([]T, error) {
	s = unquote(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}

	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return out, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
