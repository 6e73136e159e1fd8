package config

import (
	"strings"
	"testing"
)

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NL12ABCD1234567890", "ending in 7890"},
		{"1234", "ending in 1234"},
		{"abc", "abc"},
		{"", ""},
		{"Åbc", "Åbc"},
		{"xÅbcd", "ending in Åbcd"},
		{"ÅÅÅÅÅ", "ending in ÅÅÅÅ"},
	}

	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskRevealsOnlyLastFour(t *testing.T) {
	id := "DE89370400440532013000"
	masked := Mask(id)

	if !strings.HasSuffix(masked, id[len(id)-4:]) {
		t.Fatalf("masked %q does not end with last four characters", masked)
	}
	if strings.Contains(masked, id[:len(id)-4]) {
		t.Errorf("masked %q leaks the identifier prefix", masked)
	}
}

func TestMaskKey(t *testing.T) {
	key := "transactions/NL12ABCD1234567890/2024-01-01.csv"
	want := "transactions/ending in 7890/2024-01-01.csv"

	if got := MaskKey(key, "NL12ABCD1234567890"); got != want {
		t.Errorf("MaskKey() = %q, want %q", got, want)
	}
	if got := MaskKey(key, ""); got != key {
		t.Errorf("MaskKey() with empty identifier = %q, want %q", got, key)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Ledger:  LedgerConfig{Server: "http://ledger", Token: "tok"},
		Storage: StorageConfig{AccountID: "acct", KeyID: "kid", SecretKey: "secret"},
		Imports: []Descriptor{{Identifier: "NL12ABCD1234567890", RemoteSyncKey: "sync1", AccountName: "Checking"}},
	}

	got := cfg.Redacted()

	if got.Ledger.Token != redacted || got.Storage.KeyID != redacted || got.Storage.SecretKey != redacted {
		t.Errorf("secrets not redacted: %+v", got)
	}
	if got.Imports[0].Identifier != "ending in 7890" {
		t.Errorf("identifier = %q", got.Imports[0].Identifier)
	}
	if cfg.Imports[0].Identifier != "NL12ABCD1234567890" {
		t.Error("Redacted modified the original descriptors")
	}
	if got.Ledger.Server != "http://ledger" || got.Storage.AccountID != "acct" {
		t.Errorf("non-secret values changed: %+v", got)
	}
}
