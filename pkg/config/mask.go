package config

import "strings"

// Mask hides all but the last four characters of a sensitive identifier.
// Identifiers shorter than four characters are returned unchanged.
func Mask(identifier string) string {
	r := []rune(identifier)
	if len(r) < 4 {
		return identifier
	}
	return "ending in " + string(r[len(r)-4:])
}

// MaskKey replaces every occurrence of identifier in key with its masked form.
func MaskKey(key, identifier string) string {
	if identifier == "" {
		return key
	}
	return strings.ReplaceAll(key, identifier, Mask(identifier))
}

const redacted = "[redacted]"

// Redacted returns a copy of c that is safe to print: secrets are replaced
// and descriptor identifiers masked.
func (c Config) Redacted() Config {
	out := c
	if out.Ledger.Token != "" {
		out.Ledger.Token = redacted
	}
	if out.Storage.KeyID != "" {
		out.Storage.KeyID = redacted
	}
	if out.Storage.SecretKey != "" {
		out.Storage.SecretKey = redacted
	}
	if out.Feed.PrivateKey != "" {
		out.Feed.PrivateKey = redacted
	}
	out.Imports = make([]Descriptor, len(c.Imports))
	for i, d := range c.Imports {
		d.Identifier = d.Masked()
		out.Imports[i] = d
	}
	return out
}
