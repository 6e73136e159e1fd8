package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrArchiveIncomplete means the archived copy was written but the source
// could not be removed, so the file now exists under both prefixes.
var ErrArchiveIncomplete = errors.New("archive incomplete")

const csvExt = ".csv"

// Layout describes where pending and imported exports live.
type Layout struct {
	Pending  string
	Imported string
}

// PendingPrefix is the listing prefix for one identifier's pending exports.
func (l Layout) PendingPrefix(identifier string) string {
	return path.Join(l.Pending, identifier) + "/"
}

// ImportedKey is where an archived export of identifier is written.
func (l Layout) ImportedKey(identifier, key string) string {
	return path.Join(l.Imported, identifier, path.Base(key))
}

// FilterCSV keeps the keys with a .csv extension, in order.
func FilterCSV(keys []string) []string {
	var out []string
	for _, k := range keys {
		if strings.HasSuffix(strings.ToLower(k), csvExt) {
			out = append(out, k)
		}
	}
	return out
}

// Archive moves an already-read object: it writes content to targetKey and
// then deletes sourceKey. The two calls are not atomic.
func Archive(ctx context.Context, store Store, sourceKey string, content []byte, targetKey string) error {
	if err := store.Put(ctx, targetKey, content); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path.Base(sourceKey), err)
	}
	if err := store.Delete(ctx, sourceKey); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchiveIncomplete, path.Base(sourceKey), err)
	}
	return nil
}
