// Package download fetches channel media content into local storage,
// enforcing per-host daily quotas and remembering sources that served
// garbage.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mediad/internal/catalog"
)

const (
	ledgerReadWait  = 2 * time.Second
	ledgerWriteWait = 5 * time.Second
)

// SourceLedger records source URLs that turned out to be bad, one per line
// in a text file, so they are never tried again across restarts. Lookups
// and updates wait a bounded time for the lock: a lookup that cannot get it
// treats the source as valid, an update that cannot get it skips persisting.
// Download availability beats ledger completeness.
type SourceLedger struct {
	path   string
	logger catalog.Logger

	lock     *semaphore.Weighted
	loadOnce sync.Once
	bad      map[string]struct{}
}

func NewSourceLedger(path string, logger catalog.Logger) *SourceLedger {
	return &SourceLedger{
		path:   path,
		logger: logger,
		lock:   semaphore.NewWeighted(1),
		bad:    make(map[string]struct{}),
	}
}

// load reads the ledger file once, lazily. A missing file is an empty
// ledger. Matching is case-insensitive.
func (l *SourceLedger) load() {
	l.loadOnce.Do(func() {
		data, err := os.ReadFile(l.path)
		if err != nil {
			if !os.IsNotExist(err) {
				l.logger.Warn("could not read source ledger", "path", l.path, "error", err)
			}
			return
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			l.bad[strings.ToLower(line)] = struct{}{}
		}
	})
}

// IsValid reports whether the source URL is still considered usable.
func (l *SourceLedger) IsValid(ctx context.Context, url string) bool {
	waitCtx, cancel := context.WithTimeout(ctx, ledgerReadWait)
	defer cancel()
	if err := l.lock.Acquire(waitCtx, 1); err != nil {
		l.logger.Warn("source ledger lookup timed out, treating source as valid", "url", url)
		return true
	}
	defer l.lock.Release(1)

	l.load()
	_, known := l.bad[strings.ToLower(url)]
	return !known
}

// MarkBad records a source URL as bad and appends it to the ledger file.
func (l *SourceLedger) MarkBad(ctx context.Context, url string) error {
	waitCtx, cancel := context.WithTimeout(ctx, ledgerWriteWait)
	defer cancel()
	if err := l.lock.Acquire(waitCtx, 1); err != nil {
		l.logger.Warn("source ledger update timed out, not persisting", "url", url)
		return nil
	}
	defer l.lock.Release(1)

	l.load()
	key := strings.ToLower(url)
	if _, known := l.bad[key]; known {
		return nil
	}
	l.bad[key] = struct{}{}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("could not create ledger directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open source ledger: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(url + "\n"); err != nil {
		return fmt.Errorf("could not append to source ledger: %w", err)
	}
	return nil
}
