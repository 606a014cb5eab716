package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
	"mediad/internal/channels"
	"mediad/internal/schedule"
	"mediad/internal/storage"
)

const quotaResetInterval = 24 * time.Hour

// OrchestratorOptions tunes an Orchestrator. The zero value uses the default
// HTTP client and no host limit.
type OrchestratorOptions struct {
	HTTPClient *http.Client

	// DailyHostLimit caps successful downloads per remote host per day when
	// the owning channel does not declare its own limit. Zero means
	// unlimited.
	DailyHostLimit int
}

// Orchestrator downloads the media content of channel items into storage.
// It tries an item's sources in order, skipping ones the ledger rejected,
// and enforces per-host daily download quotas.
type Orchestrator struct {
	store    catalog.ItemStore
	registry *channels.Registry
	media    storage.Storage
	ledger   *SourceLedger
	client   *http.Client
	clock    catalog.Clock
	logger   catalog.Logger

	hostLimit int

	mu         sync.Mutex
	hostCounts map[string]int
	reset      *schedule.Repeater
}

func NewOrchestrator(store catalog.ItemStore, registry *channels.Registry, media storage.Storage, ledger *SourceLedger, clock catalog.Clock, logger catalog.Logger, opts OrchestratorOptions) *Orchestrator {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	o := &Orchestrator{
		store:      store,
		registry:   registry,
		media:      media,
		ledger:     ledger,
		client:     client,
		clock:      clock,
		logger:     logger,
		hostLimit:  opts.DailyHostLimit,
		hostCounts: make(map[string]int),
	}
	o.reset = schedule.NewRepeater(quotaResetInterval, o.resetQuotas)
	return o
}

// Close stops the quota reset timer.
func (o *Orchestrator) Close() {
	o.reset.Stop()
}

func (o *Orchestrator) resetQuotas() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hostCounts = make(map[string]int)
}

// Download fetches the content of one channel item into storage and returns
// the storage key. Sources are tried in order; a source that serves an error
// page is recorded in the ledger and the next one is tried. The item's
// stored path is updated on success.
func (o *Orchestrator) Download(ctx context.Context, itemID uuid.UUID) (string, error) {
	item, err := o.store.RetrieveItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", fmt.Errorf("item %s: %w", itemID, catalog.ErrNotFound)
	}
	kind := catalog.MediaKind(item)
	if kind == "" {
		return "", fmt.Errorf("item %s is not downloadable media", itemID)
	}

	provider, sources, err := o.resolveSources(ctx, item)
	if err != nil {
		return "", err
	}
	if provider != nil && !provider.Features().SupportsContentDownloading {
		return "", fmt.Errorf("channel %s does not support content downloading", provider.Name())
	}

	limit := o.hostLimit
	if provider != nil && provider.Features().DailyDownloadLimit > 0 {
		limit = provider.Features().DailyDownloadLimit
	}

	tried := false
	for _, source := range sources {
		parsed, err := url.Parse(source.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		if !o.ledger.IsValid(ctx, source.URL) {
			continue
		}
		tried = true

		// The quota must hold before any network traffic for the host.
		if err := o.checkQuota(parsed.Hostname(), limit); err != nil {
			return "", err
		}

		key, err := o.fetchSource(ctx, item, kind, source.URL, parsed)
		if err != nil {
			if isBadSource(err) {
				o.logger.Warn("marking bad media source", "url", source.URL, "error", err)
				if lerr := o.ledger.MarkBad(ctx, source.URL); lerr != nil {
					o.logger.Warn("could not persist bad source", "url", source.URL, "error", lerr)
				}
				continue
			}
			return "", err
		}

		o.recordDownload(parsed.Hostname())
		item.Base().Path = key
		item.Base().DateModified = o.clock.Now()
		if err := o.store.SaveItem(ctx, item); err != nil {
			return "", fmt.Errorf("downloaded but could not update item %s: %w", itemID, err)
		}
		return key, nil
	}

	if tried {
		return "", fmt.Errorf("item %s has no working media source: %w", itemID, catalog.ErrSourceRejected)
	}
	return "", fmt.Errorf("item %s has no usable media source: %w", itemID, catalog.ErrSourceRejected)
}

// resolveSources returns the item's owning provider (nil when it is no
// longer registered) and its media sources, preferring live resolution over
// the stored snapshot.
func (o *Orchestrator) resolveSources(ctx context.Context, item catalog.Entity) (channels.Provider, []catalog.MediaSource, error) {
	ci := catalog.ChannelItemOf(item)
	if ci == nil {
		return nil, nil, fmt.Errorf("item %s is not a channel item", item.EntityID())
	}

	provider := o.registry.ProviderByID(ci.ChannelID)
	if resolver, ok := provider.(channels.MediaResolver); ok {
		sources, err := resolver.ResolveMediaSources(ctx, ci.ExternalID)
		if err != nil {
			return provider, nil, fmt.Errorf("could not resolve media sources: %w", err)
		}
		return provider, sources, nil
	}
	return provider, ci.MediaSources, nil
}

type badSourceError struct {
	reason string
}

func (e *badSourceError) Error() string { return e.reason }

func isBadSource(err error) bool {
	var bad *badSourceError
	return errors.As(err, &bad)
}

// fetchSource downloads one source URL into storage. A 404 or an HTML
// response means the source itself is bad; any other payload kind mismatch
// aborts the download.
func (o *Orchestrator) fetchSource(ctx context.Context, item catalog.Entity, kind, rawURL string, parsed *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("could not build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &badSourceError{reason: "source returned 404"}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "text/html") {
		return "", &badSourceError{reason: "source served an error page"}
	}

	key := storageKey(item.EntityID(), kind, parsed)
	if !strings.HasPrefix(contentType, kind+"/") {
		// A partial payload may already exist from an earlier attempt.
		if derr := o.media.Delete(ctx, key); derr != nil {
			o.logger.Warn("could not remove stale download", "key", key, "error", derr)
		}
		return "", fmt.Errorf("source served %q for a %s item: %w", contentType, kind, catalog.ErrContentMismatch)
	}

	if err := o.media.Put(ctx, key, resp.Body, resp.ContentLength); err != nil {
		return "", fmt.Errorf("could not store download: %w", err)
	}
	return key, nil
}

func (o *Orchestrator) checkQuota(host string, limit int) error {
	if limit <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hostCounts[host] >= limit {
		return fmt.Errorf("host %s reached its daily download limit of %d: %w", host, limit, catalog.ErrQuotaExceeded)
	}
	return nil
}

func (o *Orchestrator) recordDownload(host string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hostCounts[host]++
}

// storageKey places downloads under a per-kind prefix, keeping the source's
// file extension when it has one.
func storageKey(id uuid.UUID, kind string, parsed *url.URL) string {
	ext := path.Ext(parsed.Path)
	if ext == "" {
		if kind == "audio" {
			ext = ".mp3"
		} else {
			ext = ".mp4"
		}
	}
	return path.Join("downloads", kind, id.String()+ext)
}
