package channels

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

// Registry holds the known channel providers and keeps one Channel entity
// per provider registered in the catalog.
type Registry struct {
	store     catalog.ItemStore
	clock     catalog.Clock
	logger    catalog.Logger
	cacheRoot string

	mu        sync.RWMutex
	providers []Provider
	factories []Factory
}

func NewRegistry(store catalog.ItemStore, cacheRoot string, clock catalog.Clock, logger catalog.Logger) *Registry {
	return &Registry{
		store:     store,
		clock:     clock,
		logger:    logger,
		cacheRoot: cacheRoot,
	}
}

func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

func (r *Registry) RegisterFactory(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// ListChannels returns the static providers merged with the providers every
// factory currently yields, sorted by name. A failing factory contributes
// nothing; its error is logged and the remaining sources are unaffected.
// Duplicate names are not collapsed.
func (r *Registry) ListChannels() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	out = append(out, r.providers...)
	for _, f := range r.factories {
		channels, err := f.Channels()
		if err != nil {
			r.logger.Warn("channel factory failed", "error", err)
			continue
		}
		out = append(out, channels...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ProviderByID returns the provider whose internal channel ID matches id,
// or nil when no current provider matches.
func (r *Registry) ProviderByID(id uuid.UUID) Provider {
	for _, p := range r.ListChannels() {
		pid, err := InternalChannelID(p.Name())
		if err != nil {
			continue
		}
		if pid == id {
			return p
		}
	}
	return nil
}

// InternalChannelID derives the stable catalog ID for a channel from its
// name alone, so the same channel maps to the same entity across restarts.
func InternalChannelID(name string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, errors.New("channel name is empty")
	}
	return catalog.DeriveID("Channel " + name), nil
}

// EnsureChannel creates or refreshes the catalog entity for a provider and
// persists it. Descriptive fields that the provider controls are rewritten
// on every call; DateCreated is only set at creation, preferring the
// modification time of the channel's cache directory when one exists.
func (r *Registry) EnsureChannel(ctx context.Context, p Provider) (*catalog.Channel, error) {
	id, err := InternalChannelID(p.Name())
	if err != nil {
		return nil, err
	}

	existing, err := r.store.RetrieveItem(ctx, id)
	if err != nil {
		return nil, err
	}

	var channel *catalog.Channel
	if c, ok := existing.(*catalog.Channel); ok {
		channel = c
	} else {
		channel = &catalog.Channel{}
		channel.SetEntityID(id)
		channel.IsFolder = true
		channel.DateCreated = r.channelCreationTime(id)
	}

	channel.Name = p.Name()
	channel.Description = p.Description()
	channel.Overview = p.Description()
	channel.HomePageURL = p.HomePageURL()
	channel.ParentalRating = p.ParentalRating()
	channel.OfficialRating = p.ParentalRating()
	channel.DataVersion = p.DataVersion()
	channel.DateModified = r.clock.Now()

	if err := r.store.SaveItem(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// channelCreationTime approximates when a channel first appeared, using the
// cache directory left behind by earlier runs before the entity existed.
func (r *Registry) channelCreationTime(id uuid.UUID) time.Time {
	dir := filepath.Join(r.cacheRoot, "channels", id.String())
	if info, err := os.Stat(dir); err == nil {
		return info.ModTime()
	}
	return r.clock.Now()
}

// RefreshAllChannels re-registers every known channel in the catalog. One
// failing channel is logged and skipped. The progress callback, when set,
// receives percentages and always finishes at 100.
func (r *Registry) RefreshAllChannels(ctx context.Context, progress func(float64)) error {
	channels := r.ListChannels()
	for i, p := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.EnsureChannel(ctx, p); err != nil {
			r.logger.Warn("channel refresh failed", "channel", p.Name(), "error", err)
		}
		if progress != nil {
			progress(float64(i+1) * 100 / float64(len(channels)))
		}
	}
	if progress != nil {
		progress(100)
	}
	return nil
}
