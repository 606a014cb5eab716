package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
	"mediad/internal/schedule"
)

// itemIdentitySalt versions the item ID derivation. Bumping it re-keys every
// channel item, so it only changes when the identity scheme itself does.
const itemIdentitySalt = "1"

const refreshSetResetInterval = 3 * time.Hour

// ItemID derives the stable catalog ID of a channel item from its external
// ID and owning channel name. The same remote item always maps to the same
// entity; the same external ID under two channels maps to two entities.
func ItemID(externalID, channelName string) uuid.UUID {
	return catalog.DeriveID(externalID + channelName + itemIdentitySalt)
}

// Refresher performs a full metadata refresh of one catalog item, typically
// against external metadata providers.
type Refresher interface {
	Refresh(ctx context.Context, item catalog.Entity) error
}

// NopRefresher is a Refresher that does nothing.
type NopRefresher struct{}

func (NopRefresher) Refresh(context.Context, catalog.Entity) error { return nil }

// Materializer turns listing entries into catalog entities, persisting new
// ones and updating known ones in memory.
type Materializer struct {
	store     catalog.ItemStore
	refresher Refresher
	clock     catalog.Clock
	logger    catalog.Logger

	mu        sync.Mutex
	refreshed map[uuid.UUID]struct{}
	reset     *schedule.Repeater
}

func NewMaterializer(store catalog.ItemStore, refresher Refresher, clock catalog.Clock, logger catalog.Logger) *Materializer {
	m := &Materializer{
		store:     store,
		refresher: refresher,
		clock:     clock,
		logger:    logger,
		refreshed: make(map[uuid.UUID]struct{}),
	}
	m.reset = schedule.NewRepeater(refreshSetResetInterval, m.clearRefreshed)
	return m
}

// Close stops the refresh-set reset timer.
func (m *Materializer) Close() {
	m.reset.Stop()
}

func (m *Materializer) clearRefreshed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = make(map[uuid.UUID]struct{})
}

// Materialize maps one listing entry to its catalog entity. A new entity,
// or one whose stored data version differs from the provider's current one,
// gets its descriptive fields populated from the entry; a known current
// entity keeps them, since later local edits must survive re-listing.
// Volatile fields are rewritten unconditionally. Only new entities are
// persisted here; updates to known entities stay in memory.
func (m *Materializer) Materialize(ctx context.Context, entry Entry, provider Provider, channelID uuid.UUID) (catalog.Entity, error) {
	if entry.ExternalID == "" {
		return nil, fmt.Errorf("listing entry %q has no external id", entry.Name)
	}
	id := ItemID(entry.ExternalID, provider.Name())

	existing, err := m.store.RetrieveItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not look up channel item: %w", err)
	}

	item := existing
	isNew := item == nil || catalog.ChannelItemOf(item) == nil
	if isNew {
		item = newItemForKind(entry.Kind)
		item.SetEntityID(id)
		item.Base().IsFolder = entry.Kind == KindFolder
		if entry.DateCreated != nil {
			item.Base().DateCreated = *entry.DateCreated
		} else {
			item.Base().DateCreated = m.clock.Now()
		}
	}

	base := item.Base()
	if isNew || base.DataVersion != provider.DataVersion() {
		base.Name = entry.Name
		base.SortName = entry.Name
		base.Overview = entry.Overview
		base.Genres = entry.Genres
		base.Tags = entry.Tags
		base.Studios = entry.Studios
		base.ProviderIDs = entry.ProviderIDs
		base.PremiereDate = entry.PremiereDate
		base.ProductionYear = entry.ProductionYear
		base.CommunityRating = entry.CommunityRating
		base.DataVersion = provider.DataVersion()
	}

	base.RunTimeTicks = entry.RunTimeTicks
	base.ImageURL = entry.ImageURL
	base.DateModified = m.clock.Now()

	ci := catalog.ChannelItemOf(item)
	ci.ExternalID = entry.ExternalID
	ci.ChannelID = channelID
	ci.ContentType = entry.ContentType
	ci.ExtraType = entry.ExtraType
	ci.MediaSources = entry.MediaSources

	if isNew {
		if err := m.store.SaveItem(ctx, item); err != nil {
			return nil, fmt.Errorf("could not persist channel item: %w", err)
		}
	}
	return item, nil
}

// RefreshIfNeeded runs a full metadata refresh for the item unless one has
// already run for it since the last reset interval.
func (m *Materializer) RefreshIfNeeded(ctx context.Context, item catalog.Entity) error {
	id := item.EntityID()
	m.mu.Lock()
	if _, done := m.refreshed[id]; done {
		m.mu.Unlock()
		return nil
	}
	m.refreshed[id] = struct{}{}
	m.mu.Unlock()

	return m.refresher.Refresh(ctx, item)
}

func newItemForKind(kind ItemKind) catalog.Entity {
	switch kind {
	case KindFolder:
		return &catalog.ChannelFolderItem{}
	case KindAudio:
		return &catalog.ChannelAudioItem{}
	default:
		return &catalog.ChannelVideoItem{}
	}
}
