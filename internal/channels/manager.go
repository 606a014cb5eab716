package channels

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

// latestMediaUserCap bounds latest-media results when a user context is
// present, since those are post-filtered rather than paged at the source.
const latestMediaUserCap = 10

// AggregateQuery shapes a cross-channel media query.
type AggregateQuery struct {
	ChannelIDs     []uuid.UUID
	ContentTypes   []string
	ExtraTypes     []string
	SortBy         string
	SortDescending bool
	Start          int
	Limit          int

	FavoritesOnly bool
	LikedOnly     bool
	PlayedOnly    bool
	UnplayedOnly  bool
}

// QueryResult is one page of catalog entities plus the pre-paging total.
type QueryResult struct {
	Items []catalog.Entity
	Total int
}

// Manager aggregates content across all registered channels, backed by the
// listing cache and the materializer.
type Manager struct {
	registry     *Registry
	cache        *ListingCache
	materializer *Materializer
	logger       catalog.Logger
}

func NewManager(registry *Registry, cache *ListingCache, materializer *Materializer, logger catalog.Logger) *Manager {
	return &Manager{
		registry:     registry,
		cache:        cache,
		materializer: materializer,
		logger:       logger,
	}
}

type selectedChannel struct {
	provider Provider
	id       uuid.UUID
}

// selectChannels narrows the registered channels to the ones a query should
// touch: capability, optional channel-ID filter, and user visibility.
func (m *Manager) selectChannels(ids []uuid.UUID, user UserContext, capable func(Provider) bool) []selectedChannel {
	var out []selectedChannel
	for _, p := range m.registry.ListChannels() {
		cid, err := InternalChannelID(p.Name())
		if err != nil {
			continue
		}
		if !capable(p) {
			continue
		}
		if len(ids) > 0 && !containsID(ids, cid) {
			continue
		}
		if user != nil && !user.CanSeeChannel(cid) {
			continue
		}
		out = append(out, selectedChannel{provider: p, id: cid})
	}
	return out
}

// collect fans one listing call out to every selected channel concurrently
// and materializes the merged entries. A failing channel contributes
// nothing; its error is logged.
func (m *Manager) collect(ctx context.Context, channels []selectedChannel, scope string, list func(selectedChannel) func(context.Context) (*Listing, error)) []catalog.Entity {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		collected []catalog.Entity
	)
	for _, ch := range channels {
		wg.Add(1)
		go func(ch selectedChannel) {
			defer wg.Done()
			key := CacheKey{Scope: scope, ChannelID: ch.id}
			listing, err := m.cache.Get(ctx, key, ch.provider.DataVersion(), list(ch))
			if err != nil {
				m.logger.Warn("channel listing failed", "channel", ch.provider.Name(), "scope", scope, "error", err)
				return
			}
			items := m.materializeEntries(ctx, listing.Entries, ch.provider, ch.id)
			mu.Lock()
			collected = append(collected, items...)
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return collected
}

// GetAllMedia returns one page of the merged media set of every capable,
// visible channel.
func (m *Manager) GetAllMedia(ctx context.Context, q AggregateQuery, user UserContext) (*QueryResult, error) {
	channels := m.selectChannels(q.ChannelIDs, user, func(p Provider) bool {
		_, ok := p.(AllMediaLister)
		return ok
	})
	collected := m.collect(ctx, channels, "all-media", func(ch selectedChannel) func(context.Context) (*Listing, error) {
		lister := ch.provider.(AllMediaLister)
		return func(ctx context.Context) (*Listing, error) {
			return lister.ListAllMedia(ctx, Query{ChannelID: ch.id})
		}
	})

	filtered := filterByTypes(collected, q)
	if user != nil {
		filtered = filterByUser(filtered, q, user)
	}
	sortItems(filtered, q.SortBy, q.SortDescending)
	page := pageOf(filtered, q.Start, q.Limit)
	m.refreshPage(ctx, page)

	return &QueryResult{Items: page, Total: len(filtered)}, nil
}

// GetLatestMedia returns the most recent media across channels. With a user
// context the results are post-filtered and capped instead of paged, so
// parental and preference filters cannot be bypassed via paging.
func (m *Manager) GetLatestMedia(ctx context.Context, q AggregateQuery, user UserContext) (*QueryResult, error) {
	channels := m.selectChannels(q.ChannelIDs, user, func(p Provider) bool {
		_, ok := p.(LatestMediaLister)
		return ok
	})
	collected := m.collect(ctx, channels, "latest-media", func(ch selectedChannel) func(context.Context) (*Listing, error) {
		lister := ch.provider.(LatestMediaLister)
		return func(ctx context.Context) (*Listing, error) {
			return lister.ListLatestMedia(ctx, Query{ChannelID: ch.id})
		}
	})

	filtered := filterByTypes(collected, q)
	if user != nil {
		filtered = filterByUser(filtered, q, user)
		sortItems(filtered, q.SortBy, q.SortDescending)
		if len(filtered) > latestMediaUserCap {
			filtered = filtered[:latestMediaUserCap]
		}
		m.refreshPage(ctx, filtered)
		return &QueryResult{Items: filtered, Total: len(filtered)}, nil
	}

	sortItems(filtered, q.SortBy, q.SortDescending)
	page := pageOf(filtered, q.Start, q.Limit)
	m.refreshPage(ctx, page)
	return &QueryResult{Items: page, Total: len(filtered)}, nil
}

// GetChannelItems returns one folder listing of a single channel. Unpaged
// queries go through the listing cache; paged ones hit the provider
// directly.
func (m *Manager) GetChannelItems(ctx context.Context, q Query, user UserContext) (*QueryResult, error) {
	provider := m.registry.ProviderByID(q.ChannelID)
	if provider == nil {
		return nil, fmt.Errorf("channel %s: %w", q.ChannelID, catalog.ErrNotFound)
	}
	if user != nil && !user.CanSeeChannel(q.ChannelID) {
		return nil, fmt.Errorf("channel %s: %w", q.ChannelID, catalog.ErrNotFound)
	}

	channel, err := m.registry.EnsureChannel(ctx, provider)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (*Listing, error) {
		return provider.ListItems(ctx, q)
	}
	var listing *Listing
	if q.Paged() {
		listing, err = fetch(ctx)
	} else {
		key := CacheKey{
			Scope:          "items",
			ChannelID:      q.ChannelID,
			FolderID:       q.FolderID,
			SortBy:         q.SortBy,
			SortDescending: q.SortDescending,
		}
		listing, err = m.cache.Get(ctx, key, provider.DataVersion(), fetch)
	}
	if err != nil {
		return nil, err
	}

	items := m.materializeEntries(ctx, listing.Entries, provider, q.ChannelID)

	parentID := channel.EntityID()
	if q.FolderID != "" {
		parentID = ItemID(q.FolderID, provider.Name())
	}
	if !q.Paged() {
		if err := m.registry.store.SaveChildren(ctx, parentID, entityIDs(items)); err != nil {
			m.logger.Warn("could not record channel folder children", "channel", provider.Name(), "error", err)
		}
	}

	total := listing.Total
	if total == 0 {
		total = len(items)
	}
	return &QueryResult{Items: items, Total: total}, nil
}

func (m *Manager) materializeEntries(ctx context.Context, entries []Entry, provider Provider, channelID uuid.UUID) []catalog.Entity {
	items := make([]catalog.Entity, 0, len(entries))
	for _, entry := range entries {
		item, err := m.materializer.Materialize(ctx, entry, provider, channelID)
		if err != nil {
			m.logger.Warn("could not materialize channel item", "channel", provider.Name(), "externalId", entry.ExternalID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// refreshPage triggers a best-effort metadata refresh for the items the
// caller is actually about to see.
func (m *Manager) refreshPage(ctx context.Context, items []catalog.Entity) {
	for _, item := range items {
		if err := m.materializer.RefreshIfNeeded(ctx, item); err != nil {
			m.logger.Warn("item refresh failed", "id", item.EntityID(), "error", err)
		}
	}
}

func filterByTypes(items []catalog.Entity, q AggregateQuery) []catalog.Entity {
	if len(q.ContentTypes) == 0 && len(q.ExtraTypes) == 0 {
		return items
	}
	out := make([]catalog.Entity, 0, len(items))
	for _, item := range items {
		ci := catalog.ChannelItemOf(item)
		if ci == nil {
			continue
		}
		if len(q.ContentTypes) > 0 && !containsString(q.ContentTypes, ci.ContentType) {
			continue
		}
		if len(q.ExtraTypes) > 0 && !containsString(q.ExtraTypes, ci.ExtraType) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func filterByUser(items []catalog.Entity, q AggregateQuery, user UserContext) []catalog.Entity {
	if !q.FavoritesOnly && !q.LikedOnly && !q.PlayedOnly && !q.UnplayedOnly {
		return items
	}
	out := make([]catalog.Entity, 0, len(items))
	for _, item := range items {
		id := item.EntityID()
		if q.FavoritesOnly && !user.IsFavorite(id) {
			continue
		}
		if q.LikedOnly && !user.Likes(id) {
			continue
		}
		if q.PlayedOnly && !user.HasPlayed(id) {
			continue
		}
		if q.UnplayedOnly && user.HasPlayed(id) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func sortItems(items []catalog.Entity, sortBy string, descending bool) {
	var less func(a, b *catalog.BaseEntity) bool
	switch strings.ToLower(sortBy) {
	case "premieredate":
		less = func(a, b *catalog.BaseEntity) bool {
			switch {
			case a.PremiereDate == nil:
				return false
			case b.PremiereDate == nil:
				return true
			default:
				return a.PremiereDate.Before(*b.PremiereDate)
			}
		}
	case "datecreated":
		less = func(a, b *catalog.BaseEntity) bool { return a.DateCreated.Before(b.DateCreated) }
	case "runtime":
		less = func(a, b *catalog.BaseEntity) bool { return a.RunTimeTicks < b.RunTimeTicks }
	case "communityrating":
		less = func(a, b *catalog.BaseEntity) bool { return a.CommunityRating < b.CommunityRating }
	default:
		less = func(a, b *catalog.BaseEntity) bool {
			return strings.ToLower(sortKeyName(a)) < strings.ToLower(sortKeyName(b))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			i, j = j, i
		}
		return less(items[i].Base(), items[j].Base())
	})
}

func sortKeyName(b *catalog.BaseEntity) string {
	if b.SortName != "" {
		return b.SortName
	}
	return b.Name
}

func pageOf(items []catalog.Entity, start, limit int) []catalog.Entity {
	if start >= len(items) {
		return nil
	}
	items = items[start:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func entityIDs(items []catalog.Entity) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.EntityID()
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
