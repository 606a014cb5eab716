package channels

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"mediad/internal/catalog"
	"mediad/internal/testutil"
)

type managerFixture struct {
	manager *Manager
	store   *testutil.MemoryItemStore
	clock   *testutil.FixedClock
}

func newTestManager(t *testing.T, providers ...Provider) *managerFixture {
	t.Helper()
	store := testutil.NewMemoryItemStore(catalog.NewDefaultRegistry())
	clock := testutil.NewFixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	logger := catalog.NewNopLogger()

	registry := NewRegistry(store, t.TempDir(), clock, logger)
	for _, p := range providers {
		registry.RegisterProvider(p)
	}
	cache := NewListingCache(t.TempDir(), DefaultCacheTTL, semaphore.NewWeighted(1), clock, logger)
	materializer := NewMaterializer(store, NopRefresher{}, clock, logger)
	t.Cleanup(materializer.Close)

	return &managerFixture{
		manager: NewManager(registry, cache, materializer, logger),
		store:   store,
		clock:   clock,
	}
}

func TestGetAllMediaMergesChannels(t *testing.T) {
	trailers := &fakeProvider{name: "Trailers", dataVersion: "v1", all: []Entry{
		entry("t1", "Alpha", KindVideo),
		entry("t2", "Gamma", KindVideo),
	}}
	podcasts := &fakeProvider{name: "Podcasts", dataVersion: "v1", all: []Entry{
		entry("p1", "Beta", KindAudio),
	}}
	f := newTestManager(t, trailers, podcasts)

	result, err := f.manager.GetAllMedia(context.Background(), AggregateQuery{}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)

	names := make([]string, len(result.Items))
	for i, item := range result.Items {
		names[i] = item.Base().Name
	}
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, names, "default sort is by name across channels")
}

func TestGetAllMediaChannelErrorIsolated(t *testing.T) {
	broken := &fakeProvider{name: "Broken", dataVersion: "v1", err: errors.New("remote down")}
	working := &fakeProvider{name: "Working", dataVersion: "v1", all: []Entry{
		entry("w1", "Alpha", KindVideo),
	}}
	f := newTestManager(t, broken, working)

	result, err := f.manager.GetAllMedia(context.Background(), AggregateQuery{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "Alpha", result.Items[0].Base().Name)
}

func TestGetAllMediaPagingAndTotal(t *testing.T) {
	var entries []Entry
	for i := range 7 {
		entries = append(entries, entry(fmt.Sprintf("t%d", i), fmt.Sprintf("Item %d", i), KindVideo))
	}
	f := newTestManager(t, &fakeProvider{name: "Trailers", dataVersion: "v1", all: entries})

	result, err := f.manager.GetAllMedia(context.Background(), AggregateQuery{Start: 2, Limit: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Total, "total reflects the full filtered set")
	require.Len(t, result.Items, 3)
	assert.Equal(t, "Item 2", result.Items[0].Base().Name)
}

func TestGetAllMediaContentTypeFilter(t *testing.T) {
	movie := entry("t1", "Movie", KindVideo)
	movie.ContentType = "Movie"
	clip := entry("t2", "Clip", KindVideo)
	clip.ContentType = "Clip"
	f := newTestManager(t, &fakeProvider{name: "Trailers", dataVersion: "v1", all: []Entry{movie, clip}})

	result, err := f.manager.GetAllMedia(context.Background(), AggregateQuery{ContentTypes: []string{"Movie"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "Movie", result.Items[0].Base().Name)
}

func TestGetAllMediaUsesCache(t *testing.T) {
	p := &fakeProvider{name: "Trailers", dataVersion: "v1", all: []Entry{entry("t1", "Alpha", KindVideo)}}
	f := newTestManager(t, p)

	_, err := f.manager.GetAllMedia(context.Background(), AggregateQuery{}, nil)
	require.NoError(t, err)
	_, err = f.manager.GetAllMedia(context.Background(), AggregateQuery{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls(&p.allCalls))
}

func TestGetLatestMediaUserCap(t *testing.T) {
	var entries []Entry
	for i := range 15 {
		entries = append(entries, entry(fmt.Sprintf("t%d", i), fmt.Sprintf("Item %02d", i), KindVideo))
	}
	f := newTestManager(t, &fakeProvider{name: "Trailers", dataVersion: "v1", latest: entries})
	user := &fakeUser{id: uuid.New()}

	result, err := f.manager.GetLatestMedia(context.Background(), AggregateQuery{Limit: 100}, user)
	require.NoError(t, err)
	assert.Len(t, result.Items, latestMediaUserCap, "user queries are capped, not paged")
}

func TestGetLatestMediaUserChannelVisibility(t *testing.T) {
	visible := &fakeProvider{name: "Visible", dataVersion: "v1", latest: []Entry{entry("v1", "Shown", KindVideo)}}
	hidden := &fakeProvider{name: "Hidden", dataVersion: "v1", latest: []Entry{entry("h1", "Blocked", KindVideo)}}
	f := newTestManager(t, visible, hidden)

	hiddenID, err := InternalChannelID("Hidden")
	require.NoError(t, err)
	user := &fakeUser{id: uuid.New(), hidden: map[uuid.UUID]bool{hiddenID: true}}

	result, err := f.manager.GetLatestMedia(context.Background(), AggregateQuery{}, user)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Shown", result.Items[0].Base().Name)
}

func TestGetLatestMediaFavoritesFilter(t *testing.T) {
	p := &fakeProvider{name: "Trailers", dataVersion: "v1", latest: []Entry{
		entry("t1", "Loved", KindVideo),
		entry("t2", "Ignored", KindVideo),
	}}
	f := newTestManager(t, p)
	user := &fakeUser{
		id:        uuid.New(),
		favorites: map[uuid.UUID]bool{ItemID("t1", "Trailers"): true},
	}

	result, err := f.manager.GetLatestMedia(context.Background(), AggregateQuery{FavoritesOnly: true}, user)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Loved", result.Items[0].Base().Name)
}

func TestGetChannelItemsCachesUnpaged(t *testing.T) {
	p := &fakeProvider{name: "Trailers", dataVersion: "v1", items: []Entry{
		entry("t1", "Alpha", KindVideo),
		entry("t2", "Beta", KindVideo),
	}}
	f := newTestManager(t, p)
	channelID, err := InternalChannelID("Trailers")
	require.NoError(t, err)

	q := Query{ChannelID: channelID}
	result, err := f.manager.GetChannelItems(context.Background(), q, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)

	_, err = f.manager.GetChannelItems(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls(&p.listCalls), "unpaged listings are served from cache")

	children, err := f.store.GetChildrenItems(context.Background(), channelID)
	require.NoError(t, err)
	assert.Len(t, children, 2, "listing records channel adjacency")

	channel, err := f.store.RetrieveItem(context.Background(), channelID)
	require.NoError(t, err)
	assert.IsType(t, &catalog.Channel{}, channel, "listing registers the channel entity")
}

func TestGetChannelItemsPagedBypassesCache(t *testing.T) {
	p := &fakeProvider{name: "Trailers", dataVersion: "v1", items: []Entry{entry("t1", "Alpha", KindVideo)}}
	f := newTestManager(t, p)
	channelID, err := InternalChannelID("Trailers")
	require.NoError(t, err)

	q := Query{ChannelID: channelID, Start: 0, Limit: 5}
	_, err = f.manager.GetChannelItems(context.Background(), q, nil)
	require.NoError(t, err)
	_, err = f.manager.GetChannelItems(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls(&p.listCalls), "paged listings always hit the provider")
}

func TestGetChannelItemsUnknownChannel(t *testing.T) {
	f := newTestManager(t)
	_, err := f.manager.GetChannelItems(context.Background(), Query{ChannelID: uuid.New()}, nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetChannelItemsHiddenChannel(t *testing.T) {
	p := &fakeProvider{name: "Trailers", dataVersion: "v1"}
	f := newTestManager(t, p)
	channelID, err := InternalChannelID("Trailers")
	require.NoError(t, err)

	user := &fakeUser{id: uuid.New(), hidden: map[uuid.UUID]bool{channelID: true}}
	_, err = f.manager.GetChannelItems(context.Background(), Query{ChannelID: channelID}, user)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSortItems(t *testing.T) {
	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a := &catalog.ChannelVideoItem{}
	a.Name = "Beta"
	a.PremiereDate = &newer
	b := &catalog.ChannelVideoItem{}
	b.Name = "Alpha"
	b.PremiereDate = &older
	c := &catalog.ChannelVideoItem{}
	c.Name = "Gamma"

	items := []catalog.Entity{a, b, c}

	sortItems(items, "premieredate", false)
	assert.Equal(t, "Alpha", items[0].Base().Name)
	assert.Equal(t, "Gamma", items[2].Base().Name, "missing premiere dates sort last")

	sortItems(items, "", true)
	assert.Equal(t, "Gamma", items[0].Base().Name)
	assert.Equal(t, "Alpha", items[2].Base().Name)
}
