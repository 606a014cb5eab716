package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediad/internal/catalog"
	"mediad/internal/config"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewStoresFromConfig(context.Background(), config.DatabaseConfig{Type: "memory"}, catalog.NewDefaultRegistry(), catalog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func newVideoItem(key string) *catalog.ChannelVideoItem {
	item := &catalog.ChannelVideoItem{}
	item.SetEntityID(catalog.DeriveID(key))
	item.Name = key
	item.ExternalID = key
	item.MediaSources = []catalog.MediaSource{{URL: "https://example.com/" + key + ".mp4"}}
	return item
}

// badEntity fails to serialize, for atomicity tests.
type badEntity struct{ catalog.BaseEntity }

func (*badEntity) TypeTag() string              { return "Bad" }
func (*badEntity) MarshalJSON() ([]byte, error) { return nil, errors.New("unserializable") }

func TestItemRepository_RoundTrip(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	item := newVideoItem("movie-1")
	item.Genres = []string{"Action", "Drama"}
	item.DataVersion = "v1"

	require.NoError(t, stores.Items.SaveItem(ctx, item))

	got, err := stores.Items.RetrieveItem(ctx, item.EntityID())
	require.NoError(t, err)
	require.NotNil(t, got)

	video, ok := got.(*catalog.ChannelVideoItem)
	require.True(t, ok, "retrieved item has type %T", got)
	assert.Equal(t, item.Name, video.Name)
	assert.Equal(t, item.Genres, video.Genres)
	assert.Equal(t, item.DataVersion, video.DataVersion)
	assert.Equal(t, item.MediaSources, video.MediaSources)
	assert.Equal(t, item.EntityID(), video.EntityID())
}

func TestItemRepository_SaveItems_Atomicity(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	good := newVideoItem("good")
	bad := &badEntity{}
	bad.SetEntityID(catalog.DeriveID("bad"))

	err := stores.Items.SaveItems(ctx, []catalog.Entity{good, bad})
	require.Error(t, err)

	// Neither item may be persisted.
	got, err := stores.Items.RetrieveItem(ctx, good.EntityID())
	require.NoError(t, err)
	assert.Nil(t, got, "good item persisted despite failed batch")
}

func TestItemRepository_RetrieveItem(t *testing.T) {
	t.Run("nil id is invalid", func(t *testing.T) {
		stores := newTestStores(t)
		_, err := stores.Items.RetrieveItem(context.Background(), uuid.Nil)
		assert.ErrorIs(t, err, catalog.ErrNilID)
	})

	t.Run("missing item is absent, not an error", func(t *testing.T) {
		stores := newTestStores(t)
		got, err := stores.Items.RetrieveItem(context.Background(), catalog.DeriveID("nope"))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown type tag is absent, not an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "catalog.db")
		ctx := context.Background()

		// Write a row with a type only this extended registry knows.
		extended := catalog.NewDefaultRegistry()
		extended.Register("Exotic", func() catalog.Entity { return &catalog.ChannelVideoItem{} })
		writer := NewItemRepository(path, extended, nil, nil, catalog.NewNopLogger())
		require.NoError(t, writer.Initialize(ctx))

		exotic := &catalog.ChannelVideoItem{}
		exotic.SetEntityID(catalog.DeriveID("exotic"))
		_, err := writer.db.Exec("INSERT INTO items (id, type, data) VALUES (?, ?, ?)",
			exotic.EntityID().String(), "Exotic", []byte(`{}`))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		// Read back with the default registry, which has never heard of it.
		reader := NewItemRepository(path, catalog.NewDefaultRegistry(), nil, nil, catalog.NewNopLogger())
		require.NoError(t, reader.Initialize(ctx))
		defer reader.Close()

		got, err := reader.RetrieveItem(ctx, exotic.EntityID())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestItemRepository_Children(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	parent := newVideoItem("parent")
	childA := newVideoItem("child-a")
	childB := newVideoItem("child-b")
	require.NoError(t, stores.Items.SaveItems(ctx, []catalog.Entity{parent, childA, childB}))
	require.NoError(t, stores.Items.SaveChildren(ctx, parent.EntityID(), []uuid.UUID{childA.EntityID(), childB.EntityID()}))

	t.Run("GetChildren yields the adjacency set", func(t *testing.T) {
		ids := map[uuid.UUID]bool{}
		for id, err := range stores.Items.GetChildren(ctx, parent.EntityID()) {
			require.NoError(t, err)
			ids[id] = true
		}
		assert.Len(t, ids, 2)
		assert.True(t, ids[childA.EntityID()])
		assert.True(t, ids[childB.EntityID()])
	})

	t.Run("GetChildrenItems materializes children", func(t *testing.T) {
		items, err := stores.Items.GetChildrenItems(ctx, parent.EntityID())
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("nil parent id is invalid", func(t *testing.T) {
		for _, err := range stores.Items.GetChildren(ctx, uuid.Nil) {
			assert.ErrorIs(t, err, catalog.ErrNilID)
		}
		_, err := stores.Items.GetChildrenItems(ctx, uuid.Nil)
		assert.ErrorIs(t, err, catalog.ErrNilID)
	})

	t.Run("SaveChildren replaces the full set", func(t *testing.T) {
		require.NoError(t, stores.Items.SaveChildren(ctx, parent.EntityID(), []uuid.UUID{childA.EntityID()}))
		var ids []uuid.UUID
		for id, err := range stores.Items.GetChildren(ctx, parent.EntityID()) {
			require.NoError(t, err)
			ids = append(ids, id)
		}
		assert.Equal(t, []uuid.UUID{childA.EntityID()}, ids)
	})
}

func TestItemRepository_DeleteItem(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	parent := newVideoItem("parent")
	child := newVideoItem("child")
	other := newVideoItem("other")
	require.NoError(t, stores.Items.SaveItems(ctx, []catalog.Entity{parent, child, other}))
	require.NoError(t, stores.Items.SaveChildren(ctx, parent.EntityID(), []uuid.UUID{child.EntityID()}))
	require.NoError(t, stores.Items.SaveChildren(ctx, other.EntityID(), []uuid.UUID{child.EntityID()}))

	require.NoError(t, stores.Items.DeleteItem(ctx, parent.EntityID()))

	// Parent row gone.
	got, err := stores.Items.RetrieveItem(ctx, parent.EntityID())
	require.NoError(t, err)
	assert.Nil(t, got)

	// Child's own row intact.
	got, err = stores.Items.RetrieveItem(ctx, child.EntityID())
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Parent's outgoing adjacency gone.
	count := 0
	for _, err := range stores.Items.GetChildren(ctx, parent.EntityID()) {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)

	// Incoming adjacency from other parents intact.
	count = 0
	for _, err := range stores.Items.GetChildren(ctx, other.EntityID()) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestItemRepository_GetItemsOfType(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	video := newVideoItem("v1")
	audio := &catalog.ChannelAudioItem{}
	audio.SetEntityID(catalog.DeriveID("a1"))
	require.NoError(t, stores.Items.SaveItems(ctx, []catalog.Entity{video, audio}))

	var videos []catalog.Entity
	for item, err := range stores.Items.GetItemsOfType(ctx, catalog.TypeChannelVideoItem) {
		require.NoError(t, err)
		videos = append(videos, item)
	}
	require.Len(t, videos, 1)
	assert.Equal(t, video.EntityID(), videos[0].EntityID())

	var ids []uuid.UUID
	for id, err := range stores.Items.GetItemIDsOfType(ctx, catalog.TypeChannelAudioItem) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []uuid.UUID{audio.EntityID()}, ids)
}

func TestItemRepository_Disposed(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	item := newVideoItem("x")
	require.NoError(t, stores.Items.Close())

	assert.ErrorIs(t, stores.Items.SaveItem(ctx, item), catalog.ErrDisposed)
	_, err := stores.Items.RetrieveItem(ctx, item.EntityID())
	assert.ErrorIs(t, err, catalog.ErrDisposed)
	assert.ErrorIs(t, stores.Items.DeleteItem(ctx, item.EntityID()), catalog.ErrDisposed)
	assert.ErrorIs(t, stores.Items.SaveChildren(ctx, item.EntityID(), nil), catalog.ErrDisposed)
	for _, err := range stores.Items.GetChildren(ctx, item.EntityID()) {
		assert.ErrorIs(t, err, catalog.ErrDisposed)
	}
}

func TestItemRepository_Cancellation(t *testing.T) {
	stores := newTestStores(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stores.Items.SaveItem(ctx, newVideoItem("cancelled"))
	assert.Error(t, err)

	// Nothing persisted after the cancelled save.
	got, err := stores.Items.RetrieveItem(context.Background(), catalog.DeriveID("cancelled"))
	require.NoError(t, err)
	assert.Nil(t, got)
}
