// Package channels implements the remote-channel content layer: provider
// discovery, the on-disk listing cache, materialization of listing entries
// into catalog entities, and multi-channel aggregation.
package channels

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediad/internal/catalog"
)

// ItemKind discriminates the three channel item variants.
type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindAudio  ItemKind = "audio"
	KindVideo  ItemKind = "video"
)

// Features is the capability descriptor a provider declares.
type Features struct {
	MaxPageSize                int
	DailyDownloadLimit         int
	SupportsContentDownloading bool
	ContentTypes               []string
	MediaTypes                 []string
}

// Provider is one external content source plugin. Implementations are
// supplied by statically-registered channel objects or by factories.
type Provider interface {
	Name() string
	Description() string
	HomePageURL() string
	ParentalRating() string

	// DataVersion is the provider-supplied stamp used to invalidate cached
	// derivatives when the provider's underlying data changes.
	DataVersion() string

	Features() Features

	// ListItems returns one page (or, for an unpaged query, the full set) of
	// a folder listing.
	ListItems(ctx context.Context, q Query) (*Listing, error)
}

// AllMediaLister is implemented by providers that can enumerate their entire
// media set in one flat listing.
type AllMediaLister interface {
	ListAllMedia(ctx context.Context, q Query) (*Listing, error)
}

// LatestMediaLister is implemented by providers that can enumerate their
// most recent media.
type LatestMediaLister interface {
	ListLatestMedia(ctx context.Context, q Query) (*Listing, error)
}

// MediaResolver is implemented by providers whose media sources must be
// resolved per item at download/playback time.
type MediaResolver interface {
	ResolveMediaSources(ctx context.Context, externalID string) ([]catalog.MediaSource, error)
}

// Factory produces providers dynamically at query time.
type Factory interface {
	Channels() ([]Provider, error)
}

// Query identifies one channel listing request. The zero Start/Limit means
// unpaged.
type Query struct {
	ChannelID      uuid.UUID
	UserID         uuid.UUID
	FolderID       string
	SortBy         string
	SortDescending bool
	Start          int
	Limit          int
}

// Paged reports whether the query carries explicit paging. Paged queries
// never consult or populate the listing cache: pagination state is
// caller-specific and not cacheable.
func (q Query) Paged() bool { return q.Start > 0 || q.Limit > 0 }

// Entry is one externally-sourced listing entry, before materialization.
type Entry struct {
	ExternalID      string                `json:"externalId"`
	Name            string                `json:"name"`
	Kind            ItemKind              `json:"kind"`
	ContentType     string                `json:"contentType,omitempty"`
	ExtraType       string                `json:"extraType,omitempty"`
	Overview        string                `json:"overview,omitempty"`
	Genres          []string              `json:"genres,omitempty"`
	Tags            []string              `json:"tags,omitempty"`
	Studios         []string              `json:"studios,omitempty"`
	ProviderIDs     map[string]string     `json:"providerIds,omitempty"`
	PremiereDate    *time.Time            `json:"premiereDate,omitempty"`
	ProductionYear  int                   `json:"productionYear,omitempty"`
	CommunityRating float32               `json:"communityRating,omitempty"`
	RunTimeTicks    int64                 `json:"runTimeTicks,omitempty"`
	ImageURL        string                `json:"imageUrl,omitempty"`
	MediaSources    []catalog.MediaSource `json:"mediaSources,omitempty"`
	DateCreated     *time.Time            `json:"dateCreated,omitempty"`
}

// Listing is one fetched result set, the unit the cache serializes.
type Listing struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// UserContext is the narrow view of a user this layer needs. User-account
// management itself lives outside this core.
type UserContext interface {
	UserID() uuid.UUID
	CanSeeChannel(channelID uuid.UUID) bool
	IsFavorite(itemID uuid.UUID) bool
	Likes(itemID uuid.UUID) bool
	HasPlayed(itemID uuid.UUID) bool
}
