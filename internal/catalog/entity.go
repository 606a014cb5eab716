package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Entity is any persisted domain object keyed by a stable 128-bit identifier.
// Concrete types carry a type tag that discriminates the serialized payload
// in the item store.
type Entity interface {
	EntityID() uuid.UUID
	SetEntityID(id uuid.UUID)
	TypeTag() string
	Base() *BaseEntity
}

// BaseEntity holds the persisted fields shared by all catalog entities.
// Concrete entity types embed it.
type BaseEntity struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	SortName       string            `json:"sortName,omitempty"`
	Overview       string            `json:"overview,omitempty"`
	Path           string            `json:"path,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Genres         []string          `json:"genres,omitempty"`
	Studios        []string          `json:"studios,omitempty"`
	ProviderIDs    map[string]string `json:"providerIds,omitempty"`
	PremiereDate   *time.Time        `json:"premiereDate,omitempty"`
	ProductionYear int               `json:"productionYear,omitempty"`
	RunTimeTicks   int64             `json:"runTimeTicks,omitempty"`
	ImageURL       string            `json:"imageUrl,omitempty"`
	HomePageURL    string            `json:"homePageUrl,omitempty"`

	CommunityRating float32 `json:"communityRating,omitempty"`
	OfficialRating  string  `json:"officialRating,omitempty"`

	IsFolder bool `json:"isFolder,omitempty"`

	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`

	// DataVersion is the provider-supplied stamp current when this entity was
	// last materialized. A mismatch against the provider's live version marks
	// the entity stale.
	DataVersion string `json:"dataVersion,omitempty"`
}

func (b *BaseEntity) EntityID() uuid.UUID      { return b.ID }
func (b *BaseEntity) SetEntityID(id uuid.UUID) { b.ID = id }
func (b *BaseEntity) Base() *BaseEntity        { return b }

// MediaSource describes one playable source for an item.
type MediaSource struct {
	URL              string `json:"url"`
	Name             string `json:"name,omitempty"`
	Protocol         string `json:"protocol,omitempty"`
	Container        string `json:"container,omitempty"`
	Bitrate          int    `json:"bitrate,omitempty"`
	SupportsDownload bool   `json:"supportsDownload,omitempty"`
}

// Chapter is one chapter marker of an item. Chapters are stored in their own
// satellite repository, keyed by (item id, chapter index).
type Chapter struct {
	ItemID     uuid.UUID `json:"itemId"`
	Index      int       `json:"index"`
	Name       string    `json:"name,omitempty"`
	StartTicks int64     `json:"startTicks"`
	ImagePath  string    `json:"imagePath,omitempty"`
}

// MediaStream is one audio/video/subtitle stream of an item, stored in the
// media-streams satellite repository.
type MediaStream struct {
	ItemID   uuid.UUID `json:"itemId"`
	Index    int       `json:"index"`
	Type     string    `json:"type"`
	Codec    string    `json:"codec,omitempty"`
	Language string    `json:"language,omitempty"`
	Channels int       `json:"channels,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Bitrate  int       `json:"bitrate,omitempty"`
	Default  bool      `json:"default,omitempty"`
	Forced   bool      `json:"forced,omitempty"`
}

// CriticReview is one external critic review for an item, stored as a JSON
// document outside the transactional store.
type CriticReview struct {
	ReviewerName string     `json:"reviewerName"`
	Publisher    string     `json:"publisher,omitempty"`
	Score        *float32   `json:"score,omitempty"`
	Likes        *bool      `json:"likes,omitempty"`
	Caption      string     `json:"caption,omitempty"`
	URL          string     `json:"url,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
}
