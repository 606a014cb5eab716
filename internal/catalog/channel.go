package catalog

import "github.com/google/uuid"

// Type tags for the entities this core persists. Tags are part of the stored
// format; renaming one orphans existing rows.
const (
	TypeChannel           = "Channel"
	TypeChannelFolderItem = "ChannelFolderItem"
	TypeChannelAudioItem  = "ChannelAudioItem"
	TypeChannelVideoItem  = "ChannelVideoItem"
)

// Channel is the catalog entity for one external content source.
type Channel struct {
	BaseEntity

	Description    string `json:"description,omitempty"`
	ParentalRating string `json:"parentalRating,omitempty"`
}

func (*Channel) TypeTag() string { return TypeChannel }

// ChannelItem carries the channel-specific fields shared by the Folder,
// Audio and Video item variants. The variants exist as distinct types so the
// type tag discriminates them in storage.
type ChannelItem struct {
	BaseEntity

	ExternalID   string        `json:"externalId"`
	ChannelID    uuid.UUID     `json:"channelId"`
	ContentType  string        `json:"contentType,omitempty"`
	ExtraType    string        `json:"extraType,omitempty"`
	MediaSources []MediaSource `json:"mediaSources,omitempty"`
}

// ChannelFolderItem is a browsable folder sourced from a channel.
type ChannelFolderItem struct {
	ChannelItem
}

func (*ChannelFolderItem) TypeTag() string { return TypeChannelFolderItem }

// ChannelAudioItem is a playable audio entry sourced from a channel.
type ChannelAudioItem struct {
	ChannelItem
}

func (*ChannelAudioItem) TypeTag() string { return TypeChannelAudioItem }

// ChannelVideoItem is a playable video entry sourced from a channel.
type ChannelVideoItem struct {
	ChannelItem
}

func (*ChannelVideoItem) TypeTag() string { return TypeChannelVideoItem }

// ChannelItemOf returns the shared channel-item core of any item variant, or
// nil when the entity is not a channel item.
func ChannelItemOf(e Entity) *ChannelItem {
	switch v := e.(type) {
	case *ChannelFolderItem:
		return &v.ChannelItem
	case *ChannelAudioItem:
		return &v.ChannelItem
	case *ChannelVideoItem:
		return &v.ChannelItem
	}
	return nil
}

// MediaKind reports the expected payload kind ("audio" or "video") for a
// channel item, used to validate downloaded content types. Folders have no
// media kind.
func MediaKind(e Entity) string {
	switch e.(type) {
	case *ChannelAudioItem:
		return "audio"
	case *ChannelVideoItem:
		return "video"
	default:
		return ""
	}
}
