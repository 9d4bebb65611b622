package models

import "time"

// Chat types.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// Member roles within a group chat.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Per-user chat states derived from the visibility row.
const (
	ChatStateActive   = "active"
	ChatStateArchived = "archived"
	ChatStateDeleted  = "deleted"
)

// Chat is a private or group conversation container. Private chats carry a
// canonical "min:max" member key so at most one chat exists per pair.
type Chat struct {
	ChatID     int       `db:"chat_id" json:"chat_id"`
	ChatType   string    `db:"chat_type" json:"chat_type"`
	ChatName   string    `db:"chat_name" json:"chat_name,omitempty"`
	ChatImage  string    `db:"chat_image" json:"chat_image,omitempty"`
	PrivateKey *string   `db:"private_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatMember is a (chat, user) membership edge.
type ChatMember struct {
	ChatID int    `db:"chat_id" json:"chat_id"`
	UserID int    `db:"user_id" json:"user_id"`
	Role   string `db:"role" json:"role"`
}

// ChatVisibility controls whether a chat appears in one user's list.
// A missing row means {visible, not archived}.
type ChatVisibility struct {
	ChatID     int        `db:"chat_id" json:"chat_id"`
	UserID     int        `db:"user_id" json:"user_id"`
	IsVisible  bool       `db:"is_visible" json:"is_visible"`
	IsArchived bool       `db:"is_archived" json:"is_archived"`
	Pinned     bool       `db:"pinned" json:"pinned"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	HiddenAt   *time.Time `db:"hidden_at" json:"hidden_at,omitempty"`
}

// State maps the two flags onto the tri-state model.
func (v ChatVisibility) State() string {
	switch {
	case !v.IsVisible && v.IsArchived:
		return ChatStateArchived
	case !v.IsVisible && !v.IsArchived:
		return ChatStateDeleted
	default:
		return ChatStateActive
	}
}

// ChatSummary is the membership view returned on connect and by listings.
type ChatSummary struct {
	ChatID    int       `db:"chat_id" json:"chat_id"`
	ChatType  string    `db:"chat_type" json:"chat_type"`
	ChatName  string    `db:"chat_name" json:"chat_name,omitempty"`
	ChatImage string    `db:"chat_image" json:"chat_image,omitempty"`
	Pinned    bool      `db:"pinned" json:"pinned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LastMessagePreview summarizes the newest message of a chat for list views.
type LastMessagePreview struct {
	MessageID     int         `json:"message_id"`
	MessageType   string      `json:"message_type"`
	PreviewText   string      `json:"preview_text"`
	CreatedAt     time.Time   `json:"created_at"`
	Sender        UserProfile `json:"sender"`
	HasAttachment bool        `json:"has_attachment"`
}

// ChatPreview is one entry of the active/archived chat listings.
type ChatPreview struct {
	ChatID               int                 `json:"chat_id"`
	ChatType             string              `json:"chat_type"`
	ChatName             string              `json:"chat_name,omitempty"`
	ChatImage            string              `json:"chat_image,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	Members              []UserProfile       `json:"members"`
	Pinned               bool                `json:"pinned"`
	LastMessage          *LastMessagePreview `json:"last_message"`
	LastMessageTimestamp *time.Time          `json:"last_message_timestamp"`
	UnreadCount          int                 `json:"unread_count"`
}
