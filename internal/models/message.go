package models

import "time"

// Message content types.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeDocument = "document"
	MessageTypeFile     = "file"
)

// Per-recipient delivery states, ordered.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

var statusRank = map[string]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// StatusRank returns the position of a status in the sent→delivered→read walk,
// or -1 for an unknown status.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

// Message is a chat message row. Text and the edited flag may change within the
// edit window; everything else is immutable until hard delete.
type Message struct {
	MessageID   int       `db:"message_id" json:"message_id"`
	ChatID      int       `db:"chat_id" json:"chat_id"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	MessageText string    `db:"message_text" json:"message_text"`
	MessageType string    `db:"message_type" json:"message_type"`
	ReplyToID   *int      `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Edited      bool      `db:"edited" json:"edited"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MessageStatus is one recipient's delivery state for one message.
type MessageStatus struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MessageVisibility is one recipient's view flag for one message. When no
// recipient can see a message anymore it is hard-deleted with all dependents.
type MessageVisibility struct {
	MessageID int        `db:"message_id" json:"message_id"`
	UserID    int        `db:"user_id" json:"user_id"`
	IsVisible bool       `db:"is_visible" json:"is_visible"`
	HiddenAt  *time.Time `db:"hidden_at" json:"hidden_at,omitempty"`
}

// Attachment is file metadata bound to a message; the stored file is removed
// together with the message.
type Attachment struct {
	AttachmentID     int    `db:"attachment_id" json:"attachment_id"`
	MessageID        int    `db:"message_id" json:"message_id"`
	FileURL          string `db:"file_url" json:"file_url"`
	OriginalFilename string `db:"original_filename" json:"original_filename"`
	FileType         string `db:"file_type" json:"file_type"`
	FileSize         int64  `db:"file_size" json:"file_size"`
}

// MessageRef is the reduced shape of a replied-to message.
type MessageRef struct {
	MessageID   int         `db:"message_id" json:"message_id"`
	MessageText string      `db:"message_text" json:"message_text"`
	Sender      UserProfile `json:"sender"`
}

// FullMessage is a message hydrated with the relations broadcast to clients.
type FullMessage struct {
	Message
	Sender      UserProfile     `json:"sender"`
	Chat        ChatSummary     `json:"chat"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Statuses    []MessageStatus `json:"status,omitempty"`
	ReplyTo     *MessageRef     `json:"referenced_message,omitempty"`
}
