package models

import "fmt"

// ChatRoom names the room every member of a chat shares.
func ChatRoom(chatID int) string {
	return fmt.Sprintf("chat_%d", chatID)
}

// UserRoom names a user's personal room, reaching every device they have
// connected.
func UserRoom(userID int) string {
	return fmt.Sprintf("user_%d", userID)
}

// Event is the wire envelope for every server-to-client frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Server event names.
const (
	EventConnected            = "connected"
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventMessageError         = "message_error"
	EventMessageStatusUpdated = "message_status_updated"
	EventMessageUpdated       = "message_updated"
	EventMessageUpdateSuccess = "message_update_success"
	EventMessageDeletedForAll = "message_deleted_for_all"
	EventDeleteSuccess        = "delete_success"
	EventDeleteError          = "delete_error"
	EventUserOnline           = "user_online"
	EventUserOffline          = "user_offline"
	EventUserTyping           = "user_typing"
	EventUserStoppedTyping    = "user_stopped_typing"
	EventChatJoined           = "chat_joined"
	EventUserJoinedChat       = "user_joined_chat"
	EventUserLeftChat         = "user_left_chat"
	EventUserStatusUpdated    = "user_status_updated"
	EventOnlineUsers          = "online_users"
	EventFileUploadProgress   = "file_upload_progress_update"
	EventFileUploadSuccess    = "file_upload_success"
	EventFileUploadError      = "file_upload_error"
	EventAck                  = "ack"
)

// Client frame names.
const (
	FrameSendMessage          = "send_message"
	FrameUpdateMessageStatus  = "update_message_status"
	FrameUpdateMessage        = "update_message"
	FrameDeleteMessageForAll  = "delete_message_for_all"
	FrameDeleteMessageForUser = "delete_message_for_user"
	FrameTypingStart          = "typing_start"
	FrameTypingStop           = "typing_stop"
	FrameJoinChat             = "join_chat"
	FrameLeaveChat            = "leave_chat"
	FrameUpdateStatus         = "update_status"
	FrameGetOnlineUsers       = "get_online_users"
	FrameSendFileMessage      = "send_file_message"
	FrameSendFileChunk        = "send_file_message_chunk"
	FrameFileUploadProgress   = "file_upload_progress"
)

// Actor kinds recorded on a hard delete.
const (
	DeletedBySender      = "sender"
	DeletedByAdmin       = "admin"
	DeletedByAutoCascade = "auto_cascade"
)
