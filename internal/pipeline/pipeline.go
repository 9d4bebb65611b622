package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/push"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
)

// EditWindow is how long a sender may rewrite a message after creation.
const EditWindow = 2 * time.Hour

// sideEffectTimeout bounds the detached cache and push writes that follow a
// successful delivery.
const sideEffectTimeout = 10 * time.Second

// Broadcaster is the room fan-out the pipeline emits through.
type Broadcaster interface {
	Broadcast(room string, event models.Event)
}

// ClientConn is the initiating connection: acks and errors go only here.
type ClientConn interface {
	Emit(event models.Event)
	Ack(ackID string, success bool, data map[string]any)
	UserID() int
}

// Pipeline carries a message from a client frame through persistence, fan-out
// and the best-effort cache and push side effects.
type Pipeline struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	msgCache *cache.MessageCache
	hub      Broadcaster
	notifier push.Notifier
	files    *storage.FileStore
	tracer   trace.Tracer
}

func New(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	msgCache *cache.MessageCache,
	hub Broadcaster,
	notifier push.Notifier,
	files *storage.FileStore,
) *Pipeline {
	return &Pipeline{
		chats:    chats,
		messages: messages,
		users:    users,
		msgCache: msgCache,
		hub:      hub,
		notifier: notifier,
		files:    files,
		tracer:   otel.Tracer("convohub/pipeline"),
	}
}

// SendMessageRequest is the send_message client frame.
type SendMessageRequest struct {
	ChatID    int    `json:"chat_id"`
	Text      string `json:"message_text"`
	ReplyToID *int   `json:"reply_to_id,omitempty"`
	TempID    string `json:"temp_id,omitempty"`
	AckID     string `json:"ack_id,omitempty"`
}

// newMessagePayload echoes the sender's correlation id on the broadcast.
type newMessagePayload struct {
	models.FullMessage
	TempID string `json:"temp_id,omitempty"`
}

// SendMessage validates, persists and fans out a text message.
func (p *Pipeline) SendMessage(ctx context.Context, conn ClientConn, req SendMessageRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.send_message")
	defer span.End()

	senderID := conn.UserID()
	text := strings.TrimSpace(req.Text)
	if req.ChatID <= 0 {
		p.messageError(conn, req.AckID, req.TempID, "chat_id is required")
		return
	}
	if text == "" {
		p.messageError(conn, req.AckID, req.TempID, "message text cannot be empty")
		return
	}

	chat, err := p.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		p.messageError(conn, req.AckID, req.TempID, "chat not found")
		return
	}
	memberIDs, err := p.chats.MemberIDs(ctx, req.ChatID)
	if err != nil {
		p.messageError(conn, req.AckID, req.TempID, "failed to send message")
		return
	}
	if !contains(memberIDs, senderID) {
		p.messageError(conn, req.AckID, req.TempID, "not a member of this chat")
		return
	}

	// A block in either direction closes a private chat, even a stale one.
	if chat.ChatType == models.ChatTypePrivate {
		for _, memberID := range memberIDs {
			if memberID == senderID {
				continue
			}
			blocked, err := p.users.IsBlockedBetween(ctx, senderID, memberID)
			if err != nil {
				p.messageError(conn, req.AckID, req.TempID, "failed to send message")
				return
			}
			if blocked {
				p.messageError(conn, req.AckID, req.TempID, "cannot send message to this user")
				return
			}
		}
	}

	if req.ReplyToID != nil {
		ref, err := p.messages.GetMessage(ctx, *req.ReplyToID)
		if err != nil || ref.ChatID != req.ChatID {
			p.messageError(conn, req.AckID, req.TempID, "replied message not found in this chat")
			return
		}
	}

	msg, err := p.messages.CreateMessage(ctx, models.Message{
		ChatID:      req.ChatID,
		SenderID:    senderID,
		MessageText: text,
		MessageType: models.MessageTypeText,
		ReplyToID:   req.ReplyToID,
	}, memberIDs, nil)
	if err != nil {
		log.Printf("pipeline: create message chat=%d sender=%d err=%v", req.ChatID, senderID, err)
		p.messageError(conn, req.AckID, req.TempID, "failed to send message")
		return
	}

	p.deliver(ctx, conn, msg, memberIDs, req.TempID, req.AckID)
}

// deliver runs the shared post-persist path: un-hide, fan out, side effects
// and the sender ack.
func (p *Pipeline) deliver(ctx context.Context, conn ClientConn, msg models.Message, memberIDs []int, tempID, ackID string) {
	if err := p.chats.UnhideForNewActivity(ctx, msg.ChatID); err != nil {
		log.Printf("pipeline: unhide chat=%d err=%v", msg.ChatID, err)
	}

	full, err := p.messages.GetFullMessage(ctx, msg.MessageID)
	if err != nil {
		log.Printf("pipeline: hydrate message=%d err=%v", msg.MessageID, err)
		p.messageError(conn, ackID, tempID, "failed to send message")
		return
	}

	event := models.Event{Type: models.EventNewMessage, Data: newMessagePayload{FullMessage: full, TempID: tempID}}
	p.hub.Broadcast(models.ChatRoom(msg.ChatID), event)
	for _, memberID := range memberIDs {
		if memberID != msg.SenderID {
			p.hub.Broadcast(models.UserRoom(memberID), event)
		}
	}

	go p.cacheMessage(full)
	go p.notifyRecipients(full, memberIDs)

	sentAt := msg.CreatedAt.UTC().Format(time.RFC3339Nano)
	conn.Emit(models.Event{Type: models.EventMessageSent, Data: map[string]any{
		"message_id": msg.MessageID,
		"temp_id":    tempID,
		"status":     models.StatusSent,
		"timestamp":  sentAt,
	}})
	conn.Ack(ackID, true, map[string]any{"message_id": msg.MessageID, "temp_id": tempID})
}

func (p *Pipeline) cacheMessage(full models.FullMessage) {
	defer recoverPanic("cache write-through")
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := p.msgCache.Add(ctx, full); err != nil {
		log.Printf("pipeline: cache message=%d err=%v", full.MessageID, err)
	}
}

func (p *Pipeline) notifyRecipients(full models.FullMessage, memberIDs []int) {
	defer recoverPanic("push notify")
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	for _, memberID := range memberIDs {
		if memberID == full.SenderID {
			continue
		}
		p.notifier.SendToUser(ctx, push.MessageNotification(memberID, full))
	}
}

// UpdateStatusRequest is the update_message_status client frame.
type UpdateStatusRequest struct {
	MessageID int    `json:"message_id"`
	Status    string `json:"status"`
	AckID     string `json:"ack_id,omitempty"`
}

// UpdateStatus advances the caller's delivery state for a message. Regressive
// transitions are ignored and still acknowledged.
func (p *Pipeline) UpdateStatus(ctx context.Context, conn ClientConn, req UpdateStatusRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.update_status")
	defer span.End()

	if req.Status != models.StatusDelivered && req.Status != models.StatusRead {
		p.messageError(conn, req.AckID, "", "status must be delivered or read")
		return
	}

	msg, err := p.messages.GetMessage(ctx, req.MessageID)
	if err != nil {
		p.messageError(conn, req.AckID, "", "message not found")
		return
	}

	advanced, err := p.messages.UpdateStatus(ctx, req.MessageID, conn.UserID(), req.Status)
	if err != nil {
		if errors.Is(err, repositories.ErrStatusNotFound) {
			p.messageError(conn, req.AckID, "", "no status record for this message")
			return
		}
		log.Printf("pipeline: update status message=%d user=%d err=%v", req.MessageID, conn.UserID(), err)
		p.messageError(conn, req.AckID, "", "failed to update status")
		return
	}

	if advanced {
		p.hub.Broadcast(models.ChatRoom(msg.ChatID), models.Event{
			Type: models.EventMessageStatusUpdated,
			Data: map[string]any{
				"message_id": req.MessageID,
				"chat_id":    msg.ChatID,
				"user_id":    conn.UserID(),
				"status":     req.Status,
			},
		})
	}
	conn.Ack(req.AckID, true, map[string]any{"message_id": req.MessageID, "status": req.Status})
}

// EditMessageRequest is the update_message client frame.
type EditMessageRequest struct {
	MessageID int    `json:"message_id"`
	Text      string `json:"message_text"`
	AckID     string `json:"ack_id,omitempty"`
}

// EditMessage rewrites a message's text within the edit window.
func (p *Pipeline) EditMessage(ctx context.Context, conn ClientConn, req EditMessageRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.edit_message")
	defer span.End()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		p.messageError(conn, req.AckID, "", "message text cannot be empty")
		return
	}

	msg, err := p.messages.GetMessage(ctx, req.MessageID)
	if err != nil {
		p.messageError(conn, req.AckID, "", "message not found")
		return
	}
	if msg.SenderID != conn.UserID() {
		p.messageError(conn, req.AckID, "", "only the sender can edit a message")
		return
	}

	expiresAt := msg.CreatedAt.Add(EditWindow)
	if time.Now().After(expiresAt) {
		conn.Emit(models.Event{Type: models.EventMessageError, Data: map[string]any{
			"error":                  "edit window has expired",
			"message_id":             req.MessageID,
			"edit_window_expired_at": expiresAt.UTC().Format(time.RFC3339),
		}})
		conn.Ack(req.AckID, false, map[string]any{
			"error":                  "edit window has expired",
			"edit_window_expired_at": expiresAt.UTC().Format(time.RFC3339),
		})
		return
	}

	if err := p.messages.UpdateText(ctx, req.MessageID, text); err != nil {
		log.Printf("pipeline: edit message=%d err=%v", req.MessageID, err)
		p.messageError(conn, req.AckID, "", "failed to update message")
		return
	}

	full, err := p.messages.GetFullMessage(ctx, req.MessageID)
	if err == nil {
		p.hub.Broadcast(models.ChatRoom(msg.ChatID), models.Event{Type: models.EventMessageUpdated, Data: full})
		go p.cacheMessage(full)
	}

	conn.Emit(models.Event{Type: models.EventMessageUpdateSuccess, Data: map[string]any{
		"message_id":   req.MessageID,
		"message_text": text,
	}})
	conn.Ack(req.AckID, true, map[string]any{"message_id": req.MessageID})
}

// DeleteRequest is the delete_message_for_all / delete_message_for_user frame.
type DeleteRequest struct {
	MessageID int    `json:"message_id"`
	AckID     string `json:"ack_id,omitempty"`
}

// DeleteForAll hard-deletes a message for everyone. Allowed for the sender or
// a chat admin.
func (p *Pipeline) DeleteForAll(ctx context.Context, conn ClientConn, req DeleteRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.delete_for_all")
	defer span.End()

	msg, err := p.messages.GetMessage(ctx, req.MessageID)
	if err != nil {
		p.deleteError(conn, req.AckID, req.MessageID, "message not found")
		return
	}

	deletedByType := models.DeletedBySender
	if msg.SenderID != conn.UserID() {
		role, err := p.chats.MemberRole(ctx, msg.ChatID, conn.UserID())
		if err != nil || role != models.RoleAdmin {
			p.deleteError(conn, req.AckID, req.MessageID, "not allowed to delete this message")
			return
		}
		deletedByType = models.DeletedByAdmin
	}

	if err := p.hardDelete(ctx, msg, conn.UserID(), deletedByType); err != nil {
		log.Printf("pipeline: delete for all message=%d err=%v", req.MessageID, err)
		p.deleteError(conn, req.AckID, req.MessageID, "failed to delete message")
		return
	}

	conn.Emit(models.Event{Type: models.EventDeleteSuccess, Data: map[string]any{
		"message_id":      req.MessageID,
		"deleted_for_all": true,
	}})
	conn.Ack(req.AckID, true, map[string]any{"message_id": req.MessageID})
}

// hardDelete unlinks attachment files, removes the message with its dependent
// rows and broadcasts the removal exactly once.
func (p *Pipeline) hardDelete(ctx context.Context, msg models.Message, actorID int, deletedByType string) error {
	atts, err := p.messages.GetAttachments(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	for _, att := range atts {
		if err := p.files.Delete(att.FileURL); err != nil {
			log.Printf("pipeline: unlink attachment message=%d url=%s err=%v", msg.MessageID, att.FileURL, err)
		}
	}

	if err := p.messages.DeleteMessage(ctx, msg.MessageID); err != nil {
		return err
	}

	go func() {
		defer recoverPanic("cache removal")
		cctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.msgCache.Remove(cctx, msg.MessageID, msg.ChatID); err != nil {
			log.Printf("pipeline: drop cached message=%d err=%v", msg.MessageID, err)
		}
	}()

	p.hub.Broadcast(models.ChatRoom(msg.ChatID), models.Event{
		Type: models.EventMessageDeletedForAll,
		Data: map[string]any{
			"message_id":      msg.MessageID,
			"chat_id":         msg.ChatID,
			"deleted_by":      actorID,
			"deleted_by_type": deletedByType,
		},
	})
	return nil
}

// DeleteForUser hides a message from the caller only. When the last visible
// copy goes, the message is cascaded out of existence.
func (p *Pipeline) DeleteForUser(ctx context.Context, conn ClientConn, req DeleteRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.delete_for_user")
	defer span.End()

	msg, err := p.messages.GetMessage(ctx, req.MessageID)
	if err != nil {
		p.deleteError(conn, req.AckID, req.MessageID, "message not found")
		return
	}
	member, err := p.chats.IsMember(ctx, msg.ChatID, conn.UserID())
	if err != nil || !member {
		p.deleteError(conn, req.AckID, req.MessageID, "not a member of this chat")
		return
	}

	if err := p.messages.HideForUser(ctx, req.MessageID, conn.UserID()); err != nil {
		log.Printf("pipeline: hide message=%d user=%d err=%v", req.MessageID, conn.UserID(), err)
		p.deleteError(conn, req.AckID, req.MessageID, "failed to delete message")
		return
	}

	go func(chatID, userID int) {
		defer recoverPanic("cache invalidation")
		cctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.msgCache.InvalidateUser(cctx, chatID, userID); err != nil {
			log.Printf("pipeline: invalidate viewer cache chat=%d user=%d err=%v", chatID, userID, err)
		}
	}(msg.ChatID, conn.UserID())

	visible, err := p.messages.VisibleCount(ctx, req.MessageID)
	if err != nil {
		log.Printf("pipeline: visible count message=%d err=%v", req.MessageID, err)
		p.deleteError(conn, req.AckID, req.MessageID, "failed to delete message")
		return
	}

	removed := false
	if visible == 0 {
		if err := p.hardDelete(ctx, msg, conn.UserID(), models.DeletedByAutoCascade); err != nil {
			log.Printf("pipeline: cascade delete message=%d err=%v", req.MessageID, err)
			p.deleteError(conn, req.AckID, req.MessageID, "failed to delete message")
			return
		}
		removed = true
	}

	conn.Emit(models.Event{Type: models.EventDeleteSuccess, Data: map[string]any{
		"message_id":      req.MessageID,
		"deleted_for_all": false,
		"removed_from_db": removed,
	}})
	conn.Ack(req.AckID, true, map[string]any{"message_id": req.MessageID, "removed_from_db": removed})
}

// FileMessageRequest is a decoded single-shot or reassembled file message.
type FileMessageRequest struct {
	ChatID   int
	FileName string
	MimeType string
	Data     []byte
	Caption  string
	TempID   string
	AckID    string
}

// SendFileMessage persists an attachment message and fans it out. Both the
// single-shot frame and the chunk reassembler land here.
func (p *Pipeline) SendFileMessage(ctx context.Context, conn ClientConn, req FileMessageRequest) {
	ctx, span := p.tracer.Start(ctx, "pipeline.send_file_message")
	defer span.End()

	senderID := conn.UserID()
	if req.ChatID <= 0 || req.FileName == "" || len(req.Data) == 0 {
		p.fileError(conn, req.AckID, req.TempID, "chat_id, file name and file data are required")
		return
	}
	if len(req.Data) > storage.MaxFileSize {
		p.fileError(conn, req.AckID, req.TempID, "file exceeds the 50MB limit")
		return
	}

	chat, err := p.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		p.fileError(conn, req.AckID, req.TempID, "chat not found")
		return
	}
	memberIDs, err := p.chats.MemberIDs(ctx, req.ChatID)
	if err != nil || !contains(memberIDs, senderID) {
		p.fileError(conn, req.AckID, req.TempID, "not a member of this chat")
		return
	}
	if chat.ChatType == models.ChatTypePrivate {
		for _, memberID := range memberIDs {
			if memberID == senderID {
				continue
			}
			blocked, err := p.users.IsBlockedBetween(ctx, senderID, memberID)
			if err != nil || blocked {
				p.fileError(conn, req.AckID, req.TempID, "cannot send message to this user")
				return
			}
		}
	}

	fileURL, err := p.files.Save(req.FileName, req.Data)
	if err != nil {
		log.Printf("pipeline: store file chat=%d name=%s err=%v", req.ChatID, req.FileName, err)
		p.fileError(conn, req.AckID, req.TempID, "failed to store file")
		return
	}

	att := &models.Attachment{
		FileURL:          fileURL,
		OriginalFilename: req.FileName,
		FileType:         req.MimeType,
		FileSize:         int64(len(req.Data)),
	}
	msg, err := p.messages.CreateMessage(ctx, models.Message{
		ChatID:      req.ChatID,
		SenderID:    senderID,
		MessageText: strings.TrimSpace(req.Caption),
		MessageType: storage.MessageTypeFor(req.MimeType),
	}, memberIDs, att)
	if err != nil {
		log.Printf("pipeline: create file message chat=%d err=%v", req.ChatID, err)
		if err := p.files.Delete(fileURL); err != nil {
			log.Printf("pipeline: cleanup orphan file url=%s err=%v", fileURL, err)
		}
		p.fileError(conn, req.AckID, req.TempID, "failed to send file message")
		return
	}

	p.deliver(ctx, conn, msg, memberIDs, req.TempID, req.AckID)
	conn.Emit(models.Event{Type: models.EventFileUploadSuccess, Data: map[string]any{
		"message_id": msg.MessageID,
		"temp_id":    req.TempID,
		"file_url":   fileURL,
	}})
}

func (p *Pipeline) messageError(conn ClientConn, ackID, tempID, msg string) {
	data := map[string]any{"error": msg}
	if tempID != "" {
		data["temp_id"] = tempID
	}
	conn.Emit(models.Event{Type: models.EventMessageError, Data: data})
	conn.Ack(ackID, false, map[string]any{"error": msg})
}

func (p *Pipeline) deleteError(conn ClientConn, ackID string, messageID int, msg string) {
	conn.Emit(models.Event{Type: models.EventDeleteError, Data: map[string]any{
		"error":      msg,
		"message_id": messageID,
	}})
	conn.Ack(ackID, false, map[string]any{"error": msg})
}

func (p *Pipeline) fileError(conn ClientConn, ackID, tempID, msg string) {
	data := map[string]any{"error": msg}
	if tempID != "" {
		data["temp_id"] = tempID
	}
	conn.Emit(models.Event{Type: models.EventFileUploadError, Data: data})
	conn.Ack(ackID, false, map[string]any{"error": msg})
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func recoverPanic(what string) {
	if r := recover(); r != nil {
		log.Printf("pipeline: recovered panic in %s: %v", what, r)
	}
}
