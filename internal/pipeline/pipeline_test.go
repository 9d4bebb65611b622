package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/mocks"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
)

type recordedBroadcast struct {
	room  string
	event models.Event
}

type fakeHub struct {
	mu   sync.Mutex
	sent []recordedBroadcast
}

func (h *fakeHub) Broadcast(room string, event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, recordedBroadcast{room: room, event: event})
}

func (h *fakeHub) roomEvents(room string) []models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.Event
	for _, b := range h.sent {
		if b.room == room {
			out = append(out, b.event)
		}
	}
	return out
}

type recordedAck struct {
	id      string
	success bool
	data    map[string]any
}

type recorderConn struct {
	userID int
	events []models.Event
	acks   []recordedAck
}

func (c *recorderConn) Emit(event models.Event) { c.events = append(c.events, event) }
func (c *recorderConn) Ack(ackID string, success bool, data map[string]any) {
	c.acks = append(c.acks, recordedAck{id: ackID, success: success, data: data})
}
func (c *recorderConn) UserID() int { return c.userID }

func (c *recorderConn) eventOfType(eventType string) (models.Event, bool) {
	for _, e := range c.events {
		if e.Type == eventType {
			return e, true
		}
	}
	return models.Event{}, false
}

type pipelineDeps struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock
	hub      *fakeHub
}

func newTestPipeline(t *testing.T) (*Pipeline, *pipelineDeps) {
	t.Helper()
	deps := &pipelineDeps{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
		hub:      &fakeHub{},
	}
	deps.notifier.On("SendToUser", mock.Anything, mock.Anything).Return(true).Maybe()

	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	msgCache := cache.NewMessageCache(cache.NewMemoryStore(), deps.messages)

	p := New(deps.chats, deps.messages, deps.users, msgCache, deps.hub, deps.notifier, files)
	return p, deps
}

func groupChat(chatID int) models.Chat {
	return models.Chat{ChatID: chatID, ChatType: models.ChatTypeGroup, ChatName: "team"}
}

func storedMessage(id, chatID, senderID int) models.Message {
	return models.Message{
		MessageID:   id,
		ChatID:      chatID,
		SenderID:    senderID,
		MessageText: "hello",
		MessageType: models.MessageTypeText,
		CreatedAt:   time.Now().UTC(),
	}
}

func hydrated(msg models.Message) models.FullMessage {
	return models.FullMessage{Message: msg, Sender: models.UserProfile{UserID: msg.SenderID, Username: "alice"}}
}

func TestSendMessageDeliversAndAcks(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}
	msg := storedMessage(42, 5, 1)

	deps.chats.On("GetChat", mock.Anything, 5).Return(groupChat(5), nil).Once()
	deps.chats.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2, 3}, nil).Once()
	deps.messages.On("CreateMessage", mock.Anything, mock.Anything, []int{1, 2, 3}, (*models.Attachment)(nil)).Return(msg, nil).Once()
	deps.chats.On("UnhideForNewActivity", mock.Anything, 5).Return(nil).Once()
	deps.messages.On("GetFullMessage", mock.Anything, 42).Return(hydrated(msg), nil).Once()

	p.SendMessage(context.Background(), conn, SendMessageRequest{ChatID: 5, Text: "hello", TempID: "tmp-1", AckID: "a-1"})

	chatEvents := deps.hub.roomEvents(models.ChatRoom(5))
	require.Len(t, chatEvents, 1)
	assert.Equal(t, models.EventNewMessage, chatEvents[0].Type)

	assert.Len(t, deps.hub.roomEvents(models.UserRoom(2)), 1)
	assert.Len(t, deps.hub.roomEvents(models.UserRoom(3)), 1)
	assert.Empty(t, deps.hub.roomEvents(models.UserRoom(1)), "the sender's own room is skipped")

	sent, ok := conn.eventOfType(models.EventMessageSent)
	require.True(t, ok)
	data := sent.Data.(map[string]any)
	assert.Equal(t, 42, data["message_id"])
	assert.Equal(t, "tmp-1", data["temp_id"])
	assert.Equal(t, models.StatusSent, data["status"])

	require.Len(t, conn.acks, 1)
	assert.Equal(t, "a-1", conn.acks[0].id)
	assert.True(t, conn.acks[0].success)

	deps.chats.AssertExpectations(t)
	deps.messages.AssertExpectations(t)
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}

	p.SendMessage(context.Background(), conn, SendMessageRequest{ChatID: 5, Text: "   ", AckID: "a-1"})

	_, ok := conn.eventOfType(models.EventMessageError)
	assert.True(t, ok)
	require.Len(t, conn.acks, 1)
	assert.False(t, conn.acks[0].success)
	deps.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}

	deps.chats.On("GetChat", mock.Anything, 5).Return(groupChat(5), nil).Once()
	deps.chats.On("MemberIDs", mock.Anything, 5).Return([]int{2, 3}, nil).Once()

	p.SendMessage(context.Background(), conn, SendMessageRequest{ChatID: 5, Text: "hi"})

	_, ok := conn.eventOfType(models.EventMessageError)
	assert.True(t, ok)
	deps.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageBlockedPrivatePair(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}

	deps.chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ChatID: 5, ChatType: models.ChatTypePrivate}, nil).Once()
	deps.chats.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	deps.users.On("IsBlockedBetween", mock.Anything, 1, 2).Return(true, nil).Once()

	p.SendMessage(context.Background(), conn, SendMessageRequest{ChatID: 5, Text: "hi"})

	errEvent, ok := conn.eventOfType(models.EventMessageError)
	require.True(t, ok)
	assert.Equal(t, "cannot send message to this user", errEvent.Data.(map[string]any)["error"])
	deps.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deps.users.AssertExpectations(t)
}

func TestSendMessageRejectsCrossChatReply(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}
	replyTo := 99

	deps.chats.On("GetChat", mock.Anything, 5).Return(groupChat(5), nil).Once()
	deps.chats.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	deps.messages.On("GetMessage", mock.Anything, 99).Return(storedMessage(99, 6, 2), nil).Once()

	p.SendMessage(context.Background(), conn, SendMessageRequest{ChatID: 5, Text: "hi", ReplyToID: &replyTo})

	errEvent, ok := conn.eventOfType(models.EventMessageError)
	require.True(t, ok)
	assert.Equal(t, "replied message not found in this chat", errEvent.Data.(map[string]any)["error"])
	deps.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatusBroadcastsWhenAdvanced(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}

	deps.messages.On("GetMessage", mock.Anything, 42).Return(storedMessage(42, 5, 1), nil).Once()
	deps.messages.On("UpdateStatus", mock.Anything, 42, 2, models.StatusRead).Return(true, nil).Once()

	p.UpdateStatus(context.Background(), conn, UpdateStatusRequest{MessageID: 42, Status: models.StatusRead, AckID: "a-1"})

	events := deps.hub.roomEvents(models.ChatRoom(5))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessageStatusUpdated, events[0].Type)
	require.Len(t, conn.acks, 1)
	assert.True(t, conn.acks[0].success)
}

func TestUpdateStatusIgnoresRegression(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}

	deps.messages.On("GetMessage", mock.Anything, 42).Return(storedMessage(42, 5, 1), nil).Once()
	deps.messages.On("UpdateStatus", mock.Anything, 42, 2, models.StatusDelivered).Return(false, nil).Once()

	p.UpdateStatus(context.Background(), conn, UpdateStatusRequest{MessageID: 42, Status: models.StatusDelivered, AckID: "a-1"})

	assert.Empty(t, deps.hub.roomEvents(models.ChatRoom(5)), "a regressive transition must not broadcast")
	require.Len(t, conn.acks, 1)
	assert.True(t, conn.acks[0].success, "regressions are still acknowledged")
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}

	p.UpdateStatus(context.Background(), conn, UpdateStatusRequest{MessageID: 42, Status: models.StatusSent})

	_, ok := conn.eventOfType(models.EventMessageError)
	assert.True(t, ok)
	deps.messages.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageWithinWindow(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}
	msg := storedMessage(42, 5, 1)

	deps.messages.On("GetMessage", mock.Anything, 42).Return(msg, nil).Once()
	deps.messages.On("UpdateText", mock.Anything, 42, "edited").Return(nil).Once()
	edited := msg
	edited.MessageText = "edited"
	edited.Edited = true
	deps.messages.On("GetFullMessage", mock.Anything, 42).Return(hydrated(edited), nil).Once()

	p.EditMessage(context.Background(), conn, EditMessageRequest{MessageID: 42, Text: "edited", AckID: "a-1"})

	events := deps.hub.roomEvents(models.ChatRoom(5))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessageUpdated, events[0].Type)

	success, ok := conn.eventOfType(models.EventMessageUpdateSuccess)
	require.True(t, ok)
	assert.Equal(t, "edited", success.Data.(map[string]any)["message_text"])
	deps.messages.AssertExpectations(t)
}

func TestEditMessageRejectsExpiredWindow(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}
	msg := storedMessage(42, 5, 1)
	msg.CreatedAt = time.Now().Add(-3 * time.Hour)

	deps.messages.On("GetMessage", mock.Anything, 42).Return(msg, nil).Once()

	p.EditMessage(context.Background(), conn, EditMessageRequest{MessageID: 42, Text: "too late", AckID: "a-1"})

	errEvent, ok := conn.eventOfType(models.EventMessageError)
	require.True(t, ok)
	data := errEvent.Data.(map[string]any)
	assert.Equal(t, "edit window has expired", data["error"])
	assert.NotEmpty(t, data["edit_window_expired_at"])

	require.Len(t, conn.acks, 1)
	assert.False(t, conn.acks[0].success)
	deps.messages.AssertNotCalled(t, "UpdateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageRejectsOtherSenders(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}

	deps.messages.On("GetMessage", mock.Anything, 42).Return(storedMessage(42, 5, 1), nil).Once()

	p.EditMessage(context.Background(), conn, EditMessageRequest{MessageID: 42, Text: "not mine"})

	_, ok := conn.eventOfType(models.EventMessageError)
	assert.True(t, ok)
	deps.messages.AssertNotCalled(t, "UpdateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteForAllByAdmin(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 3}
	msg := storedMessage(42, 5, 1)

	deps.messages.On("GetMessage", mock.Anything, 42).Return(msg, nil).Once()
	deps.chats.On("MemberRole", mock.Anything, 5, 3).Return(models.RoleAdmin, nil).Once()
	deps.messages.On("GetAttachments", mock.Anything, 42).Return([]models.Attachment(nil), nil).Once()
	deps.messages.On("DeleteMessage", mock.Anything, 42).Return(nil).Once()

	p.DeleteForAll(context.Background(), conn, DeleteRequest{MessageID: 42, AckID: "a-1"})

	events := deps.hub.roomEvents(models.ChatRoom(5))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessageDeletedForAll, events[0].Type)
	data := events[0].Data.(map[string]any)
	assert.Equal(t, models.DeletedByAdmin, data["deleted_by_type"])
	assert.Equal(t, 3, data["deleted_by"])

	_, ok := conn.eventOfType(models.EventDeleteSuccess)
	assert.True(t, ok)
	deps.messages.AssertExpectations(t)
}

func TestDeleteForAllRejectsPlainMember(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 3}

	deps.messages.On("GetMessage", mock.Anything, 42).Return(storedMessage(42, 5, 1), nil).Once()
	deps.chats.On("MemberRole", mock.Anything, 5, 3).Return(models.RoleMember, nil).Once()

	p.DeleteForAll(context.Background(), conn, DeleteRequest{MessageID: 42})

	_, ok := conn.eventOfType(models.EventDeleteError)
	assert.True(t, ok)
	deps.messages.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteForUserCascadesWhenLastCopyGoes(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}
	msg := storedMessage(42, 5, 1)

	deps.messages.On("GetMessage", mock.Anything, 42).Return(msg, nil).Once()
	deps.chats.On("IsMember", mock.Anything, 5, 2).Return(true, nil).Once()
	deps.messages.On("HideForUser", mock.Anything, 42, 2).Return(nil).Once()
	deps.messages.On("VisibleCount", mock.Anything, 42).Return(0, nil).Once()
	deps.messages.On("GetAttachments", mock.Anything, 42).Return([]models.Attachment(nil), nil).Once()
	deps.messages.On("DeleteMessage", mock.Anything, 42).Return(nil).Once()

	p.DeleteForUser(context.Background(), conn, DeleteRequest{MessageID: 42, AckID: "a-1"})

	events := deps.hub.roomEvents(models.ChatRoom(5))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventMessageDeletedForAll, events[0].Type)
	assert.Equal(t, models.DeletedByAutoCascade, events[0].Data.(map[string]any)["deleted_by_type"])

	success, ok := conn.eventOfType(models.EventDeleteSuccess)
	require.True(t, ok)
	assert.Equal(t, true, success.Data.(map[string]any)["removed_from_db"])
	deps.messages.AssertExpectations(t)
}

func TestDeleteForUserKeepsOtherCopies(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 2}

	deps.messages.On("GetMessage", mock.Anything, 42).Return(storedMessage(42, 5, 1), nil).Once()
	deps.chats.On("IsMember", mock.Anything, 5, 2).Return(true, nil).Once()
	deps.messages.On("HideForUser", mock.Anything, 42, 2).Return(nil).Once()
	deps.messages.On("VisibleCount", mock.Anything, 42).Return(1, nil).Once()

	p.DeleteForUser(context.Background(), conn, DeleteRequest{MessageID: 42, AckID: "a-1"})

	assert.Empty(t, deps.hub.roomEvents(models.ChatRoom(5)))
	success, ok := conn.eventOfType(models.EventDeleteSuccess)
	require.True(t, ok)
	assert.Equal(t, false, success.Data.(map[string]any)["removed_from_db"])
	deps.messages.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestSendFileMessagePersistsAttachment(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}
	msg := storedMessage(42, 5, 1)
	msg.MessageType = models.MessageTypeImage

	deps.chats.On("GetChat", mock.Anything, 5).Return(groupChat(5), nil).Once()
	deps.chats.On("MemberIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	deps.messages.On("CreateMessage", mock.Anything, mock.Anything, []int{1, 2}, mock.MatchedBy(func(att *models.Attachment) bool {
		return att != nil && att.OriginalFilename == "photo.png" && att.FileSize == 4
	})).Return(msg, nil).Once()
	deps.chats.On("UnhideForNewActivity", mock.Anything, 5).Return(nil).Once()
	deps.messages.On("GetFullMessage", mock.Anything, 42).Return(hydrated(msg), nil).Once()

	p.SendFileMessage(context.Background(), conn, FileMessageRequest{
		ChatID:   5,
		FileName: "photo.png",
		MimeType: "image/png",
		Data:     []byte("data"),
		TempID:   "tmp-1",
		AckID:    "a-1",
	})

	success, ok := conn.eventOfType(models.EventFileUploadSuccess)
	require.True(t, ok)
	assert.Equal(t, 42, success.Data.(map[string]any)["message_id"])
	assert.NotEmpty(t, success.Data.(map[string]any)["file_url"])
	deps.messages.AssertExpectations(t)
}

func TestSendFileMessageRejectsEmptyPayload(t *testing.T) {
	p, deps := newTestPipeline(t)
	conn := &recorderConn{userID: 1}

	p.SendFileMessage(context.Background(), conn, FileMessageRequest{ChatID: 5, FileName: "f"})

	_, ok := conn.eventOfType(models.EventFileUploadError)
	assert.True(t, ok)
	deps.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
