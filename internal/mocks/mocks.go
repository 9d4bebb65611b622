package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/push"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) MemberRole(ctx context.Context, chatID, userID int) (string, error) {
	args := m.Called(ctx, chatID, userID)
	return args.String(0), args.Error(1)
}

func (m *ChatRepositoryMock) MemberIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) MemberProfiles(ctx context.Context, chatID int) ([]models.UserProfile, error) {
	args := m.Called(ctx, chatID)
	var profiles []models.UserProfile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.UserProfile)
	}
	return profiles, args.Error(1)
}

func (m *ChatRepositoryMock) MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var chats []models.ChatSummary
	if val := args.Get(0); val != nil {
		chats = val.([]models.ChatSummary)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) GetVisibility(ctx context.Context, chatID, userID int) (models.ChatVisibility, error) {
	args := m.Called(ctx, chatID, userID)
	var v models.ChatVisibility
	if val := args.Get(0); val != nil {
		v = val.(models.ChatVisibility)
	}
	return v, args.Error(1)
}

func (m *ChatRepositoryMock) Archive(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Unarchive(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SoftDelete(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetPinned(ctx context.Context, chatID, userID int, pinned bool) error {
	args := m.Called(ctx, chatID, userID, pinned)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnhideForNewActivity(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ChatsByState(ctx context.Context, userID int, state string) ([]models.ChatVisibility, error) {
	args := m.Called(ctx, userID, state)
	var rows []models.ChatVisibility
	if val := args.Get(0); val != nil {
		rows = val.([]models.ChatVisibility)
	}
	return rows, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message, memberIDs []int, att *models.Attachment) (models.Message, error) {
	args := m.Called(ctx, msg, memberIDs, att)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetFullMessage(ctx context.Context, messageID int) (models.FullMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.FullMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.FullMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) VisibleMessages(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, error) {
	args := m.Called(ctx, chatID, userID, limit)
	var msgs []models.FullMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.FullMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LastVisibleMessage(ctx context.Context, chatID, userID int) (models.FullMessage, error) {
	args := m.Called(ctx, chatID, userID)
	var msg models.FullMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.FullMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateStatus(ctx context.Context, messageID, userID int, status string) (bool, error) {
	args := m.Called(ctx, messageID, userID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateText(ctx context.Context, messageID int, text string) error {
	args := m.Called(ctx, messageID, text)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID, userID int) (int64, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, chatID, userID int) (int, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) HideForUser(ctx context.Context, messageID, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) HideAllForUserInChat(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UnhideAllForUserInChat(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) VisibleCount(ctx context.Context, messageID int) (int, error) {
	args := m.Called(ctx, messageID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) GetAttachments(ctx context.Context, messageID int) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	var atts []models.Attachment
	if val := args.Get(0); val != nil {
		atts = val.([]models.Attachment)
	}
	return atts, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetProfile(ctx context.Context, userID int) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var p models.UserProfile
	if val := args.Get(0); val != nil {
		p = val.(models.UserProfile)
	}
	return p, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	args := m.Called(ctx, userID, online, lastSeen)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateStatusMessage(ctx context.Context, userID int, status string) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

func (m *UserRepositoryMock) IsBlockedBetween(ctx context.Context, userID, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) Friends(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) SendToUser(ctx context.Context, n push.Notification) bool {
	args := m.Called(ctx, n)
	return args.Bool(0)
}

func (m *NotifierMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ push.Notifier = (*NotifierMock)(nil)
