package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/mocks"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/presence"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats/:chat_id/messages", handler.RecentMessages)
	r.GET("/users/online", handler.OnlineUsers)
	return r
}

func TestRecentMessagesSuccess(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	store := cache.NewMemoryStore()
	registry := presence.NewRegistry(store, new(mocks.UserRepositoryMock))
	handler := NewMessageHandler(chats, cache.NewMessageCache(store, messages), registry)
	router := setupMessageRouter(handler)

	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("VisibleMessages", mock.Anything, 5, 1, 50).Return([]models.FullMessage{
		{Message: models.Message{MessageID: 42, ChatID: 5, SenderID: 2, MessageText: "hi", MessageType: models.MessageTypeText}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.FullMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, 42, resp.Messages[0].MessageID)
	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestRecentMessagesForbiddenForNonMember(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	store := cache.NewMemoryStore()
	registry := presence.NewRegistry(store, new(mocks.UserRepositoryMock))
	handler := NewMessageHandler(chats, cache.NewMessageCache(store, messages), registry)
	router := setupMessageRouter(handler)

	chats.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "VisibleMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnlineUsersListsPresence(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	store := cache.NewMemoryStore()
	registry := presence.NewRegistry(store, new(mocks.UserRepositoryMock))
	handler := NewMessageHandler(chats, cache.NewMessageCache(store, messages), registry)
	router := setupMessageRouter(handler)

	_, err := registry.Register(context.Background(), "conn-1", models.User{UserID: 2, Username: "bob"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/online", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []presence.Entry `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "bob", resp.Users[0].Username)
}
