package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/presence"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
)

// MessageHandler serves the recent-message read path through the message
// cache, plus the online-user listing.
type MessageHandler struct {
	chats    repositories.ChatRepository
	msgCache *cache.MessageCache
	presence *presence.Registry
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(chats repositories.ChatRepository, msgCache *cache.MessageCache, registry *presence.Registry) *MessageHandler {
	return &MessageHandler{chats: chats, msgCache: msgCache, presence: registry}
}

// RecentMessages returns the caller's visible window of a chat, cache first.
func (h *MessageHandler) RecentMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	member, err := h.chats.IsMember(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.msgCache.Recent(c.Request.Context(), chatID, userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// OnlineUsers lists everyone with a live connection.
func (h *MessageHandler) OnlineUsers(c *gin.Context) {
	entries, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load online users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": entries})
}
