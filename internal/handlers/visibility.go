package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/visibility"
)

// VisibilityHandler exposes the per-user chat state machine over REST.
type VisibilityHandler struct {
	svc *visibility.Service
}

// NewVisibilityHandler builds a VisibilityHandler.
func NewVisibilityHandler(svc *visibility.Service) *VisibilityHandler {
	return &VisibilityHandler{svc: svc}
}

func chatIDParam(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return chatID, true
}

func visibilityStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrChatNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *VisibilityHandler) apply(c *gin.Context, op func(ctx *gin.Context, chatID, userID int) error, done string) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if err := op(c, chatID, userID); err != nil {
		c.JSON(visibilityStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "status": done})
}

// Archive moves a chat to the caller's archive.
func (h *VisibilityHandler) Archive(c *gin.Context) {
	h.apply(c, func(ctx *gin.Context, chatID, userID int) error {
		return h.svc.Archive(ctx.Request.Context(), chatID, userID)
	}, "archived")
}

// Unarchive restores an archived chat.
func (h *VisibilityHandler) Unarchive(c *gin.Context) {
	h.apply(c, func(ctx *gin.Context, chatID, userID int) error {
		return h.svc.Unarchive(ctx.Request.Context(), chatID, userID)
	}, "active")
}

// Delete soft-deletes a chat for the caller.
func (h *VisibilityHandler) Delete(c *gin.Context) {
	h.apply(c, func(ctx *gin.Context, chatID, userID int) error {
		return h.svc.Delete(ctx.Request.Context(), chatID, userID)
	}, "deleted")
}

// Pin pins a chat in the caller's listing.
func (h *VisibilityHandler) Pin(c *gin.Context) {
	h.apply(c, func(ctx *gin.Context, chatID, userID int) error {
		return h.svc.SetPinned(ctx.Request.Context(), chatID, userID, true)
	}, "pinned")
}

// Unpin unpins a chat.
func (h *VisibilityHandler) Unpin(c *gin.Context) {
	h.apply(c, func(ctx *gin.Context, chatID, userID int) error {
		return h.svc.SetPinned(ctx.Request.Context(), chatID, userID, false)
	}, "unpinned")
}

// MarkRead promotes the caller's delivered messages in a chat to read.
func (h *VisibilityHandler) MarkRead(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	n, err := h.svc.MarkRead(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(visibilityStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "marked_read": n})
}

// Status reports the caller's tri-state view of a chat.
func (h *VisibilityHandler) Status(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	status, err := h.svc.ChatStatus(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(visibilityStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListChats returns the caller's chat listing; ?state=archived selects the
// archive, anything else the active list.
func (h *VisibilityHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")
	state := c.DefaultQuery("state", models.ChatStateActive)
	if state != models.ChatStateActive && state != models.ChatStateArchived {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be active or archived"})
		return
	}

	chats, err := h.svc.ListChats(c.Request.Context(), userID, state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

type batchRequest struct {
	ChatIDs []int `json:"chat_ids" binding:"required"`
}

func (h *VisibilityHandler) batch(c *gin.Context, op func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error)) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetInt("userID")

	res, err := op(c, userID, req.ChatIDs)
	if err != nil {
		c.JSON(visibilityStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// BatchArchive archives several chats in one call.
func (h *VisibilityHandler) BatchArchive(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchArchive(ctx.Request.Context(), userID, chatIDs)
	})
}

// BatchUnarchive unarchives several chats.
func (h *VisibilityHandler) BatchUnarchive(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchUnarchive(ctx.Request.Context(), userID, chatIDs)
	})
}

// BatchDelete soft-deletes several chats.
func (h *VisibilityHandler) BatchDelete(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchDelete(ctx.Request.Context(), userID, chatIDs)
	})
}

// BatchPin pins several chats.
func (h *VisibilityHandler) BatchPin(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchSetPinned(ctx.Request.Context(), userID, chatIDs, true)
	})
}

// BatchUnpin unpins several chats.
func (h *VisibilityHandler) BatchUnpin(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchSetPinned(ctx.Request.Context(), userID, chatIDs, false)
	})
}

// BatchMarkRead marks several chats read.
func (h *VisibilityHandler) BatchMarkRead(c *gin.Context) {
	h.batch(c, func(ctx *gin.Context, userID int, chatIDs []int) (visibility.BatchResult, error) {
		return h.svc.BatchMarkRead(ctx.Request.Context(), userID, chatIDs)
	})
}
