package visibility

import (
	"context"
	"fmt"
	"log"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
)

// Service drives the per-user chat state machine: active, archived and
// (softly) deleted chats, pinning and the listing reads built on top.
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	msgCache *cache.MessageCache
}

func NewService(chats repositories.ChatRepository, messages repositories.MessageRepository, msgCache *cache.MessageCache) *Service {
	return &Service{chats: chats, messages: messages, msgCache: msgCache}
}

func (s *Service) requireMember(ctx context.Context, chatID, userID int) error {
	member, err := s.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("membership check chat=%d user=%d: %w", chatID, userID, err)
	}
	if !member {
		return repositories.ErrNotMember
	}
	return nil
}

// Archive moves a chat to the archived state and hides its current messages
// from the caller. New activity does not resurface an archived chat.
func (s *Service) Archive(ctx context.Context, chatID, userID int) error {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.chats.Archive(ctx, chatID, userID); err != nil {
		return fmt.Errorf("archive chat=%d user=%d: %w", chatID, userID, err)
	}
	if err := s.messages.HideAllForUserInChat(ctx, chatID, userID); err != nil {
		return fmt.Errorf("hide messages chat=%d user=%d: %w", chatID, userID, err)
	}
	s.invalidateViewer(ctx, chatID, userID)
	return nil
}

// Unarchive returns a chat to the active state and restores the messages
// archiving hid.
func (s *Service) Unarchive(ctx context.Context, chatID, userID int) error {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.chats.Unarchive(ctx, chatID, userID); err != nil {
		return fmt.Errorf("unarchive chat=%d user=%d: %w", chatID, userID, err)
	}
	if err := s.messages.UnhideAllForUserInChat(ctx, chatID, userID); err != nil {
		return fmt.Errorf("unhide messages chat=%d user=%d: %w", chatID, userID, err)
	}
	s.invalidateViewer(ctx, chatID, userID)
	return nil
}

// Delete soft-deletes a chat for the caller: the chat and its messages leave
// the caller's view but other members are untouched. The next message in the
// chat brings it back.
func (s *Service) Delete(ctx context.Context, chatID, userID int) error {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.chats.SoftDelete(ctx, chatID, userID); err != nil {
		return fmt.Errorf("soft delete chat=%d user=%d: %w", chatID, userID, err)
	}
	if err := s.messages.HideAllForUserInChat(ctx, chatID, userID); err != nil {
		return fmt.Errorf("hide messages chat=%d user=%d: %w", chatID, userID, err)
	}
	s.invalidateViewer(ctx, chatID, userID)
	return nil
}

// SetPinned flips the pinned flag on the caller's listing entry.
func (s *Service) SetPinned(ctx context.Context, chatID, userID int, pinned bool) error {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.chats.SetPinned(ctx, chatID, userID, pinned); err != nil {
		return fmt.Errorf("pin chat=%d user=%d: %w", chatID, userID, err)
	}
	return nil
}

// MarkRead promotes the caller's delivered statuses in a chat to read and
// returns how many rows advanced.
func (s *Service) MarkRead(ctx context.Context, chatID, userID int) (int64, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, chatID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark read chat=%d user=%d: %w", chatID, userID, err)
	}
	return n, nil
}

// Status reports the caller's tri-state view of a chat plus the pinned flag
// and unread count.
type Status struct {
	ChatID      int    `json:"chat_id"`
	State       string `json:"state"`
	Pinned      bool   `json:"pinned"`
	UnreadCount int    `json:"unread_count"`
}

func (s *Service) ChatStatus(ctx context.Context, chatID, userID int) (Status, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return Status{}, err
	}
	v, err := s.chats.GetVisibility(ctx, chatID, userID)
	if err != nil {
		return Status{}, fmt.Errorf("visibility chat=%d user=%d: %w", chatID, userID, err)
	}
	unread, err := s.messages.UnreadCount(ctx, chatID, userID)
	if err != nil {
		return Status{}, fmt.Errorf("unread count chat=%d user=%d: %w", chatID, userID, err)
	}
	return Status{ChatID: chatID, State: v.State(), Pinned: v.Pinned, UnreadCount: unread}, nil
}

// BatchResult reports a multi-chat operation: how many chats succeeded and
// which failed. Batches are applied per chat, not transactionally across
// chats.
type BatchResult struct {
	Succeeded int   `json:"succeeded"`
	Failed    []int `json:"failed,omitempty"`
}

// batch checks membership for every chat up front, then applies op per chat.
func (s *Service) batch(ctx context.Context, userID int, chatIDs []int, op func(context.Context, int) error) (BatchResult, error) {
	if len(chatIDs) == 0 {
		return BatchResult{}, fmt.Errorf("chat_ids cannot be empty")
	}
	for _, chatID := range chatIDs {
		if err := s.requireMember(ctx, chatID, userID); err != nil {
			return BatchResult{}, fmt.Errorf("chat %d: %w", chatID, err)
		}
	}

	var res BatchResult
	for _, chatID := range chatIDs {
		if err := op(ctx, chatID); err != nil {
			log.Printf("visibility: batch op chat=%d user=%d err=%v", chatID, userID, err)
			res.Failed = append(res.Failed, chatID)
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func (s *Service) BatchArchive(ctx context.Context, userID int, chatIDs []int) (BatchResult, error) {
	return s.batch(ctx, userID, chatIDs, func(ctx context.Context, chatID int) error {
		return s.Archive(ctx, chatID, userID)
	})
}

func (s *Service) BatchUnarchive(ctx context.Context, userID int, chatIDs []int) (BatchResult, error) {
	return s.batch(ctx, userID, chatIDs, func(ctx context.Context, chatID int) error {
		return s.Unarchive(ctx, chatID, userID)
	})
}

func (s *Service) BatchDelete(ctx context.Context, userID int, chatIDs []int) (BatchResult, error) {
	return s.batch(ctx, userID, chatIDs, func(ctx context.Context, chatID int) error {
		return s.Delete(ctx, chatID, userID)
	})
}

func (s *Service) BatchSetPinned(ctx context.Context, userID int, chatIDs []int, pinned bool) (BatchResult, error) {
	return s.batch(ctx, userID, chatIDs, func(ctx context.Context, chatID int) error {
		return s.chats.SetPinned(ctx, chatID, userID, pinned)
	})
}

func (s *Service) BatchMarkRead(ctx context.Context, userID int, chatIDs []int) (BatchResult, error) {
	return s.batch(ctx, userID, chatIDs, func(ctx context.Context, chatID int) error {
		_, err := s.messages.MarkRead(ctx, chatID, userID)
		return err
	})
}

// ListChats builds the caller's active or archived chat listing with members,
// last-message previews and unread counts.
func (s *Service) ListChats(ctx context.Context, userID int, state string) ([]models.ChatPreview, error) {
	rows, err := s.chats.ChatsByState(ctx, userID, state)
	if err != nil {
		return nil, fmt.Errorf("list %s chats user=%d: %w", state, userID, err)
	}

	previews := make([]models.ChatPreview, 0, len(rows))
	for _, row := range rows {
		preview, err := s.buildPreview(ctx, row, userID)
		if err != nil {
			log.Printf("visibility: preview chat=%d user=%d err=%v", row.ChatID, userID, err)
			continue
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

func (s *Service) buildPreview(ctx context.Context, row models.ChatVisibility, userID int) (models.ChatPreview, error) {
	chat, err := s.chats.GetChat(ctx, row.ChatID)
	if err != nil {
		return models.ChatPreview{}, err
	}
	members, err := s.chats.MemberProfiles(ctx, row.ChatID)
	if err != nil {
		return models.ChatPreview{}, err
	}
	unread, err := s.messages.UnreadCount(ctx, row.ChatID, userID)
	if err != nil {
		return models.ChatPreview{}, err
	}

	preview := models.ChatPreview{
		ChatID:      chat.ChatID,
		ChatType:    chat.ChatType,
		ChatName:    chat.ChatName,
		ChatImage:   chat.ChatImage,
		CreatedAt:   chat.CreatedAt,
		Members:     members,
		Pinned:      row.Pinned,
		UnreadCount: unread,
	}

	last, err := s.messages.LastVisibleMessage(ctx, row.ChatID, userID)
	if err == nil {
		ts := last.CreatedAt
		preview.LastMessage = &models.LastMessagePreview{
			MessageID:     last.MessageID,
			MessageType:   last.MessageType,
			PreviewText:   previewText(last),
			CreatedAt:     last.CreatedAt,
			Sender:        last.Sender,
			HasAttachment: len(last.Attachments) > 0,
		}
		preview.LastMessageTimestamp = &ts
	}
	return preview, nil
}

func previewText(msg models.FullMessage) string {
	if msg.MessageText != "" {
		return msg.MessageText
	}
	switch msg.MessageType {
	case models.MessageTypeImage:
		return "📷 Photo"
	case models.MessageTypeVideo:
		return "🎥 Video"
	case models.MessageTypeAudio:
		return "🎵 Audio"
	case models.MessageTypeDocument:
		return "📄 Document"
	case models.MessageTypeFile:
		return "📎 Attachment"
	default:
		return ""
	}
}

func (s *Service) invalidateViewer(ctx context.Context, chatID, userID int) {
	if err := s.msgCache.InvalidateUser(ctx, chatID, userID); err != nil {
		log.Printf("visibility: invalidate cache chat=%d user=%d err=%v", chatID, userID, err)
	}
}
