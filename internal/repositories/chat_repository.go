package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrNotMember    = errors.New("user is not a chat member")
)

// ChatRepository abstracts chat, membership and per-user visibility
// persistence.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
	MemberRole(ctx context.Context, chatID, userID int) (string, error)
	MemberIDs(ctx context.Context, chatID int) ([]int, error)
	MemberProfiles(ctx context.Context, chatID int) ([]models.UserProfile, error)
	MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error)

	GetVisibility(ctx context.Context, chatID, userID int) (models.ChatVisibility, error)
	Archive(ctx context.Context, chatID, userID int) error
	Unarchive(ctx context.Context, chatID, userID int) error
	SoftDelete(ctx context.Context, chatID, userID int) error
	SetPinned(ctx context.Context, chatID, userID int, pinned bool) error
	UnhideForNewActivity(ctx context.Context, chatID int) error
	ChatsByState(ctx context.Context, userID int, state string) ([]models.ChatVisibility, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT chat_id, chat_type, chat_name, chat_image, private_key, created_at FROM chats WHERE chat_id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsMember checks whether a user belongs to the chat.
func (r *ChatRepo) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// MemberRole returns the user's role in the chat, or ErrNotMember.
func (r *ChatRepo) MemberRole(ctx context.Context, chatID, userID int) (string, error) {
	var role string
	err := r.db.GetContext(ctx, &role,
		`SELECT role FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotMember
	}
	return role, err
}

// MemberIDs lists the user ids belonging to a chat.
func (r *ChatRepo) MemberIDs(ctx context.Context, chatID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM chat_members WHERE chat_id=$1 ORDER BY user_id`, chatID)
	return ids, err
}

// MemberProfiles lists the public profiles of a chat's members.
func (r *ChatRepo) MemberProfiles(ctx context.Context, chatID int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT u.user_id, u.username, u.full_name, u.profile_pic
         FROM chat_members cm JOIN users u ON u.user_id = cm.user_id
         WHERE cm.chat_id=$1 ORDER BY u.user_id`, chatID)
	return profiles, err
}

// MemberChats returns every chat the user belongs to, pinned state included.
func (r *ChatRepo) MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	var chats []models.ChatSummary
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.chat_id, c.chat_type, c.chat_name, c.chat_image,
                COALESCE(cv.pinned, FALSE) AS pinned, c.created_at
         FROM chat_members cm
         JOIN chats c ON c.chat_id = cm.chat_id
         LEFT JOIN chat_visibility cv ON cv.chat_id = c.chat_id AND cv.user_id = cm.user_id
         WHERE cm.user_id=$1
         ORDER BY c.created_at DESC`, userID)
	return chats, err
}

// GetVisibility returns the user's visibility row for a chat. A missing row
// reads as visible and unarchived.
func (r *ChatRepo) GetVisibility(ctx context.Context, chatID, userID int) (models.ChatVisibility, error) {
	var v models.ChatVisibility
	err := r.db.GetContext(ctx, &v,
		`SELECT chat_id, user_id, is_visible, is_archived, pinned, archived_at, hidden_at
         FROM chat_visibility WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatVisibility{ChatID: chatID, UserID: userID, IsVisible: true}, nil
	}
	return v, err
}

// Archive moves the chat to the archived state for the user.
func (r *ChatRepo) Archive(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_visibility (chat_id, user_id, is_visible, is_archived, archived_at)
         VALUES ($1, $2, FALSE, TRUE, NOW())
         ON CONFLICT (chat_id, user_id)
         DO UPDATE SET is_visible = FALSE, is_archived = TRUE, archived_at = NOW()`, chatID, userID)
	return err
}

// Unarchive returns the chat to the active state for the user.
func (r *ChatRepo) Unarchive(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_visibility (chat_id, user_id, is_visible, is_archived, archived_at)
         VALUES ($1, $2, TRUE, FALSE, NULL)
         ON CONFLICT (chat_id, user_id)
         DO UPDATE SET is_visible = TRUE, is_archived = FALSE, archived_at = NULL`, chatID, userID)
	return err
}

// SoftDelete hides the chat from the user's listings without touching other
// members.
func (r *ChatRepo) SoftDelete(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_visibility (chat_id, user_id, is_visible, is_archived, hidden_at)
         VALUES ($1, $2, FALSE, FALSE, NOW())
         ON CONFLICT (chat_id, user_id)
         DO UPDATE SET is_visible = FALSE, is_archived = FALSE, hidden_at = NOW()`, chatID, userID)
	return err
}

// SetPinned flips the pinned flag for the user's listing.
func (r *ChatRepo) SetPinned(ctx context.Context, chatID, userID int, pinned bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_visibility (chat_id, user_id, pinned) VALUES ($1, $2, $3)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET pinned = EXCLUDED.pinned`, chatID, userID, pinned)
	return err
}

// UnhideForNewActivity restores deleted (but not archived) visibility rows
// when a chat receives a new message.
func (r *ChatRepo) UnhideForNewActivity(ctx context.Context, chatID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_visibility SET is_visible = TRUE, hidden_at = NULL
         WHERE chat_id=$1 AND is_visible = FALSE AND is_archived = FALSE`, chatID)
	return err
}

// ChatsByState lists the user's visibility rows in the requested state.
func (r *ChatRepo) ChatsByState(ctx context.Context, userID int, state string) ([]models.ChatVisibility, error) {
	var query string
	switch state {
	case models.ChatStateArchived:
		query = `SELECT cv.chat_id, cv.user_id, cv.is_visible, cv.is_archived, cv.pinned, cv.archived_at, cv.hidden_at
             FROM chat_visibility cv
             JOIN chat_members cm ON cm.chat_id = cv.chat_id AND cm.user_id = cv.user_id
             WHERE cv.user_id=$1 AND cv.is_visible = FALSE AND cv.is_archived = TRUE`
	case models.ChatStateActive:
		query = `SELECT cm.chat_id, cm.user_id,
                    COALESCE(cv.is_visible, TRUE) AS is_visible,
                    COALESCE(cv.is_archived, FALSE) AS is_archived,
                    COALESCE(cv.pinned, FALSE) AS pinned,
                    cv.archived_at, cv.hidden_at
             FROM chat_members cm
             LEFT JOIN chat_visibility cv ON cv.chat_id = cm.chat_id AND cv.user_id = cm.user_id
             WHERE cm.user_id=$1 AND COALESCE(cv.is_visible, TRUE) = TRUE`
	default:
		return nil, errors.New("unsupported chat state: " + state)
	}

	var rows []models.ChatVisibility
	err := r.db.SelectContext(ctx, &rows, query, userID)
	return rows, err
}
