package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrStatusNotFound  = errors.New("message status not found")
)

// MessageRepository abstracts message, per-recipient status/visibility and
// attachment persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message, memberIDs []int, att *models.Attachment) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	GetFullMessage(ctx context.Context, messageID int) (models.FullMessage, error)
	VisibleMessages(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, error)
	LastVisibleMessage(ctx context.Context, chatID, userID int) (models.FullMessage, error)

	UpdateStatus(ctx context.Context, messageID, userID int, status string) (bool, error)
	UpdateText(ctx context.Context, messageID int, text string) error
	MarkRead(ctx context.Context, chatID, userID int) (int64, error)
	UnreadCount(ctx context.Context, chatID, userID int) (int, error)

	HideForUser(ctx context.Context, messageID, userID int) error
	HideAllForUserInChat(ctx context.Context, chatID, userID int) error
	UnhideAllForUserInChat(ctx context.Context, chatID, userID int) error
	VisibleCount(ctx context.Context, messageID int) (int, error)

	GetAttachments(ctx context.Context, messageID int) ([]models.Attachment, error)
	DeleteMessage(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage inserts a message with one status row and one visibility row
// per chat member, plus an optional attachment, in a single transaction. The
// sender's status row starts at sent, everyone else's at delivered.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message, memberIDs []int, att *models.Attachment) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, message_text, message_type, reply_to_id)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING message_id, chat_id, sender_id, message_text, message_type, reply_to_id, edited, created_at, updated_at`,
		msg.ChatID, msg.SenderID, msg.MessageText, msg.MessageType, msg.ReplyToID).StructScan(&msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	for _, memberID := range memberIDs {
		status := models.StatusDelivered
		if memberID == msg.SenderID {
			status = models.StatusSent
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_status (message_id, user_id, status) VALUES ($1, $2, $3)`,
			msg.MessageID, memberID, status); err != nil {
			return models.Message{}, fmt.Errorf("insert status user=%d: %w", memberID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_visibility (message_id, user_id, is_visible) VALUES ($1, $2, TRUE)`,
			msg.MessageID, memberID); err != nil {
			return models.Message{}, fmt.Errorf("insert visibility user=%d: %w", memberID, err)
		}
	}

	if att != nil {
		if err := tx.QueryRowxContext(ctx,
			`INSERT INTO attachments (message_id, file_url, original_filename, file_type, file_size)
             VALUES ($1, $2, $3, $4, $5) RETURNING attachment_id`,
			msg.MessageID, att.FileURL, att.OriginalFilename, att.FileType, att.FileSize).
			Scan(&att.AttachmentID); err != nil {
			return models.Message{}, fmt.Errorf("insert attachment: %w", err)
		}
		att.MessageID = msg.MessageID
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit message tx: %w", err)
	}
	return msg, nil
}

// GetMessage retrieves a single message row.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT message_id, chat_id, sender_id, message_text, message_type, reply_to_id, edited, created_at, updated_at
         FROM messages WHERE message_id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetFullMessage hydrates a message with sender, chat, attachments, statuses
// and the reply reference.
func (r *MessageRepo) GetFullMessage(ctx context.Context, messageID int) (models.FullMessage, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.FullMessage{}, err
	}
	return r.hydrate(ctx, msg)
}

func (r *MessageRepo) hydrate(ctx context.Context, msg models.Message) (models.FullMessage, error) {
	full := models.FullMessage{Message: msg}

	if err := r.db.GetContext(ctx, &full.Sender,
		`SELECT user_id, username, full_name, profile_pic FROM users WHERE user_id=$1`, msg.SenderID); err != nil {
		return models.FullMessage{}, fmt.Errorf("load sender %d: %w", msg.SenderID, err)
	}
	if err := r.db.GetContext(ctx, &full.Chat,
		`SELECT chat_id, chat_type, chat_name, chat_image, FALSE AS pinned, created_at
         FROM chats WHERE chat_id=$1`, msg.ChatID); err != nil {
		return models.FullMessage{}, fmt.Errorf("load chat %d: %w", msg.ChatID, err)
	}
	if err := r.db.SelectContext(ctx, &full.Attachments,
		`SELECT attachment_id, message_id, file_url, original_filename, file_type, file_size
         FROM attachments WHERE message_id=$1 ORDER BY attachment_id`, msg.MessageID); err != nil {
		return models.FullMessage{}, fmt.Errorf("load attachments: %w", err)
	}
	if err := r.db.SelectContext(ctx, &full.Statuses,
		`SELECT message_id, user_id, status, updated_at FROM message_status
         WHERE message_id=$1 ORDER BY user_id`, msg.MessageID); err != nil {
		return models.FullMessage{}, fmt.Errorf("load statuses: %w", err)
	}

	if msg.ReplyToID != nil {
		var ref models.MessageRef
		err := r.db.QueryRowxContext(ctx,
			`SELECT m.message_id, m.message_text, u.user_id, u.username, u.full_name, u.profile_pic
             FROM messages m JOIN users u ON u.user_id = m.sender_id
             WHERE m.message_id=$1`, *msg.ReplyToID).
			Scan(&ref.MessageID, &ref.MessageText,
				&ref.Sender.UserID, &ref.Sender.Username, &ref.Sender.FullName, &ref.Sender.ProfilePic)
		if err == nil {
			full.ReplyTo = &ref
		} else if !errors.Is(err, sql.ErrNoRows) {
			return models.FullMessage{}, fmt.Errorf("load reply ref: %w", err)
		}
	}
	return full, nil
}

// VisibleMessages returns up to limit newest messages the user can still see
// in a chat, oldest first.
func (r *MessageRepo) VisibleMessages(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.message_id, m.chat_id, m.sender_id, m.message_text, m.message_type, m.reply_to_id, m.edited, m.created_at, m.updated_at
         FROM messages m
         JOIN message_visibility mv ON mv.message_id = m.message_id AND mv.user_id=$2
         WHERE m.chat_id=$1 AND mv.is_visible = TRUE
         ORDER BY m.created_at DESC LIMIT $3`, chatID, userID, limit)
	if err != nil {
		return nil, err
	}

	full := make([]models.FullMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		h, err := r.hydrate(ctx, msgs[i])
		if err != nil {
			return nil, err
		}
		full = append(full, h)
	}
	return full, nil
}

// LastVisibleMessage returns the newest message the user can see in a chat.
func (r *MessageRepo) LastVisibleMessage(ctx context.Context, chatID, userID int) (models.FullMessage, error) {
	msgs, err := r.VisibleMessages(ctx, chatID, userID, 1)
	if err != nil {
		return models.FullMessage{}, err
	}
	if len(msgs) == 0 {
		return models.FullMessage{}, ErrMessageNotFound
	}
	return msgs[0], nil
}

// UpdateStatus advances a recipient's delivery state. Transitions never move
// backwards; a lower or equal status is ignored and reported as not updated.
func (r *MessageRepo) UpdateStatus(ctx context.Context, messageID, userID int, status string) (bool, error) {
	var current string
	err := r.db.GetContext(ctx, &current,
		`SELECT status FROM message_status WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrStatusNotFound
	}
	if err != nil {
		return false, err
	}
	if models.StatusRank(status) <= models.StatusRank(current) {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE message_status SET status=$3, updated_at=NOW()
         WHERE message_id=$1 AND user_id=$2
         AND CASE status WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 ELSE 2 END
           < CASE $3 WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 ELSE 2 END`,
		messageID, userID, status)
	return err == nil, err
}

// UpdateText persists an edit and flags the message as edited.
func (r *MessageRepo) UpdateText(ctx context.Context, messageID int, text string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET message_text=$2, edited=TRUE, updated_at=NOW() WHERE message_id=$1`,
		messageID, text)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkRead promotes every delivered status row the user holds in a chat to
// read and returns how many rows advanced.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, userID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_status ms SET status='read', updated_at=NOW()
         FROM messages m
         WHERE m.message_id = ms.message_id AND m.chat_id=$1
           AND ms.user_id=$2 AND ms.status='delivered'`, chatID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts delivered-not-read messages for the user in a chat.
func (r *MessageRepo) UnreadCount(ctx context.Context, chatID, userID int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM message_status ms
         JOIN messages m ON m.message_id = ms.message_id
         WHERE m.chat_id=$1 AND ms.user_id=$2 AND ms.status='delivered'`, chatID, userID)
	return n, err
}

// HideForUser flips one recipient's visibility row for a message.
func (r *MessageRepo) HideForUser(ctx context.Context, messageID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_visibility SET is_visible=FALSE, hidden_at=NOW()
         WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// HideAllForUserInChat hides every current message of a chat from one user.
func (r *MessageRepo) HideAllForUserInChat(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE message_visibility mv SET is_visible=FALSE, hidden_at=NOW()
         FROM messages m
         WHERE m.message_id = mv.message_id AND m.chat_id=$1 AND mv.user_id=$2 AND mv.is_visible=TRUE`,
		chatID, userID)
	return err
}

// UnhideAllForUserInChat restores a user's hidden messages in a chat, used on
// unarchive.
func (r *MessageRepo) UnhideAllForUserInChat(ctx context.Context, chatID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE message_visibility mv SET is_visible=TRUE, hidden_at=NULL
         FROM messages m
         WHERE m.message_id = mv.message_id AND m.chat_id=$1 AND mv.user_id=$2 AND mv.is_visible=FALSE`,
		chatID, userID)
	return err
}

// VisibleCount reports how many recipients can still see the message.
func (r *MessageRepo) VisibleCount(ctx context.Context, messageID int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM message_visibility WHERE message_id=$1 AND is_visible=TRUE`, messageID)
	return n, err
}

// GetAttachments lists a message's attachments.
func (r *MessageRepo) GetAttachments(ctx context.Context, messageID int) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := r.db.SelectContext(ctx, &atts,
		`SELECT attachment_id, message_id, file_url, original_filename, file_type, file_size
         FROM attachments WHERE message_id=$1 ORDER BY attachment_id`, messageID)
	return atts, err
}

// DeleteMessage hard-deletes a message. Status, visibility and attachment rows
// go with it through the foreign keys.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE message_id=$1`, messageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}
