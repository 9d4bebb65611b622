package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user rows, presence persistence and the block /
// friend read paths.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetProfile(ctx context.Context, userID int) (models.UserProfile, error)
	SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error
	UpdateStatusMessage(ctx context.Context, userID int, status string) error
	IsBlockedBetween(ctx context.Context, userID, otherID int) (bool, error)
	Friends(ctx context.Context, userID int) ([]int, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a full user row.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, username, email, full_name, phone, profile_pic, status_message, bio, is_online, last_seen, created_at
         FROM users WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// GetProfile fetches the public profile subset.
func (r *UserRepo) GetProfile(ctx context.Context, userID int) (models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.GetContext(ctx, &p,
		`SELECT user_id, username, full_name, profile_pic FROM users WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrUserNotFound
	}
	return p, err
}

// SetOnline persists the presence flag and last-seen timestamp.
func (r *UserRepo) SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_online=$2, last_seen=$3 WHERE user_id=$1`, userID, online, lastSeen)
	return err
}

// UpdateStatusMessage persists a user's status line.
func (r *UserRepo) UpdateStatusMessage(ctx context.Context, userID int, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status_message=$2 WHERE user_id=$1`, userID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsBlockedBetween reports whether either user has blocked the other.
func (r *UserRepo) IsBlockedBetween(ctx context.Context, userID, otherID int) (bool, error) {
	var blocked bool
	err := r.db.GetContext(ctx, &blocked,
		`SELECT EXISTS(SELECT 1 FROM blocked_users
         WHERE (user_id=$1 AND blocked_user_id=$2) OR (user_id=$2 AND blocked_user_id=$1))`,
		userID, otherID)
	return blocked, err
}

// Friends returns the ids of the user's accepted friends.
func (r *UserRepo) Friends(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END
         FROM friendships
         WHERE (user1_id=$1 OR user2_id=$1) AND status='accepted'
         ORDER BY 1`, userID)
	return ids, err
}
