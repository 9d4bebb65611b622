package presence

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
)

const (
	// EntryTTL reclaims presence keys for connections that never cleaned up.
	EntryTTL = 24 * time.Hour
	// offlineWriteTimeout bounds the database write on disconnect so a slow
	// database cannot stall connection teardown.
	offlineWriteTimeout = 5 * time.Second
)

// Entry is one user's live-presence hash.
type Entry struct {
	UserID     int    `json:"user_id"`
	ConnID     string `json:"conn_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	ProfilePic string `json:"profile_pic,omitempty"`
	Status     string `json:"status,omitempty"`
	LastSeen   string `json:"last_seen"`
}

// Registry tracks live connections in the cache tier. Presence is kept per
// connection, as a last-writer-wins hash per user: a second device overwrites
// the conn id and the next disconnect tears the entry down. Reference-counted
// multi-device presence was deliberately not introduced.
type Registry struct {
	store cache.Store
	users repositories.UserRepository
}

func NewRegistry(store cache.Store, users repositories.UserRepository) *Registry {
	return &Registry{store: store, users: users}
}

func userKey(userID int) string {
	return fmt.Sprintf("active:user:%d", userID)
}

func connKey(connID string) string {
	return fmt.Sprintf("socket:user:%s", connID)
}

// Register records a connection for a user and reports whether this is the
// user's first live connection, which gates the user_online broadcast.
func (r *Registry) Register(ctx context.Context, connID string, user models.User) (bool, error) {
	already, err := r.store.Exists(ctx, userKey(user.UserID))
	if err != nil {
		return false, fmt.Errorf("check presence user=%d: %w", user.UserID, err)
	}

	fields := map[string]string{
		"conn_id":     connID,
		"username":    user.Username,
		"full_name":   user.FullName,
		"profile_pic": user.ProfilePic,
		"status":      user.StatusMessage,
		"last_seen":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.store.HSet(ctx, userKey(user.UserID), fields); err != nil {
		return false, fmt.Errorf("write presence user=%d: %w", user.UserID, err)
	}
	if err := r.store.Expire(ctx, userKey(user.UserID), EntryTTL); err != nil {
		return false, fmt.Errorf("expire presence user=%d: %w", user.UserID, err)
	}
	if err := r.store.Set(ctx, connKey(connID), strconv.Itoa(user.UserID), EntryTTL); err != nil {
		return false, fmt.Errorf("write reverse mapping conn=%s: %w", connID, err)
	}
	return !already, nil
}

// Refresh updates the status line on a live presence entry.
func (r *Registry) Refresh(ctx context.Context, userID int, status string) error {
	return r.store.HSet(ctx, userKey(userID), map[string]string{
		"status":    status,
		"last_seen": time.Now().UTC().Format(time.RFC3339),
	})
}

// Disconnect resolves the connection's user, persists offline state under a
// bounded deadline and removes both presence keys. The offline write is best
// effort; a slow or failed write is logged and the teardown continues.
func (r *Registry) Disconnect(ctx context.Context, connID string) (int, error) {
	raw, ok, err := r.store.Get(ctx, connKey(connID))
	if err != nil {
		return 0, fmt.Errorf("resolve conn=%s: %w", connID, err)
	}
	if !ok {
		return 0, nil
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bad reverse mapping conn=%s value=%q", connID, raw)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), offlineWriteTimeout)
	defer cancel()
	if err := r.users.SetOnline(writeCtx, userID, false, time.Now().UTC()); err != nil {
		log.Printf("presence: offline write failed user=%d err=%v", userID, err)
	}

	if err := r.store.Del(ctx, userKey(userID), connKey(connID)); err != nil {
		return userID, fmt.Errorf("drop presence keys user=%d: %w", userID, err)
	}
	return userID, nil
}

// OnlineUsers lists every live presence entry.
func (r *Registry) OnlineUsers(ctx context.Context) ([]Entry, error) {
	keys, err := cache.ScanAll(ctx, r.store, "active:user:*")
	if err != nil {
		return nil, fmt.Errorf("scan presence keys: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		userID, err := strconv.Atoi(strings.TrimPrefix(key, "active:user:"))
		if err != nil {
			continue
		}
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		entries = append(entries, Entry{
			UserID:     userID,
			ConnID:     fields["conn_id"],
			Username:   fields["username"],
			FullName:   fields["full_name"],
			ProfilePic: fields["profile_pic"],
			Status:     fields["status"],
			LastSeen:   fields["last_seen"],
		})
	}
	return entries, nil
}

// IsOnline reports whether a user has a live presence entry.
func (r *Registry) IsOnline(ctx context.Context, userID int) (bool, error) {
	return r.store.Exists(ctx, userKey(userID))
}
