package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
)

const (
	// ProfileTTL bounds a cached user profile.
	ProfileTTL = time.Hour
	// MembershipTTL bounds chat-membership and friend-list caches.
	MembershipTTL = 30 * time.Minute
)

// UserFetcher is the database read-through behind the user cache.
type UserFetcher interface {
	GetProfile(ctx context.Context, userID int) (models.UserProfile, error)
	MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
	Friends(ctx context.Context, userID int) ([]int, error)
}

// UserCache keeps profile hashes, per-user chat memberships and friend lists.
type UserCache struct {
	store   Store
	fetcher UserFetcher
}

func NewUserCache(store Store, fetcher UserFetcher) *UserCache {
	return &UserCache{store: store, fetcher: fetcher}
}

func profileKey(userID int) string {
	return fmt.Sprintf("user:profile:%d", userID)
}

func userChatsKey(userID int) string {
	return fmt.Sprintf("user:chats:%d", userID)
}

func memberKey(chatID, userID int) string {
	return fmt.Sprintf("chat:%d:member:%d", chatID, userID)
}

func friendsKey(userID int) string {
	return fmt.Sprintf("user:friends:%d", userID)
}

// Profile returns a user's public profile, reading through to the database on
// a miss.
func (c *UserCache) Profile(ctx context.Context, userID int) (models.UserProfile, error) {
	raw, ok, err := c.store.Get(ctx, profileKey(userID))
	if err == nil && ok {
		var p models.UserProfile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			observability.CacheHits.WithLabelValues("profiles").Inc()
			return p, nil
		}
	}
	observability.CacheMisses.WithLabelValues("profiles").Inc()

	p, err := c.fetcher.GetProfile(ctx, userID)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("fetch profile %d: %w", userID, err)
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = c.store.Set(ctx, profileKey(userID), string(raw), ProfileTTL)
	}
	return p, nil
}

// MemberChats returns the chats a user belongs to, caching the listing and a
// per-chat membership marker used by fast membership checks.
func (c *UserCache) MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	raw, ok, err := c.store.Get(ctx, userChatsKey(userID))
	if err == nil && ok {
		var chats []models.ChatSummary
		if err := json.Unmarshal([]byte(raw), &chats); err == nil {
			observability.CacheHits.WithLabelValues("memberships").Inc()
			return chats, nil
		}
	}
	observability.CacheMisses.WithLabelValues("memberships").Inc()

	chats, err := c.fetcher.MemberChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch chats user=%d: %w", userID, err)
	}
	if raw, err := json.Marshal(chats); err == nil {
		_ = c.store.Set(ctx, userChatsKey(userID), string(raw), MembershipTTL)
	}
	for _, chat := range chats {
		_ = c.store.Set(ctx, memberKey(chat.ChatID, userID), "1", MembershipTTL)
	}
	return chats, nil
}

// Friends resolves a user's accepted friends to profiles via the profile
// cache.
func (c *UserCache) Friends(ctx context.Context, userID int) ([]models.UserProfile, error) {
	var ids []int

	raw, ok, err := c.store.Get(ctx, friendsKey(userID))
	if err == nil && ok && json.Unmarshal([]byte(raw), &ids) == nil {
		observability.CacheHits.WithLabelValues("friends").Inc()
	} else {
		observability.CacheMisses.WithLabelValues("friends").Inc()
		ids, err = c.fetcher.Friends(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("fetch friends user=%d: %w", userID, err)
		}
		if raw, err := json.Marshal(ids); err == nil {
			_ = c.store.Set(ctx, friendsKey(userID), string(raw), MembershipTTL)
		}
	}

	profiles := make([]models.UserProfile, 0, len(ids))
	for _, id := range ids {
		p, err := c.Profile(ctx, id)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// InvalidateProfile drops a cached profile after a profile or status change.
func (c *UserCache) InvalidateProfile(ctx context.Context, userID int) error {
	return c.store.Del(ctx, profileKey(userID))
}

// InvalidateChats drops a user's membership caches after joining or leaving a
// chat.
func (c *UserCache) InvalidateChats(ctx context.Context, userID int) error {
	keys, err := ScanAll(ctx, c.store, fmt.Sprintf("chat:*:member:%d", userID))
	if err != nil {
		return fmt.Errorf("scan membership markers user=%d: %w", userID, err)
	}
	keys = append(keys, userChatsKey(userID))
	return c.store.Del(ctx, keys...)
}

// InvalidateFriends drops a user's friend list.
func (c *UserCache) InvalidateFriends(ctx context.Context, userID int) error {
	return c.store.Del(ctx, friendsKey(userID))
}

// InvalidateAll clears every cache tied to one user.
func (c *UserCache) InvalidateAll(ctx context.Context, userID int) error {
	if err := c.InvalidateProfile(ctx, userID); err != nil {
		return err
	}
	if err := c.InvalidateChats(ctx, userID); err != nil {
		return err
	}
	return c.InvalidateFriends(ctx, userID)
}
