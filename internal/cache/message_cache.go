package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
)

const (
	// MessageTTL bounds a cached message entry.
	MessageTTL = time.Hour
	// ChatListTTL bounds a per-viewer recent-message list.
	ChatListTTL = 30 * time.Minute
	// RecentCacheSize caps how many message ids a viewer list holds.
	RecentCacheSize = 100

	// ListCompletenessRatio is the fraction of list ids that must still resolve
	// to cached entries for a list read to count as a hit. Below it the whole
	// read is treated as a miss and rebuilt from the database. Tunable
	// heuristic; entries expire faster than lists so partial decay is normal.
	ListCompletenessRatio = 0.8
)

// MessageFetcher is the database read-through used on cache misses.
type MessageFetcher interface {
	VisibleMessages(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, error)
}

// MessageCache keeps hot messages and per-viewer recent lists. All methods are
// best effort: a failed cache interaction degrades to the database, never to an
// error the caller must handle.
type MessageCache struct {
	store   Store
	fetcher MessageFetcher
}

func NewMessageCache(store Store, fetcher MessageFetcher) *MessageCache {
	return &MessageCache{store: store, fetcher: fetcher}
}

func messageKey(messageID int) string {
	return fmt.Sprintf("message:%d", messageID)
}

func chatListKey(chatID, userID int) string {
	return fmt.Sprintf("chat:messages:%d:user:%d", chatID, userID)
}

// Add caches a freshly delivered message and invalidates every viewer's list
// for its chat so the next read rebuilds with the new tail.
func (c *MessageCache) Add(ctx context.Context, msg models.FullMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %d: %w", msg.MessageID, err)
	}
	if err := c.store.Set(ctx, messageKey(msg.MessageID), string(raw), MessageTTL); err != nil {
		return fmt.Errorf("cache message %d: %w", msg.MessageID, err)
	}
	return c.InvalidateChat(ctx, msg.ChatID)
}

// Remove drops a message entry and invalidates its chat's viewer lists.
func (c *MessageCache) Remove(ctx context.Context, messageID, chatID int) error {
	if err := c.store.Del(ctx, messageKey(messageID)); err != nil {
		return fmt.Errorf("drop message %d: %w", messageID, err)
	}
	return c.InvalidateChat(ctx, chatID)
}

// InvalidateChat removes every viewer's recent list for a chat.
func (c *MessageCache) InvalidateChat(ctx context.Context, chatID int) error {
	keys, err := ScanAll(ctx, c.store, fmt.Sprintf("chat:messages:%d:user:*", chatID))
	if err != nil {
		return fmt.Errorf("scan chat %d lists: %w", chatID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...)
}

// InvalidateUser removes a single viewer's recent list for a chat.
func (c *MessageCache) InvalidateUser(ctx context.Context, chatID, userID int) error {
	return c.store.Del(ctx, chatListKey(chatID, userID))
}

// Recent returns up to limit recent messages visible to one viewer, newest
// last. The cached list is trusted only when enough of its ids still resolve;
// otherwise the viewer's window is rebuilt from the database.
func (c *MessageCache) Recent(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, error) {
	if limit <= 0 || limit > RecentCacheSize {
		limit = RecentCacheSize
	}

	msgs, ok := c.readCached(ctx, chatID, userID, limit)
	if ok {
		observability.CacheHits.WithLabelValues("messages").Inc()
		return msgs, nil
	}
	observability.CacheMisses.WithLabelValues("messages").Inc()

	fresh, err := c.fetcher.VisibleMessages(ctx, chatID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch visible messages chat=%d user=%d: %w", chatID, userID, err)
	}
	c.repopulate(ctx, chatID, userID, fresh)
	return fresh, nil
}

func (c *MessageCache) readCached(ctx context.Context, chatID, userID, limit int) ([]models.FullMessage, bool) {
	ids, err := c.store.LRange(ctx, chatListKey(chatID, userID), int64(-limit), -1)
	if err != nil || len(ids) == 0 {
		return nil, false
	}

	msgs := make([]models.FullMessage, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		raw, ok, err := c.store.Get(ctx, messageKey(n))
		if err != nil || !ok {
			continue
		}
		var msg models.FullMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}

	if float64(len(msgs)) < float64(len(ids))*ListCompletenessRatio {
		return nil, false
	}
	return msgs, true
}

func (c *MessageCache) repopulate(ctx context.Context, chatID, userID int, msgs []models.FullMessage) {
	listKey := chatListKey(chatID, userID)
	if err := c.store.Del(ctx, listKey); err != nil {
		log.Printf("message cache: reset list chat=%d user=%d err=%v", chatID, userID, err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	ids := make([]string, len(msgs))
	for i, msg := range msgs {
		ids[i] = strconv.Itoa(msg.MessageID)
		raw, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.store.Set(ctx, messageKey(msg.MessageID), string(raw), MessageTTL); err != nil {
			log.Printf("message cache: store message=%d err=%v", msg.MessageID, err)
		}
	}
	if _, err := c.store.RPush(ctx, listKey, ids...); err != nil {
		log.Printf("message cache: rebuild list chat=%d user=%d err=%v", chatID, userID, err)
		return
	}
	if err := c.store.Expire(ctx, listKey, ChatListTTL); err != nil {
		log.Printf("message cache: expire list chat=%d user=%d err=%v", chatID, userID, err)
	}
}
