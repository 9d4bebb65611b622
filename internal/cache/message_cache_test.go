package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

// countingFetcher serves canned messages and counts database reads.
type countingFetcher struct {
	msgs  []models.FullMessage
	calls int
}

func (f *countingFetcher) VisibleMessages(_ context.Context, _, _, _ int) ([]models.FullMessage, error) {
	f.calls++
	return f.msgs, nil
}

func fullMessage(id, chatID int) models.FullMessage {
	return models.FullMessage{
		Message: models.Message{
			MessageID:   id,
			ChatID:      chatID,
			SenderID:    1,
			MessageText: "hello " + strconv.Itoa(id),
			MessageType: models.MessageTypeText,
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
		},
		Sender: models.UserProfile{UserID: 1, Username: "alice"},
	}
}

func TestRecentMissThenHit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{fullMessage(1, 5), fullMessage(2, 5)}}
	c := NewMessageCache(store, fetcher)

	msgs, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, fetcher.calls)

	msgs, err = c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, fetcher.calls, "second read must come from the cache")
	assert.Equal(t, "hello 1", msgs[0].MessageText)
}

func TestRecentIncompleteListIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{
		fullMessage(1, 5), fullMessage(2, 5), fullMessage(3, 5), fullMessage(4, 5), fullMessage(5, 5),
	}}
	c := NewMessageCache(store, fetcher)

	_, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	// Expire two of five entries; 3/5 resolvable is below the 0.8 threshold.
	require.NoError(t, store.Del(ctx, messageKey(1), messageKey(2)))

	msgs, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls, "decayed list must be rebuilt from the database")
	assert.Len(t, msgs, 5)
}

func TestRecentToleratesSmallDecay(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{
		fullMessage(1, 5), fullMessage(2, 5), fullMessage(3, 5), fullMessage(4, 5), fullMessage(5, 5),
	}}
	c := NewMessageCache(store, fetcher)

	_, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)

	// One lost entry of five keeps the list at the 0.8 threshold.
	require.NoError(t, store.Del(ctx, messageKey(3)))

	msgs, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Len(t, msgs, 4)
}

func TestAddInvalidatesViewerLists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{fullMessage(1, 5)}}
	c := NewMessageCache(store, fetcher)

	_, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	require.NoError(t, c.Add(ctx, fullMessage(2, 5)))

	fetcher.msgs = append(fetcher.msgs, fullMessage(2, 5))
	msgs, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls, "a new message must force a list rebuild")
	assert.Len(t, msgs, 2)
}

func TestRemoveDropsEntryAndLists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{fullMessage(1, 5)}}
	c := NewMessageCache(store, fetcher)

	_, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, 1, 5))

	_, ok, err := store.Get(ctx, messageKey(1))
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.LRange(ctx, chatListKey(5, 9), 0, -1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestInvalidateUserLeavesOtherViewers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fetcher := &countingFetcher{msgs: []models.FullMessage{fullMessage(1, 5)}}
	c := NewMessageCache(store, fetcher)

	_, err := c.Recent(ctx, 5, 9, 50)
	require.NoError(t, err)
	_, err = c.Recent(ctx, 5, 10, 50)
	require.NoError(t, err)

	require.NoError(t, c.InvalidateUser(ctx, 5, 9))

	ids, err := store.LRange(ctx, chatListKey(5, 9), 0, -1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = store.LRange(ctx, chatListKey(5, 10), 0, -1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
