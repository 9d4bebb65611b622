package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/mocks"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

func testUser(id int) models.User {
	return models.User{UserID: id, Username: "alice", FullName: "Alice A", StatusMessage: "hey"}
}

func TestRegisterReportsFirstConnection(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(cache.NewMemoryStore(), new(mocks.UserRepositoryMock))

	first, err := r.Register(ctx, "conn-1", testUser(1))
	require.NoError(t, err)
	assert.True(t, first)

	second, err := r.Register(ctx, "conn-2", testUser(1))
	require.NoError(t, err)
	assert.False(t, second, "a second device must not re-announce the user")

	online, err := r.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestDisconnectTearsDownAndPersistsOffline(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	r := NewRegistry(cache.NewMemoryStore(), users)

	_, err := r.Register(ctx, "conn-1", testUser(7))
	require.NoError(t, err)

	users.On("SetOnline", mock.Anything, 7, false, mock.Anything).Return(nil).Once()

	userID, err := r.Disconnect(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, 7, userID)

	online, err := r.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
	users.AssertExpectations(t)
}

func TestDisconnectContinuesPastOfflineWriteFailure(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	r := NewRegistry(cache.NewMemoryStore(), users)

	_, err := r.Register(ctx, "conn-1", testUser(7))
	require.NoError(t, err)

	users.On("SetOnline", mock.Anything, 7, false, mock.Anything).Return(assert.AnError).Once()

	userID, err := r.Disconnect(ctx, "conn-1")
	require.NoError(t, err, "a failed offline write must not block teardown")
	assert.Equal(t, 7, userID)

	online, err := r.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestDisconnectUnknownConnIsANoop(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	r := NewRegistry(cache.NewMemoryStore(), users)

	userID, err := r.Disconnect(ctx, "never-registered")
	require.NoError(t, err)
	assert.Zero(t, userID)
	users.AssertNotCalled(t, "SetOnline", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnlineUsersListsEntries(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(cache.NewMemoryStore(), new(mocks.UserRepositoryMock))

	_, err := r.Register(ctx, "conn-1", testUser(1))
	require.NoError(t, err)
	_, err = r.Register(ctx, "conn-2", models.User{UserID: 2, Username: "bob", FullName: "Bob B"})
	require.NoError(t, err)

	require.NoError(t, r.Refresh(ctx, 1, "busy"))

	entries, err := r.OnlineUsers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[int]Entry{}
	for _, e := range entries {
		byID[e.UserID] = e
	}
	assert.Equal(t, "alice", byID[1].Username)
	assert.Equal(t, "busy", byID[1].Status)
	assert.Equal(t, "conn-2", byID[2].ConnID)
}
