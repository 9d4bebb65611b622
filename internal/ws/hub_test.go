package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub()
	conn := &Conn{}

	hub.Join("chat_1", conn)
	assert.True(t, hub.InRoom("chat_1", conn))
	assert.Equal(t, 1, hub.RoomSize("chat_1"))

	hub.Leave("chat_1", conn)
	assert.False(t, hub.InRoom("chat_1", conn))
	assert.Equal(t, 0, hub.RoomSize("chat_1"))
}

func TestHubEmptyRoomsAreReclaimed(t *testing.T) {
	hub := NewHub()
	a := &Conn{}
	b := &Conn{}

	hub.Join("chat_1", a)
	hub.Join("chat_1", b)
	hub.Leave("chat_1", a)
	assert.Equal(t, 1, len(hub.rooms))

	hub.Leave("chat_1", b)
	assert.Equal(t, 0, len(hub.rooms))
}

func TestHubRemoveDropsEveryRoom(t *testing.T) {
	hub := NewHub()
	conn := &Conn{}
	other := &Conn{}

	hub.Join("chat_1", conn)
	hub.Join("chat_2", conn)
	hub.Join("user_7", conn)
	hub.Join("chat_1", other)

	hub.Remove(conn)

	assert.False(t, hub.InRoom("chat_1", conn))
	assert.False(t, hub.InRoom("chat_2", conn))
	assert.False(t, hub.InRoom("user_7", conn))
	assert.True(t, hub.InRoom("chat_1", other))
	assert.Equal(t, 0, len(hub.conns[conn]))
}

func TestHubLeaveUnknownRoomIsANoop(t *testing.T) {
	hub := NewHub()
	conn := &Conn{}

	hub.Leave("never_joined", conn)
	hub.Remove(conn)
	assert.Equal(t, 0, hub.RoomSize("never_joined"))
}
