package pebblestore

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open("lag", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	params := database.CreateAccountParams{Id: "u1", Email: "alice@example.com", PasswordHash: "hash"}
	a, err := s.CreateAccount(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "u1", a.Id)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = s.CreateAccount(ctx, params)
	assert.ErrorIs(t, err, database.ErrConflict)

	got, err := s.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetAccountByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestProfiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []database.Profile{
		{UserId: "u1", Name: "Zed", Username: "zed", Email: "zed@example.com"},
		{UserId: "u2", Name: "Amy", Username: "amy", Email: "amy@example.com"},
		{UserId: "u3", Name: "Max", Username: "max", Email: "max@example.com"},
	} {
		require.NoError(t, s.PutProfile(ctx, p))
	}

	t.Run("list excludes caller sorted by username", func(t *testing.T) {
		profiles, err := s.ListProfiles(ctx, "u3")
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, "amy", profiles[0].Username)
		assert.Equal(t, "zed", profiles[1].Username)
	})

	t.Run("by ids skips unknown", func(t *testing.T) {
		profiles, err := s.GetProfilesByIds(ctx, []string{"u1", "missing", "u2"})
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, "u1", profiles[0].UserId)
		assert.Equal(t, "u2", profiles[1].UserId)
	})

	t.Run("by username", func(t *testing.T) {
		p, err := s.GetProfileByUsername(ctx, "amy")
		require.NoError(t, err)
		assert.Equal(t, "u2", p.UserId)

		_, err = s.GetProfileByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("username taken by another user", func(t *testing.T) {
		err := s.PutProfile(ctx, database.Profile{UserId: "u4", Name: "Amy 2", Username: "amy"})
		assert.ErrorIs(t, err, database.ErrConflict)
	})

	t.Run("rename releases old username", func(t *testing.T) {
		require.NoError(t, s.PutProfile(ctx, database.Profile{UserId: "u1", Name: "Zed", Username: "zeddy"}))

		_, err := s.GetProfileByUsername(ctx, "zed")
		assert.ErrorIs(t, err, database.ErrNotFound)

		p, err := s.GetProfileByUsername(ctx, "zeddy")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.UserId)
	})
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := "a-b"
	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateMessage(ctx, database.Message{
			Key:        content,
			RoomId:     room,
			SenderId:   "a",
			ReceiverId: "b",
			Content:    content,
			Timestamp:  int64(100 - i),
		}))
	}
	require.NoError(t, s.CreateMessage(ctx, database.Message{Key: "x", RoomId: "a-c", Content: "other"}))

	msgs, err := s.GetMessages(ctx, room)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content, "expected insertion order")
	assert.Equal(t, "third", msgs[2].Content)

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b", "a-c"}, rooms)

	require.NoError(t, s.DeleteRoom(ctx, room))

	msgs, err = s.GetMessages(ctx, room)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-c"}, rooms)
}

func TestRoomPrefixIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, database.Message{Key: "1", RoomId: "a-b", Content: "ab"}))
	require.NoError(t, s.CreateMessage(ctx, database.Message{Key: "2", RoomId: "a-bc", Content: "abc"}))

	msgs, err := s.GetMessages(ctx, "a-b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ab", msgs[0].Content)
}

func Test_upperBound(t *testing.T) {
	assert.Equal(t, []byte("chat;"), upperBound([]byte("chat:")))
	assert.Equal(t, []byte{0x01}, upperBound([]byte{0x00, 0xff}))
	assert.Nil(t, upperBound([]byte{0xff, 0xff}))
}

func TestClosed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	assert.Error(t, s.Ping(context.Background()))
	_, err := s.GetAccountByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, errClosed)
}
