// Package store defines the backend capabilities the client consumes: an auth
// provider, a profile document store and a realtime store delivering full
// snapshots.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/npezzotti/go-lag/internal/types"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidPath        = errors.New("invalid path")
)

// Paths understood by realtime stores.
const (
	ChatsPath = "chats"
	UsersPath = "users"
)

// RoomPath is the realtime path holding the messages of roomId.
func RoomPath(roomId string) string {
	return ChatsPath + "/" + roomId
}

// RoomFromPath returns the room id of a chats/<room> path.
func RoomFromPath(path string) (string, bool) {
	room, ok := strings.CutPrefix(path, ChatsPath+"/")
	if !ok || room == "" || strings.Contains(room, "/") {
		return "", false
	}
	return room, true
}

type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (types.Session, error)
	SignOut(ctx context.Context) error
	CurrentSession() (types.Session, bool)
}

type ProfileStore interface {
	Put(ctx context.Context, user types.User) error
	// QueryExcluding streams every profile except userId, re-sent in full on
	// each change.
	QueryExcluding(ctx context.Context, userId string) (Stream[[]types.User], error)
	QueryByIds(ctx context.Context, ids []string) ([]types.User, error)
	// QueryByUsername returns ErrNotFound when no profile has username.
	QueryByUsername(ctx context.Context, username string) (types.User, error)
}

type RealtimeStore interface {
	Subscribe(ctx context.Context, path string) (Subscription, error)
	Push(ctx context.Context, path string, msg types.Message) (string, error)
	Remove(ctx context.Context, path string) error
}
