package database

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
}

type ProfileRepository interface {
	PutProfile(ctx context.Context, profile Profile) error
	ListProfiles(ctx context.Context, excludeId string) ([]Profile, error)
	GetProfilesByIds(ctx context.Context, ids []string) ([]Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (Profile, error)
}

// MessageRepository persists room messages. GetMessages returns messages in
// insertion order and ListRooms every room holding at least one message.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg Message) error
	GetMessages(ctx context.Context, roomId string) ([]Message, error)
	ListRooms(ctx context.Context) ([]string, error)
	DeleteRoom(ctx context.Context, roomId string) error
}

type Repository interface {
	AccountRepository
	ProfileRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close() error
}
