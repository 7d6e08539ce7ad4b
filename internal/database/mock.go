package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) PutProfile(ctx context.Context, profile Profile) error {
	args := m.Called(profile)
	return args.Error(0)
}
func (m *MockRepository) ListProfiles(ctx context.Context, excludeId string) ([]Profile, error) {
	args := m.Called(excludeId)
	if profiles, ok := args.Get(0).([]Profile); ok {
		return profiles, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) GetProfilesByIds(ctx context.Context, ids []string) ([]Profile, error) {
	args := m.Called(ids)
	if profiles, ok := args.Get(0).([]Profile); ok {
		return profiles, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) GetProfileByUsername(ctx context.Context, username string) (Profile, error) {
	args := m.Called(username)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockRepository) GetMessages(ctx context.Context, roomId string) ([]Message, error) {
	args := m.Called(roomId)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) ListRooms(ctx context.Context) ([]string, error) {
	args := m.Called()
	if rooms, ok := args.Get(0).([]string); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) DeleteRoom(ctx context.Context, roomId string) error {
	args := m.Called(roomId)
	return args.Error(0)
}
