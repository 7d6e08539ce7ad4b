package store

import (
	"context"

	"github.com/npezzotti/go-lag/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockAuthProvider struct {
	mock.Mock
}

func (m *MockAuthProvider) SignUp(ctx context.Context, email, password string) (string, error) {
	args := m.Called(email, password)
	return args.String(0), args.Error(1)
}
func (m *MockAuthProvider) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	args := m.Called(email, password)
	return args.Get(0).(types.Session), args.Error(1)
}
func (m *MockAuthProvider) SignOut(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockAuthProvider) CurrentSession() (types.Session, bool) {
	args := m.Called()
	return args.Get(0).(types.Session), args.Bool(1)
}

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Put(ctx context.Context, user types.User) error {
	args := m.Called(user)
	return args.Error(0)
}
func (m *MockProfileStore) QueryExcluding(ctx context.Context, userId string) (Stream[[]types.User], error) {
	args := m.Called(userId)
	if s, ok := args.Get(0).(Stream[[]types.User]); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockProfileStore) QueryByIds(ctx context.Context, ids []string) ([]types.User, error) {
	args := m.Called(ids)
	if users, ok := args.Get(0).([]types.User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockProfileStore) QueryByUsername(ctx context.Context, username string) (types.User, error) {
	args := m.Called(username)
	return args.Get(0).(types.User), args.Error(1)
}

type MockRealtimeStore struct {
	mock.Mock
}

func (m *MockRealtimeStore) Subscribe(ctx context.Context, path string) (Subscription, error) {
	args := m.Called(path)
	if s, ok := args.Get(0).(Subscription); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRealtimeStore) Push(ctx context.Context, path string, msg types.Message) (string, error) {
	args := m.Called(path, msg)
	return args.String(0), args.Error(1)
}
func (m *MockRealtimeStore) Remove(ctx context.Context, path string) error {
	args := m.Called(path)
	return args.Error(0)
}
