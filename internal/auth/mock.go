package auth

import (
	"context"

	"github.com/npezzotti/go-lag/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) SignUp(ctx context.Context, email, password string) (types.Session, error) {
	args := m.Called(email, password)
	return args.Get(0).(types.Session), args.Error(1)
}
func (m *MockAuthenticator) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	args := m.Called(email, password)
	return args.Get(0).(types.Session), args.Error(1)
}
func (m *MockAuthenticator) Verify(ctx context.Context, token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
