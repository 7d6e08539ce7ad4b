package app

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

// Login signs users in by username. The username is resolved to the
// profile's email before the auth provider is asked.
type Login struct {
	auth     store.AuthProvider
	profiles store.ProfileStore
	loading  atomic.Bool
}

func NewLogin(auth store.AuthProvider, profiles store.ProfileStore) *Login {
	return &Login{auth: auth, profiles: profiles}
}

func (l *Login) Loading() bool {
	return l.loading.Load()
}

func (l *Login) Submit(ctx context.Context, username, password string) (types.Session, error) {
	if username == "" || password == "" {
		return types.Session{}, newError(KindValidation, msgFillAllFields, nil)
	}

	l.loading.Store(true)
	defer l.loading.Store(false)

	profile, err := l.profiles.QueryByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return types.Session{}, newError(KindNotFound, msgUsernameMissing, err)
	}
	if err != nil {
		return types.Session{}, networkError(err)
	}
	if profile.Email == "" {
		return types.Session{}, newError(KindDataIntegrity, msgUserDataError, nil)
	}

	session, err := l.auth.SignIn(ctx, profile.Email, password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		return types.Session{}, newError(KindCredential, msgInvalidPassword, err)
	}
	if err != nil {
		return types.Session{}, networkError(err)
	}

	return session, nil
}
