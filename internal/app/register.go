package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

type Register struct {
	auth     store.AuthProvider
	profiles store.ProfileStore
	loading  atomic.Bool
}

func NewRegister(auth store.AuthProvider, profiles store.ProfileStore) *Register {
	return &Register{auth: auth, profiles: profiles}
}

func (r *Register) Loading() bool {
	return r.loading.Load()
}

// Submit creates the account and then its profile record.
func (r *Register) Submit(ctx context.Context, name, username, email, password string) (types.User, error) {
	if name == "" || username == "" || email == "" || password == "" {
		return types.User{}, newError(KindValidation, msgFillAllFields, nil)
	}

	r.loading.Store(true)
	defer r.loading.Store(false)

	_, err := r.profiles.QueryByUsername(ctx, username)
	switch {
	case err == nil:
		return types.User{}, newError(KindValidation, msgUsernameTaken, nil)
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, networkError(err)
	}

	userId, err := r.auth.SignUp(ctx, email, password)
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, newError(KindValidation, msgEmailTaken, err)
	}
	if err != nil {
		return types.User{}, networkError(err)
	}

	user := types.User{UserId: userId, Name: name, Username: username, Email: email}
	if err := r.profiles.Put(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(KindValidation, msgUsernameTaken, err)
		}
		return types.User{}, newError(KindNetwork, fmt.Sprintf("Failed to save user data: %v", err), err)
	}

	return user, nil
}
