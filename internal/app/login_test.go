package app

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLogin_Submit(t *testing.T) {
	alice := types.User{UserId: "u1", Name: "Alice", Username: "alice", Email: "alice@example.com"}
	session := types.Session{UserId: "u1", Token: "tok"}

	tcases := []struct {
		name            string
		username        string
		password        string
		lookupUser      types.User
		lookupErr       error
		callsLookup     bool
		signInErr       error
		callsSignIn     bool
		expectedKind    Kind
		expectedMessage string
	}{
		{
			name:            "empty username",
			password:        "secret",
			expectedKind:    KindValidation,
			expectedMessage: "Please fill all fields",
		},
		{
			name:            "empty password",
			username:        "alice",
			expectedKind:    KindValidation,
			expectedMessage: "Please fill all fields",
		},
		{
			name:            "unknown username",
			username:        "nouser",
			password:        "secret",
			lookupErr:       store.ErrNotFound,
			callsLookup:     true,
			expectedKind:    KindNotFound,
			expectedMessage: "Username not found",
		},
		{
			name:            "lookup failure",
			username:        "alice",
			password:        "secret",
			lookupErr:       errors.New("connection refused"),
			callsLookup:     true,
			expectedKind:    KindNetwork,
			expectedMessage: "connection refused",
		},
		{
			name:            "profile without email",
			username:        "alice",
			password:        "secret",
			lookupUser:      types.User{UserId: "u1", Username: "alice"},
			callsLookup:     true,
			expectedKind:    KindDataIntegrity,
			expectedMessage: "User data error",
		},
		{
			name:            "wrong password",
			username:        "alice",
			password:        "wrong",
			lookupUser:      alice,
			callsLookup:     true,
			signInErr:       store.ErrInvalidCredentials,
			callsSignIn:     true,
			expectedKind:    KindCredential,
			expectedMessage: "Invalid password",
		},
		{
			name:            "sign in unreachable",
			username:        "alice",
			password:        "secret",
			lookupUser:      alice,
			callsLookup:     true,
			signInErr:       errors.New("timeout"),
			callsSignIn:     true,
			expectedKind:    KindNetwork,
			expectedMessage: "timeout",
		},
		{
			name:        "success",
			username:    "alice",
			password:    "secret",
			lookupUser:  alice,
			callsLookup: true,
			callsSignIn: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &store.MockAuthProvider{}
			profiles := &store.MockProfileStore{}
			if tc.callsLookup {
				profiles.On("QueryByUsername", tc.username).Return(tc.lookupUser, tc.lookupErr).Once()
			}
			if tc.callsSignIn {
				auth.On("SignIn", "alice@example.com", tc.password).Return(session, tc.signInErr).Once()
			}

			l := NewLogin(auth, profiles)
			got, err := l.Submit(context.Background(), tc.username, tc.password)

			profiles.AssertExpectations(t)
			auth.AssertExpectations(t)
			if !tc.callsSignIn {
				auth.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything)
			}
			assert.False(t, l.Loading(), "expected loading to be cleared")

			if tc.expectedKind == 0 {
				require.NoError(t, err)
				assert.Equal(t, session, got)
				return
			}

			var appErr *Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.expectedKind, appErr.Kind)
			assert.Equal(t, tc.expectedMessage, err.Error())
		})
	}
}
