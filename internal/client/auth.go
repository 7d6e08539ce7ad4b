package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Auth is the store.AuthProvider backed by the server's auth endpoints.
type Auth struct {
	conn *Conn
}

// SignUp creates an account. The new account is signed in, so the caller can
// write its profile right away.
func (a *Auth) SignUp(ctx context.Context, email, password string) (string, error) {
	var s types.Session
	if err := a.conn.do(ctx, http.MethodPost, "/api/auth/register", nil, credentials{email, password}, &s); err != nil {
		return "", err
	}

	if err := a.conn.setSession(&s); err != nil {
		a.conn.log.Printf("save session: %v", err)
	}
	return s.UserId, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	var s types.Session
	err := a.conn.do(ctx, http.MethodPost, "/api/auth/login", nil, credentials{email, password}, &s)
	if errors.Is(err, store.ErrUnauthorized) {
		return types.Session{}, store.ErrInvalidCredentials
	}
	if err != nil {
		return types.Session{}, err
	}

	if err := a.conn.setSession(&s); err != nil {
		a.conn.log.Printf("save session: %v", err)
	}
	return s, nil
}

// SignOut drops the local session even when the server can't be reached.
func (a *Auth) SignOut(ctx context.Context) error {
	if _, ok := a.conn.currentSession(); ok {
		if err := a.conn.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
			a.conn.log.Printf("logout: %v", err)
		}
	}

	return a.conn.setSession(nil)
}

func (a *Auth) CurrentSession() (types.Session, bool) {
	return a.conn.currentSession()
}
