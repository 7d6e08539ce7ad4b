// Package app holds the client screen controllers and drives navigation
// through the session router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/npezzotti/go-lag/internal/router"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

const DefaultSplash = 2 * time.Second

var ErrNoSession = errors.New("no signed-in user")

type App struct {
	log      *log.Logger
	router   *router.Router
	auth     store.AuthProvider
	profiles store.ProfileStore
	realtime store.RealtimeStore
	splash   time.Duration
	login    *Login
	register *Register
}

func New(logger *log.Logger, auth store.AuthProvider, profiles store.ProfileStore, realtime store.RealtimeStore, splash time.Duration) *App {
	a := &App{
		log:      logger,
		router:   router.New(),
		auth:     auth,
		profiles: profiles,
		realtime: realtime,
		splash:   splash,
		login:    NewLogin(auth, profiles),
		register: NewRegister(auth, profiles),
	}

	a.router.OnChange(func(from, to router.State) {
		a.log.Printf("navigate %s -> %s", from.Name(), to.Name())
	})

	return a
}

func (a *App) State() router.State {
	return a.router.Current()
}

// ExitPending reports whether the exit confirmation dialog is showing.
func (a *App) ExitPending() bool {
	return a.router.ExitPending()
}

// Start waits out the splash screen and then routes on the session held at
// that moment.
func (a *App) Start(ctx context.Context) (router.State, error) {
	t := time.NewTimer(a.splash)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return a.State(), ctx.Err()
	case <-t.C:
	}

	_, ok := a.auth.CurrentSession()
	return a.router.Dispatch(router.SplashDone{HasSession: ok})
}

func (a *App) LoginForm() *Login {
	return a.login
}

func (a *App) RegisterForm() *Register {
	return a.register
}

func (a *App) SubmitLogin(ctx context.Context, username, password string) error {
	if _, err := a.login.Submit(ctx, username, password); err != nil {
		return err
	}

	_, err := a.router.Dispatch(router.LoginSucceeded{})
	return err
}

func (a *App) SubmitRegister(ctx context.Context, name, username, email, password string) error {
	if _, err := a.register.Submit(ctx, name, username, email, password); err != nil {
		return err
	}

	_, err := a.router.Dispatch(router.Registered{})
	return err
}

func (a *App) ShowRegister() error {
	_, err := a.router.Dispatch(router.ShowRegister{})
	return err
}

func (a *App) ShowLogin() error {
	_, err := a.router.Dispatch(router.ShowLogin{})
	return err
}

func (a *App) userId() (string, error) {
	s, ok := a.auth.CurrentSession()
	if !ok {
		return "", ErrNoSession
	}
	return s.UserId, nil
}

// Home returns the controller for the home screen.
func (a *App) Home() (*Home, error) {
	if _, ok := a.State().(router.Home); !ok {
		return nil, fmt.Errorf("home on %s: %w", a.State().Name(), router.ErrInvalidTransition)
	}
	userId, err := a.userId()
	if err != nil {
		return nil, err
	}
	return NewHome(a.realtime, a.profiles, userId), nil
}

func (a *App) Directory() (*Directory, error) {
	if _, ok := a.State().(router.Directory); !ok {
		return nil, fmt.Errorf("directory on %s: %w", a.State().Name(), router.ErrInvalidTransition)
	}
	userId, err := a.userId()
	if err != nil {
		return nil, err
	}
	return NewDirectory(a.profiles, userId), nil
}

// Chat returns the controller for the peer carried by the chat state.
func (a *App) Chat() (*Chat, error) {
	st, ok := a.State().(router.Chat)
	if !ok {
		return nil, fmt.Errorf("chat on %s: %w", a.State().Name(), router.ErrInvalidTransition)
	}
	userId, err := a.userId()
	if err != nil {
		return nil, err
	}
	return NewChat(a.realtime, userId, st.Peer), nil
}

func (a *App) NewChat() error {
	_, err := a.router.Dispatch(router.NewChat{})
	return err
}

func (a *App) Select(user types.User) error {
	_, err := a.router.Dispatch(router.SelectUser{User: user})
	return err
}

// Back navigates back. It reports true when the exit confirmation must be
// shown instead.
func (a *App) Back() (bool, error) {
	if _, err := a.router.Dispatch(router.Back{}); err != nil {
		return false, err
	}
	return a.router.ExitPending(), nil
}

func (a *App) ConfirmExit() error {
	_, err := a.router.Dispatch(router.ConfirmExit{})
	return err
}

func (a *App) CancelExit() error {
	_, err := a.router.Dispatch(router.CancelExit{})
	return err
}

func (a *App) Exited() bool {
	_, ok := a.State().(router.Exited)
	return ok
}

// Logout signs out and returns to the login screen.
func (a *App) Logout(ctx context.Context) error {
	if _, ok := a.State().(router.Home); !ok {
		return fmt.Errorf("logout on %s: %w", a.State().Name(), router.ErrInvalidTransition)
	}
	if err := a.auth.SignOut(ctx); err != nil {
		return networkError(err)
	}

	_, err := a.router.Dispatch(router.LoggedOut{})
	return err
}
