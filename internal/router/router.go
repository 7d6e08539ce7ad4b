// Package router implements the client navigation state machine. Each state
// carries the data it needs, so a chat state always has a peer.
package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/npezzotti/go-lag/internal/types"
)

var ErrInvalidTransition = errors.New("invalid transition")

type State interface {
	Name() string
	state()
}

type Splash struct{}
type Login struct{}
type Register struct{}
type Home struct{}
type Directory struct{}

// Chat is the conversation screen with Peer.
type Chat struct {
	Peer types.User
}

// Exited is terminal: the user confirmed the exit dialog.
type Exited struct{}

func (Splash) Name() string    { return "splash" }
func (Login) Name() string     { return "login" }
func (Register) Name() string  { return "register" }
func (Home) Name() string      { return "home" }
func (Directory) Name() string { return "directory" }
func (Chat) Name() string      { return "chat" }
func (Exited) Name() string    { return "exited" }

func (Splash) state()    {}
func (Login) state()     {}
func (Register) state()  {}
func (Home) state()      {}
func (Directory) state() {}
func (Chat) state()      {}
func (Exited) state()    {}

type Event interface {
	event()
}

// SplashDone fires once when the splash screen finishes. HasSession reports
// whether the auth provider holds a valid session at that moment.
type SplashDone struct {
	HasSession bool
}

type ShowRegister struct{}
type ShowLogin struct{}
type LoginSucceeded struct{}
type Registered struct{}
type LoggedOut struct{}
type NewChat struct{}

// SelectUser opens a chat with User from Home or Directory.
type SelectUser struct {
	User types.User
}

// Back is a back-navigation request. On Home and Login it raises the exit
// confirmation instead of changing state.
type Back struct{}

type ConfirmExit struct{}
type CancelExit struct{}

func (SplashDone) event()     {}
func (ShowRegister) event()   {}
func (ShowLogin) event()      {}
func (LoginSucceeded) event() {}
func (Registered) event()     {}
func (LoggedOut) event()      {}
func (NewChat) event()        {}
func (SelectUser) event()     {}
func (Back) event()           {}
func (ConfirmExit) event()    {}
func (CancelExit) event()     {}

// Router holds the current navigation state. It always starts at Splash; no
// state survives a restart except the session kept by the auth provider.
type Router struct {
	mu          sync.Mutex
	current     State
	exitPending bool
	onChange    func(from, to State)
}

func New() *Router {
	return &Router{current: Splash{}}
}

// OnChange registers a callback invoked after every state change.
func (r *Router) OnChange(fn func(from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Router) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// ExitPending reports whether the exit confirmation dialog is showing.
func (r *Router) ExitPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitPending
}

// Dispatch applies ev to the current state. An event the current state does
// not accept returns ErrInvalidTransition and leaves the state unchanged.
func (r *Router) Dispatch(ev Event) (State, error) {
	r.mu.Lock()
	from := r.current
	to, err := r.next(ev)
	if err != nil {
		r.mu.Unlock()
		return from, fmt.Errorf("%s on %s: %w", eventName(ev), from.Name(), err)
	}
	r.current = to
	cb := r.onChange
	r.mu.Unlock()

	if cb != nil && !sameState(from, to) {
		cb(from, to)
	}
	return to, nil
}

func (r *Router) next(ev Event) (State, error) {
	if r.exitPending {
		switch ev.(type) {
		case ConfirmExit:
			r.exitPending = false
			return Exited{}, nil
		case CancelExit:
			r.exitPending = false
			return r.current, nil
		case Back:
			return r.current, nil
		}
		return nil, ErrInvalidTransition
	}

	switch cur := r.current.(type) {
	case Splash:
		if e, ok := ev.(SplashDone); ok {
			if e.HasSession {
				return Home{}, nil
			}
			return Login{}, nil
		}
	case Login:
		switch ev.(type) {
		case ShowRegister:
			return Register{}, nil
		case LoginSucceeded:
			return Home{}, nil
		case Back:
			r.exitPending = true
			return cur, nil
		}
	case Register:
		switch ev.(type) {
		case Registered, ShowLogin, Back:
			return Login{}, nil
		}
	case Home:
		switch e := ev.(type) {
		case NewChat:
			return Directory{}, nil
		case SelectUser:
			return Chat{Peer: e.User}, nil
		case LoggedOut:
			return Login{}, nil
		case Back:
			r.exitPending = true
			return cur, nil
		}
	case Directory:
		switch e := ev.(type) {
		case SelectUser:
			return Chat{Peer: e.User}, nil
		case Back:
			return Home{}, nil
		}
	case Chat:
		if _, ok := ev.(Back); ok {
			return Home{}, nil
		}
	}

	return nil, ErrInvalidTransition
}

func sameState(a, b State) bool {
	ca, okA := a.(Chat)
	cb, okB := b.(Chat)
	if okA && okB {
		return ca.Peer.UserId == cb.Peer.UserId
	}
	return a.Name() == b.Name()
}

func eventName(ev Event) string {
	return fmt.Sprintf("%T", ev)
}
