package app

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindCredential
	KindNetwork
	KindDataIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindCredential:
		return "credential"
	case KindNetwork:
		return "network"
	case KindDataIntegrity:
		return "data integrity"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure ready to show to the user. Error returns Message only;
// the underlying cause stays reachable through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	msgFillAllFields   = "Please fill all fields"
	msgUsernameMissing = "Username not found"
	msgInvalidPassword = "Invalid password"
	msgUserDataError   = "User data error"
	msgUsernameTaken   = "Username already taken"
	msgEmailTaken      = "Email already registered"
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// networkError reports a failed backend call using the cause's own message.
func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
