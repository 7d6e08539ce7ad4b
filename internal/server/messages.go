package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-lag/internal/store"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
}

type Subscribe struct {
	Path string `json:"path"`
}

type Unsubscribe struct {
	Path string `json:"path"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response       `json:"response,omitempty"`
	Snapshot     *store.Snapshot `json:"snapshot,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	SubscriptionClosed *SubscriptionClosed `json:"subscription_closed,omitempty"`
}

type SubscriptionClosed struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func SnapshotMessage(snap store.Snapshot) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Snapshot: &snap,
	}
}

func SubscriptionClosedMessage(path string, err error) *ServerMessage {
	sc := &SubscriptionClosed{Path: path}
	if err != nil {
		sc.Error = err.Error()
	}

	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			SubscriptionClosed: sc,
		},
	}
}

func ErrPathNotFound(id int) *ServerMessage {
	return errorMessage(id, http.StatusNotFound, "path not found")
}

func ErrForbidden(id int) *ServerMessage {
	return errorMessage(id, http.StatusForbidden, "forbidden")
}

func ErrInternalError(id int) *ServerMessage {
	return errorMessage(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errorMessage(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errorMessage(id, http.StatusBadRequest, "invalid message format")
}

func errorMessage(id, code int, text string) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
