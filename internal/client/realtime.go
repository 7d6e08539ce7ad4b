package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-lag/internal/server"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

const (
	writeWait = 5 * time.Second
	subId     = 1
)

// Realtime is the store.RealtimeStore backed by the chats endpoints. Each
// subscription owns its own websocket.
type Realtime struct {
	conn *Conn
}

func (rt *Realtime) Subscribe(ctx context.Context, path string) (store.Subscription, error) {
	ws, resp, err := rt.conn.dialer.DialContext(ctx, rt.conn.wsEndpoint(), rt.conn.authHeader())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, statusError(resp)
			}
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(server.ClientMessage{
		BaseMessage: server.BaseMessage{Id: subId, Timestamp: server.Now()},
		Subscribe:   &server.Subscribe{Path: path},
	}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	if err := awaitAck(ctx, ws); err != nil {
		ws.Close()
		return nil, err
	}

	s := &subscription{ws: ws, path: path, exited: make(chan struct{})}
	s.feed = store.NewFeed[store.Snapshot](s.close)
	go s.readLoop()

	go func() {
		select {
		case <-ctx.Done():
			s.feed.Close()
		case <-s.exited:
		}
	}()

	return s.feed, nil
}

// awaitAck reads the response to the subscribe request.
func awaitAck(ctx context.Context, ws *websocket.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	} else {
		ws.SetReadDeadline(time.Now().Add(defaultTimeout))
	}
	defer ws.SetReadDeadline(time.Time{})

	for {
		var msg server.ServerMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read subscribe response: %w", err)
		}
		if msg.Response == nil || msg.Id != subId {
			continue
		}

		switch msg.Response.ResponseCode {
		case http.StatusOK:
			return nil
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", store.ErrInvalidPath, msg.Response.Error)
		case http.StatusForbidden, http.StatusUnauthorized:
			return store.ErrUnauthorized
		default:
			return fmt.Errorf("subscribe failed (%d): %s", msg.Response.ResponseCode, msg.Response.Error)
		}
	}
}

type subscription struct {
	ws     *websocket.Conn
	path   string
	feed   *store.Feed[store.Snapshot]
	closed atomic.Bool
	exited chan struct{}
}

func (s *subscription) close() {
	s.closed.Store(true)
	s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.ws.Close()
}

func (s *subscription) readLoop() {
	defer close(s.exited)

	for {
		var msg server.ServerMessage
		if err := s.ws.ReadJSON(&msg); err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.feed.Finish(nil)
			} else {
				s.feed.Finish(fmt.Errorf("subscription %q: %w", s.path, err))
			}
			s.ws.Close()
			return
		}

		switch {
		case msg.Snapshot != nil && msg.Snapshot.Path == s.path:
			s.feed.Send(*msg.Snapshot)
		case msg.Notification != nil && msg.Notification.SubscriptionClosed != nil:
			closed := msg.Notification.SubscriptionClosed
			if closed.Path != s.path {
				continue
			}
			var err error
			if closed.Error != "" {
				err = errors.New(closed.Error)
			}
			s.feed.Finish(err)
			s.closed.Store(true)
			s.ws.Close()
			return
		}
	}
}

func (rt *Realtime) Push(ctx context.Context, path string, msg types.Message) (string, error) {
	room, ok := store.RoomFromPath(path)
	if !ok {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}

	var resp struct {
		Key string `json:"key"`
	}
	if err := rt.conn.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(room), nil, msg, &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (rt *Realtime) Remove(ctx context.Context, path string) error {
	room, ok := store.RoomFromPath(path)
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}

	return rt.conn.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(room), nil, nil, nil)
}
