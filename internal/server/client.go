package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-lag/internal/chat"
	"github.com/npezzotti/go-lag/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one websocket connection. Each subscribe request opens a hub
// subscription whose snapshots are forwarded until unsubscribe or
// disconnect.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	userId     string
	send       chan *ServerMessage
	subs       map[string]store.Subscription
	subsLock   sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(userId string, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		userId:     userId,
		send:       make(chan *ServerMessage, 256),
		subs:       make(map[string]store.Subscription),
		stop:       make(chan struct{}),
	}
}

// Serve registers the client and runs its pumps until the connection closes.
func (c *Client) Serve() {
	c.chatServer.addClient(c)
	go c.Write()
	c.Read()
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Println("error parsing message:", err)
		c.queueMessage(ErrInvalidMessage(-1))
		return
	}

	switch {
	case msg.Subscribe != nil:
		c.subscribe(msg.Id, msg.Subscribe.Path)
	case msg.Unsubscribe != nil:
		c.unsubscribe(msg.Id, msg.Unsubscribe.Path)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// canAccess reports whether the client's user may watch path.
func (c *Client) canAccess(path string) bool {
	if path == store.ChatsPath || path == store.UsersPath {
		return true
	}

	roomId, ok := store.RoomFromPath(path)
	return ok && chat.IsParticipant(roomId, c.userId)
}

func (c *Client) subscribe(id int, path string) {
	if !validPath(path) {
		c.queueMessage(ErrPathNotFound(id))
		return
	}
	if !c.canAccess(path) {
		c.queueMessage(ErrForbidden(id))
		return
	}

	c.subsLock.Lock()
	if _, ok := c.subs[path]; ok {
		c.subsLock.Unlock()
		c.queueMessage(NoErrOK(id, nil))
		return
	}

	sub, err := c.chatServer.Subscribe(context.Background(), path)
	if err != nil {
		c.subsLock.Unlock()
		c.log.Printf("subscribe %q: %v", path, err)
		c.queueMessage(ErrServiceUnavailable(id))
		return
	}
	c.subs[path] = sub
	c.subsLock.Unlock()

	// acknowledge before the first snapshot can be forwarded
	c.queueMessage(NoErrOK(id, nil))
	go c.forward(path, sub)
}

func (c *Client) unsubscribe(id int, path string) {
	sub, ok := c.delSub(path)
	if !ok {
		c.queueMessage(ErrPathNotFound(id))
		return
	}

	sub.Close()
	c.queueMessage(NoErrOK(id, nil))
}

func (c *Client) forward(path string, sub store.Subscription) {
	for snap := range sub.Updates() {
		if path == store.ChatsPath {
			snap = c.ownRooms(snap)
		}

		if !c.queueMessage(SnapshotMessage(snap)) {
			// a dropped snapshot would leave the client on a stale view
			c.log.Println("send buffer full, disconnecting client")
			c.stopClient()
			sub.Close()
			return
		}
	}

	// the hub closed the subscription, not an unsubscribe request
	if _, ok := c.delSubIf(path, sub); ok {
		c.queueMessage(SubscriptionClosedMessage(path, sub.Err()))
	}
}

func (c *Client) ownRooms(snap store.Snapshot) store.Snapshot {
	return snap.Filter(func(child store.Child) bool {
		return chat.IsParticipant(child.Key, c.userId)
	})
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.chatServer.removeClient(c)
	c.closeAllSubs()
	c.stopClient()
}

func (c *Client) closeAllSubs() {
	c.subsLock.Lock()
	subs := c.subs
	c.subs = make(map[string]store.Subscription)
	c.subsLock.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (c *Client) delSub(path string) (store.Subscription, bool) {
	c.subsLock.Lock()
	defer c.subsLock.Unlock()

	sub, ok := c.subs[path]
	if ok {
		delete(c.subs, path)
	}
	return sub, ok
}

// delSubIf removes path only while it still maps to sub.
func (c *Client) delSubIf(path string, sub store.Subscription) (store.Subscription, bool) {
	c.subsLock.Lock()
	defer c.subsLock.Unlock()

	if cur, ok := c.subs[path]; ok && cur == sub {
		delete(c.subs, path)
		return sub, true
	}
	return nil, false
}
