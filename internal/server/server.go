package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/npezzotti/go-lag/internal/chat"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/stats"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

const (
	NumActiveConnections   = "NumActiveConnections"
	NumActiveTopics        = "NumActiveTopics"
	NumActiveSubscriptions = "NumActiveSubscriptions"
	NumMessagesPublished   = "NumMessagesPublished"
)

var (
	ErrServerStopped = errors.New("chat server stopped")
	ErrEmptyMessage  = errors.New("message content is empty")
	ErrTopicBusy     = errors.New("topic is busy")
)

type stopReq struct {
	done chan struct{}
}

// ChatServer fans full snapshots of the realtime paths out to subscribers.
// Each watched path is served by its own Topic goroutine, loaded on the
// first subscription and unloaded once idle.
type ChatServer struct {
	log             *log.Logger
	profiles        database.ProfileRepository
	messages        database.MessageRepository
	stats           stats.StatsProvider
	clients         map[*Client]struct{}
	clientsLock     sync.Mutex
	topics          map[string]*Topic
	subscribeChan   chan *subscriber
	unsubscribeChan chan *subscriber
	refreshChan     chan string
	unloadTopicChan chan string
	stop            chan stopReq
	done            chan struct{}
}

var _ store.RealtimeStore = (*ChatServer)(nil)

func NewChatServer(logger *log.Logger, profiles database.ProfileRepository, messages database.MessageRepository, su stats.StatsProvider) (*ChatServer, error) {
	if profiles == nil || messages == nil {
		return nil, errors.New("profile and message repositories are required")
	}

	for _, name := range []string{NumActiveConnections, NumActiveTopics, NumActiveSubscriptions, NumMessagesPublished} {
		su.RegisterMetric(name)
	}

	return &ChatServer{
		log:             logger,
		profiles:        profiles,
		messages:        messages,
		stats:           su,
		clients:         make(map[*Client]struct{}),
		topics:          make(map[string]*Topic),
		subscribeChan:   make(chan *subscriber, 256),
		unsubscribeChan: make(chan *subscriber, 256),
		refreshChan:     make(chan string, 256),
		unloadTopicChan: make(chan string, 256),
		stop:            make(chan stopReq),
		done:            make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case sub := <-cs.subscribeChan:
			cs.handleSubscribe(sub)
		case sub := <-cs.unsubscribeChan:
			if t, ok := cs.topics[sub.path]; ok {
				select {
				case t.leaveChan <- sub:
				default:
					cs.log.Printf("leave channel full on topic %q", t.path)
				}
			}
		case path := <-cs.refreshChan:
			if t, ok := cs.topics[path]; ok {
				t.requestRefresh()
			}
		case path := <-cs.unloadTopicChan:
			cs.handleUnload(path)
		case req := <-cs.stop:
			cs.log.Println("shutting down topics")
			for path, t := range cs.topics {
				cs.log.Println("shutting down topic", path)
				t.stop()
				cs.removeTopic(path)
			}

			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) handleSubscribe(sub *subscriber) {
	if sub.feed.Finished() {
		return
	}

	t, ok := cs.topics[sub.path]
	if !ok {
		t = newTopic(sub.path, cs)
		cs.addTopic(t)
		go t.start()
	}

	select {
	case t.joinChan <- sub:
	default:
		cs.log.Printf("join channel full on topic %q", t.path)
		sub.finish(ErrTopicBusy)
	}
}

func (cs *ChatServer) handleUnload(path string) {
	t, ok := cs.topics[path]
	if !ok {
		return
	}

	done := make(chan bool, 1)
	t.exit <- exitReq{done: done}
	if <-done {
		cs.removeTopic(path)
	}
}

func (cs *ChatServer) addTopic(t *Topic) {
	cs.log.Printf("starting topic %q", t.path)
	cs.topics[t.path] = t
	cs.stats.Incr(NumActiveTopics)
}

func (cs *ChatServer) removeTopic(path string) {
	if _, ok := cs.topics[path]; ok {
		cs.log.Printf("removing topic %q", path)
		delete(cs.topics, path)
		cs.stats.Decr(NumActiveTopics)
	}
}

// Subscribe watches path. The first update is the current snapshot; every
// change under path produces a new full snapshot.
func (cs *ChatServer) Subscribe(ctx context.Context, path string) (store.Subscription, error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}

	select {
	case <-cs.done:
		return nil, ErrServerStopped
	default:
	}

	sub := newSubscriber(path)
	sub.feed = store.NewFeed[store.Snapshot](func() {
		sub.finish(nil)
		select {
		case cs.unsubscribeChan <- sub:
		case <-cs.done:
		}
	})

	select {
	case cs.subscribeChan <- sub:
	case <-cs.done:
		return nil, ErrServerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.feed.Close()
			case <-sub.done:
			}
		}()
	}

	return sub.feed, nil
}

// Snapshot loads the current state of path without subscribing.
func (cs *ChatServer) Snapshot(ctx context.Context, path string) (store.Snapshot, error) {
	if !validPath(path) {
		return store.Snapshot{}, fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}
	return cs.load(ctx, path)
}

// Push stores msg under a chats/<room> path with a time-ordered key and
// returns the key once the write succeeded.
func (cs *ChatServer) Push(ctx context.Context, path string, msg types.Message) (string, error) {
	roomId, ok := store.RoomFromPath(path)
	if !ok || !chat.Canonical(roomId) {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}
	if msg.Content == "" {
		return "", ErrEmptyMessage
	}

	key, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	if err := cs.messages.CreateMessage(ctx, database.Message{
		Key:        key.String(),
		RoomId:     roomId,
		SenderId:   msg.SenderId,
		ReceiverId: msg.ReceiverId,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	}); err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	cs.stats.Incr(NumMessagesPublished)
	cs.refresh(path)
	cs.refresh(store.ChatsPath)

	return key.String(), nil
}

// Remove deletes every message of a chats/<room> path.
func (cs *ChatServer) Remove(ctx context.Context, path string) error {
	roomId, ok := store.RoomFromPath(path)
	if !ok || !chat.Canonical(roomId) {
		return fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
	}

	if err := cs.messages.DeleteRoom(ctx, roomId); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	cs.refresh(path)
	cs.refresh(store.ChatsPath)

	return nil
}

// ProfilesChanged republishes the users path after a profile write.
func (cs *ChatServer) ProfilesChanged() {
	cs.refresh(store.UsersPath)
}

func (cs *ChatServer) refresh(path string) {
	select {
	case cs.refreshChan <- path:
	case <-cs.done:
	}
}

func (cs *ChatServer) load(ctx context.Context, path string) (store.Snapshot, error) {
	snap := store.Snapshot{Path: path, Children: make([]store.Child, 0)}

	switch {
	case path == store.ChatsPath:
		rooms, err := cs.messages.ListRooms(ctx)
		if err != nil {
			return snap, fmt.Errorf("list rooms: %w", err)
		}
		for _, room := range rooms {
			snap.Children = append(snap.Children, store.Child{Key: room})
		}
	case path == store.UsersPath:
		profiles, err := cs.profiles.ListProfiles(ctx, "")
		if err != nil {
			return snap, fmt.Errorf("list profiles: %w", err)
		}
		for _, p := range profiles {
			u := p.User()
			snap.Children = append(snap.Children, store.Child{Key: u.UserId, User: &u})
		}
	default:
		roomId, _ := store.RoomFromPath(path)
		msgs, err := cs.messages.GetMessages(ctx, roomId)
		if err != nil {
			return snap, fmt.Errorf("get messages: %w", err)
		}
		for _, m := range msgs {
			rec := m.Record()
			snap.Children = append(snap.Children, store.Child{Key: m.Key, Message: &rec})
		}
	}

	return snap, nil
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr(NumActiveConnections)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; ok {
		delete(cs.clients, c)
		cs.stats.Decr(NumActiveConnections)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validPath(path string) bool {
	if path == store.ChatsPath || path == store.UsersPath {
		return true
	}

	roomId, ok := store.RoomFromPath(path)
	return ok && chat.Canonical(roomId)
}
