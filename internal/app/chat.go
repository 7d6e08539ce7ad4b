package app

import (
	"context"
	"sync"

	"github.com/npezzotti/go-lag/internal/chat"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

// Chat is the conversation between the signed-in user and one peer. A new
// Chat is created for every peer, so its subscription never outlives the
// identity it was opened for.
type Chat struct {
	realtime store.RealtimeStore
	userId   string
	peer     types.User
	path     string
	now      func() int64

	mu    sync.Mutex
	draft string
}

func NewChat(realtime store.RealtimeStore, userId string, peer types.User) *Chat {
	return &Chat{
		realtime: realtime,
		userId:   userId,
		peer:     peer,
		path:     store.RoomPath(chat.RoomId(userId, peer.UserId)),
		now:      types.NowMillis,
	}
}

func (c *Chat) Peer() types.User {
	return c.peer
}

func (c *Chat) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Chat) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Run renders the room's messages in timestamp order on every snapshot.
func (c *Chat) Run(ctx context.Context, render func(View[types.Message])) error {
	render(loadingView[types.Message]())

	sub, err := c.realtime.Subscribe(ctx, c.path)
	if err != nil {
		e := networkError(err)
		render(failedView[types.Message](e))
		return e
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					e := networkError(err)
					render(failedView[types.Message](e))
					return e
				}
				return nil
			}
			render(readyView(chat.SortMessages(snap.Messages())))
		}
	}
}

// Send pushes the draft. The draft is cleared only once the push is
// acknowledged; a failed push leaves it for the user to retry. An empty
// draft is a no-op.
func (c *Chat) Send(ctx context.Context) error {
	content := c.Draft()
	if content == "" {
		return nil
	}

	msg := types.Message{
		SenderId:   c.userId,
		ReceiverId: c.peer.UserId,
		Content:    content,
		Timestamp:  c.now(),
	}
	if _, err := c.realtime.Push(ctx, c.path, msg); err != nil {
		return networkError(err)
	}

	c.mu.Lock()
	if c.draft == content {
		c.draft = ""
	}
	c.mu.Unlock()

	return nil
}
