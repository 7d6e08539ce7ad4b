package app

import (
	"context"

	"github.com/npezzotti/go-lag/internal/chat"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

// Home shows the active chats of the signed-in user.
type Home struct {
	realtime store.RealtimeStore
	profiles store.ProfileStore
	userId   string
}

func NewHome(realtime store.RealtimeStore, profiles store.ProfileStore, userId string) *Home {
	return &Home{realtime: realtime, profiles: profiles, userId: userId}
}

// Run watches the chats root and renders the roster recomputed from every
// snapshot. It returns when ctx is done or the subscription ends.
func (h *Home) Run(ctx context.Context, render func(View[types.User])) error {
	render(loadingView[types.User]())

	sub, err := h.realtime.Subscribe(ctx, store.ChatsPath)
	if err != nil {
		e := networkError(err)
		render(failedView[types.User](e))
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
					render(failedView[types.User](e))
					return e
				}
				return nil
			}

			roster, err := chat.ProjectRoster(ctx, snap.Keys(), h.userId, h.profiles)
			if err != nil {
				render(failedView[types.User](networkError(err)))
				continue
			}
			render(readyView(roster))
		}
	}
}

// Delete removes the chat with peer and all of its messages.
func (h *Home) Delete(ctx context.Context, peer types.User) error {
	path := store.RoomPath(chat.RoomId(h.userId, peer.UserId))
	if err := h.realtime.Remove(ctx, path); err != nil {
		return networkError(err)
	}
	return nil
}
