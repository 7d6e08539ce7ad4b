package app

import (
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func roomSnapshot(msgs ...types.Message) store.Snapshot {
	snap := store.Snapshot{Path: "chats/a-b"}
	for i := range msgs {
		snap.Children = append(snap.Children, store.Child{Key: string(rune('k' + i)), Message: &msgs[i]})
	}
	return snap
}

func TestChat_Run(t *testing.T) {
	feed := newFeed[store.Snapshot]()
	realtime := &store.MockRealtimeStore{}
	realtime.On("Subscribe", "chats/a-b").Return(feed, nil).Once()

	c := NewChat(realtime, "b", types.User{UserId: "a", Name: "Alice"})
	views, cancel, done := runScreen(t, c.Run)
	assert.Equal(t, Loading, nextView(t, views).Status)

	feed.Send(roomSnapshot(
		types.Message{Content: "third", Timestamp: 500},
		types.Message{Content: "first", Timestamp: 100},
		types.Message{Content: "second", Timestamp: 300},
	))
	v := nextView(t, views)
	require.Equal(t, Ready, v.Status)
	require.Len(t, v.Items, 3)
	assert.Equal(t, []int64{100, 300, 500}, []int64{v.Items[0].Timestamp, v.Items[1].Timestamp, v.Items[2].Timestamp})

	feed.Send(roomSnapshot())
	v = nextView(t, views)
	assert.Equal(t, Ready, v.Status)
	assert.Empty(t, v.Items, "expected each snapshot to replace the list")

	cancel()
	assert.NoError(t, waitDone(t, done))
	assert.True(t, feed.Finished())
}

func TestChat_Send(t *testing.T) {
	peer := types.User{UserId: "b", Name: "Bob"}
	expected := types.Message{SenderId: "a", ReceiverId: "b", Content: "hello", Timestamp: 1234}

	tcases := []struct {
		name          string
		draft         string
		pushErr       error
		callsPush     bool
		expectedDraft string
		expectErr     bool
	}{
		{name: "acknowledged push clears draft", draft: "hello", callsPush: true, expectedDraft: ""},
		{name: "failed push keeps draft", draft: "hello", callsPush: true, pushErr: errors.New("offline"), expectedDraft: "hello", expectErr: true},
		{name: "empty draft is a no-op", draft: "", expectedDraft: ""},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			realtime := &store.MockRealtimeStore{}
			if tc.callsPush {
				realtime.On("Push", "chats/a-b", expected).Return("key", tc.pushErr).Once()
			}

			c := NewChat(realtime, "a", peer)
			c.now = func() int64 { return 1234 }
			c.SetDraft(tc.draft)

			err := c.Send(context.Background())
			if tc.expectErr {
				assert.True(t, IsKind(err, KindNetwork), "expected network error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedDraft, c.Draft())

			realtime.AssertExpectations(t)
			if !tc.callsPush {
				realtime.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestChat_SendKeepsNewerDraft(t *testing.T) {
	realtime := &store.MockRealtimeStore{}
	c := NewChat(realtime, "a", types.User{UserId: "b"})
	realtime.On("Push", "chats/a-b", mock.Anything).Run(func(mock.Arguments) {
		c.SetDraft("typed while sending")
	}).Return("key", nil).Once()

	c.SetDraft("hello")
	require.NoError(t, c.Send(context.Background()))
	assert.Equal(t, "typed while sending", c.Draft())
}
