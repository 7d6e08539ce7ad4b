package firebase

import (
	"context"
	"fmt"
	"slices"

	"firebase.google.com/go/v4/db"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

type Messages struct {
	client *db.Client
}

var _ database.MessageRepository = (*Messages)(nil)

func (m *Messages) CreateMessage(ctx context.Context, msg database.Message) error {
	return m.client.NewRef(store.RoomPath(msg.RoomId)).Child(msg.Key).Set(ctx, msg.Record())
}

// GetMessages returns the room ordered by key. Keys are time-ordered so
// this is insertion order.
func (m *Messages) GetMessages(ctx context.Context, roomId string) ([]database.Message, error) {
	nodes, err := m.client.NewRef(store.RoomPath(roomId)).OrderByKey().GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomId, err)
	}

	msgs := make([]database.Message, 0, len(nodes))
	for _, node := range nodes {
		var rec types.Message
		if err := node.Unmarshal(&rec); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", node.Key(), err)
		}
		msgs = append(msgs, database.Message{
			Key:        node.Key(),
			RoomId:     roomId,
			SenderId:   rec.SenderId,
			ReceiverId: rec.ReceiverId,
			Content:    rec.Content,
			Timestamp:  rec.Timestamp,
		})
	}

	return msgs, nil
}

func (m *Messages) ListRooms(ctx context.Context) ([]string, error) {
	var shallow map[string]any
	if err := m.client.NewRef(store.ChatsPath).GetShallow(ctx, &shallow); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]string, 0, len(shallow))
	for room := range shallow {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)

	return rooms, nil
}

func (m *Messages) DeleteRoom(ctx context.Context, roomId string) error {
	return m.client.NewRef(store.RoomPath(roomId)).Delete(ctx)
}
