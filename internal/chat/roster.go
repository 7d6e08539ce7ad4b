package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/npezzotti/go-lag/internal/types"
)

// ProfileResolver batch-resolves user ids to profile records.
type ProfileResolver interface {
	QueryByIds(ctx context.Context, ids []string) ([]types.User, error)
}

// PeerIds returns, for every room identifier that includes userId, the other
// participant's id. Rooms not involving userId, malformed identifiers and
// self-rooms are skipped.
func PeerIds(roomIds []string, userId string) []string {
	peers := make([]string, 0, len(roomIds))
	for _, id := range roomIds {
		if peer, ok := Peer(id, userId); ok {
			peers = append(peers, peer)
		}
	}
	return peers
}

// ProjectRoster computes the active chats of userId from the set of all known
// room identifiers. Resolved profiles are sorted by display name. An empty
// qualifying set yields an empty list without querying the resolver; a
// resolver failure is returned as is, never a partial list.
func ProjectRoster(ctx context.Context, roomIds []string, userId string, profiles ProfileResolver) ([]types.User, error) {
	peers := PeerIds(roomIds, userId)
	if len(peers) == 0 {
		return []types.User{}, nil
	}

	users, err := profiles.QueryByIds(ctx, peers)
	if err != nil {
		return nil, fmt.Errorf("resolve profiles: %w", err)
	}

	roster := make([]types.User, len(users))
	copy(roster, users)
	slices.SortStableFunc(roster, func(a, b types.User) int {
		return strings.Compare(a.Name, b.Name)
	})
	return roster, nil
}
