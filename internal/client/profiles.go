package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

// Profiles is the store.ProfileStore backed by the users endpoints. Live
// queries ride on the realtime "users" path.
type Profiles struct {
	conn *Conn
}

func (p *Profiles) Put(ctx context.Context, user types.User) error {
	return p.conn.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(user.UserId), nil, user, nil)
}

func (p *Profiles) QueryExcluding(ctx context.Context, userId string) (store.Stream[[]types.User], error) {
	sub, err := p.conn.Realtime().Subscribe(ctx, store.UsersPath)
	if err != nil {
		return nil, err
	}

	out := store.NewFeed[[]types.User](sub.Close)
	go func() {
		for snap := range sub.Updates() {
			users := make([]types.User, 0, len(snap.Children))
			for _, u := range snap.Users() {
				if u.UserId != userId {
					users = append(users, u)
				}
			}
			out.Send(users)
		}
		out.Finish(sub.Err())
	}()

	return out, nil
}

func (p *Profiles) QueryByIds(ctx context.Context, ids []string) ([]types.User, error) {
	if len(ids) == 0 {
		return []types.User{}, nil
	}

	var users []types.User
	err := p.conn.do(ctx, http.MethodGet, "/api/users", url.Values{"ids": {strings.Join(ids, ",")}}, nil, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (p *Profiles) QueryByUsername(ctx context.Context, username string) (types.User, error) {
	var u types.User
	if err := p.conn.do(ctx, http.MethodGet, "/api/users/by-username/"+url.PathEscape(username), nil, nil, &u); err != nil {
		return types.User{}, err
	}
	return u, nil
}
